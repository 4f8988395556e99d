package inference

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jmadden/news-digest/internal/config"
	"github.com/jmadden/news-digest/internal/logging"
	"github.com/jmadden/news-digest/internal/retry"
)

// Gateway serializes access to one model backend. A single worker goroutine
// drains a FIFO request queue, so at most one backend call is in flight at
// any instant no matter how many goroutines submit.
//
// Context cancellation is the only stop mechanism: cancel the context given
// to Start and the worker exits; queued and later calls fail ErrUnavailable.
type Gateway struct {
	client   Client
	timeout  time.Duration
	retryCfg retry.Config
	limiter  *rate.Limiter

	requests chan pending
	done     chan struct{}
	started  atomic.Bool
}

type pending struct {
	ctx  context.Context
	req  Request
	resp chan result
}

type result struct {
	text string
	err  error
}

// NewGateway creates a gateway in front of client. Call Start before use.
func NewGateway(client Client, cfg config.InferenceConfig) *Gateway {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval() > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.MinInterval()), 1)
	}
	return &Gateway{
		client:  client,
		timeout: cfg.Timeout(),
		retryCfg: retry.Config{
			MaxRetries: *cfg.Retries,
			Delay:      cfg.Backoff(),
			Retryable:  transportOnly,
		},
		limiter:  limiter,
		requests: make(chan pending, 8),
		done:     make(chan struct{}),
	}
}

// transportOnly retries transport failures. Timeouts abandon the call,
// unusable replies will not improve, and dead caller contexts are final.
func transportOnly(err error) bool {
	return !errors.Is(err, ErrTimeout) &&
		!errors.Is(err, ErrBadResponse) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

// Start launches the worker goroutine. Starting twice is a no-op.
func (g *Gateway) Start(ctx context.Context) {
	if !g.started.CompareAndSwap(false, true) {
		return
	}
	go g.run(ctx)
}

func (g *Gateway) run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-g.requests:
			// Callers that gave up while queued do not consume the worker.
			if p.ctx.Err() != nil {
				p.resp <- result{err: p.ctx.Err()}
				continue
			}
			text, err := g.call(p)
			p.resp <- result{text: text, err: err}
		}
	}
}

// Generate submits a request and blocks until its turn completes, the
// caller's context dies, or the gateway shuts down. Queued requests are
// served in FIFO order.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	if !g.started.Load() {
		return "", fmt.Errorf("%w: gateway not started", ErrUnavailable)
	}

	p := pending{ctx: ctx, req: req, resp: make(chan result, 1)}

	select {
	case g.requests <- p:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-g.done:
		return "", fmt.Errorf("%w: gateway stopped", ErrUnavailable)
	}

	select {
	case r := <-p.resp:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-g.done:
		// The worker may have answered just before exiting.
		select {
		case r := <-p.resp:
			return r.text, r.err
		default:
			return "", fmt.Errorf("%w: gateway stopped", ErrUnavailable)
		}
	}
}

// call runs one request through pacing, the per-call timeout, and bounded
// fixed-backoff retries, then maps the outcome onto the error taxonomy.
func (g *Gateway) call(p pending) (string, error) {
	start := time.Now()

	var text string
	err := retry.Do(p.ctx, g.retryCfg, func(ctx context.Context) error {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		var callErr error
		text, callErr = g.callOnce(ctx, p.req)
		return callErr
	})

	if err == nil {
		logging.Debug("inference call served", "backend", g.client.Name(), "duration", time.Since(start))
		return text, nil
	}

	switch {
	case errors.Is(err, ErrTimeout):
		logging.Warn("inference call abandoned after timeout", "timeout", g.timeout)
		return "", ErrTimeout
	case errors.Is(err, ErrBadResponse),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return "", err
	default:
		logging.Warn("inference backend unavailable", "error", err)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// callOnce runs a single attempt under the per-call timeout. On expiry the
// attempt is abandoned: its context is canceled and the worker moves on
// without waiting for the transport to unwind.
func (g *Gateway) callOnce(parent context.Context, req Request) (string, error) {
	callCtx, cancel := context.WithTimeout(parent, g.timeout)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		text, err := g.client.Generate(callCtx, req)
		ch <- result{text: text, err: err}
	}()

	select {
	case out := <-ch:
		if out.err == nil {
			return out.text, nil
		}
		if parent.Err() != nil {
			return "", parent.Err()
		}
		if callCtx.Err() != nil {
			return "", ErrTimeout
		}
		return "", out.err
	case <-callCtx.Done():
		if parent.Err() != nil {
			return "", parent.Err()
		}
		return "", ErrTimeout
	}
}
