// Package inference routes every model call through one serialized gateway
// in front of a local model server. The pipeline's summarizer and the LLM
// scorer are both gateway callers; neither talks to the backend directly.
package inference

import (
	"context"
	"errors"
)

// Classified call outcomes.
var (
	// ErrTimeout means the per-call budget expired. The in-flight call is
	// abandoned and never retried.
	ErrTimeout = errors.New("inference: call timed out")
	// ErrUnavailable means the backend could not serve the call even after
	// retries, or the gateway is not running.
	ErrUnavailable = errors.New("inference: backend unavailable")
	// ErrBadResponse means the backend answered with something unusable.
	ErrBadResponse = errors.New("inference: bad response")
)

// Request is one prompt for the model.
type Request struct {
	System string
	Prompt string
}

// Client is the transport to one model backend.
type Client interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, req Request) (string, error)
}
