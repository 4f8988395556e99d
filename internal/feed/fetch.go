package feed

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jmadden/news-digest/internal/logging"
)

// FetchOptions bounds a multi-source fetch.
type FetchOptions struct {
	Concurrency int
	Freshness   time.Duration // drop dated items older than this
	MaxPerFeed  int
}

// Result carries the merged articles plus any per-source failures.
type Result struct {
	Articles []Article
	Errors   []SourceError
}

// FetchAll fetches every source in parallel with bounded concurrency.
// Source failures are collected, never fatal. The merged list preserves
// configured source order and each feed's own item order, so identical
// feed payloads produce identical downstream input. Sources bound their
// own per-request time.
func FetchAll(ctx context.Context, sources []Source, opts FetchOptions) Result {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	perSource := make([][]Article, len(sources))
	perSourceErr := make([]error, len(sources))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if ctx.Err() != nil {
				perSourceErr[i] = ctx.Err()
				return nil
			}
			articles, err := src.Fetch(ctx)
			if err != nil {
				perSourceErr[i] = err
				logging.Warn("feed fetch failed", "source", src.Name(), "error", err)
				return nil // never fail the group, errors reported per-source
			}
			kept := applyLimits(articles, time.Now(), opts)
			logging.Debug("feed fetched", "source", src.Name(), "items", len(articles), "kept", len(kept))
			perSource[i] = kept
			return nil
		})
	}

	_ = g.Wait()

	var result Result
	for i, src := range sources {
		if perSourceErr[i] != nil {
			result.Errors = append(result.Errors, SourceError{Source: src.Name(), Err: perSourceErr[i]})
			continue
		}
		result.Articles = append(result.Articles, perSource[i]...)
	}
	return result
}

// applyLimits enforces the freshness window and the per-feed cap. Undated
// items pass the freshness check; feeds list newest items first, so the
// cap keeps the head of the list.
func applyLimits(articles []Article, now time.Time, opts FetchOptions) []Article {
	kept := articles
	if opts.Freshness > 0 {
		cutoff := now.Add(-opts.Freshness)
		kept = make([]Article, 0, len(articles))
		for _, a := range articles {
			if a.Published.IsZero() || !a.Published.Before(cutoff) {
				kept = append(kept, a)
			}
		}
	}
	if opts.MaxPerFeed > 0 && len(kept) > opts.MaxPerFeed {
		kept = kept[:opts.MaxPerFeed]
	}
	return kept
}
