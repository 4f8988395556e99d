// Package retry provides bounded retries with a fixed delay between attempts.
package retry

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config holds retry behavior for one operation.
type Config struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// When nil, defaultRetryable is used.
	Retryable func(error) bool
}

// DefaultConfig returns the retry configuration components fall back to.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		Delay:      500 * time.Millisecond,
	}
}

// Do executes operation, retrying failures up to MaxRetries times with a
// fixed delay between attempts. Non-retryable errors are returned as-is
// immediately; exhaustion wraps the last error. The inter-attempt sleep
// honors ctx cancellation.
func Do(ctx context.Context, config Config, operation func(context.Context) error) error {
	retryable := config.Retryable
	if retryable == nil {
		retryable = defaultRetryable
	}

	var err error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err = operation(ctx)
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return err
		}

		if attempt == config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(config.Delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, err)
}

// defaultRetryable classifies transport-level failures and throttling as
// retryable and client errors as permanent.
func defaultRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network") {
		return true
	}

	// HTTP status codes embedded in error messages: retry server errors
	// and rate limiting, never other client errors.
	if strings.Contains(errStr, "status 5") ||
		strings.Contains(errStr, "status 429") {
		return true
	}
	if strings.Contains(errStr, "status 4") {
		return false
	}

	// Unrecognized errors get the benefit of the doubt.
	return true
}

// HTTPStatusRetryable reports whether an HTTP status code is worth retrying.
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
