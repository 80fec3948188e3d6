// Package retry provides the single bounded retry policy every upstream
// call in the pipeline is wrapped with. Retry exhaustion is a soft failure:
// callers receive ok=false and treat the symbol as "no data", never as a
// fatal error for the surrounding batch.
package retry

import (
	"context"
	"time"
)

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Policy wraps a fetch function with bounded retries and a linearly
// increasing backoff (attempt x BaseDelay).
type Policy struct {
	MaxRetries int           // additional attempts after the first
	BaseDelay  time.Duration // backoff unit
	Retryable  func(err error) bool
}

// Default returns the production policy: two retries, 500ms backoff unit,
// retrying on 429/5xx statuses and on transport or parse errors.
func Default() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		Retryable:  DefaultRetryable,
	}
}

// DefaultRetryable treats rate limiting (429) and server-side statuses
// (5xx) as retryable. Errors without a status -- network failures, body
// read failures, parse failures -- are retryable too; only client-side
// statuses (4xx other than 429) are not worth repeating.
func DefaultRetryable(err error) bool {
	if sc, ok := err.(StatusCoder); ok {
		code := sc.StatusCode()
		return code == 429 || code >= 500
	}
	return true
}

// Do runs fn up to MaxRetries+1 times. It returns the first successful
// value with ok=true, or the zero value with ok=false once retries are
// exhausted or a non-retryable error occurs. Backoff sleeps are cut short
// by context cancellation.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, bool) {
	var zero T
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if !sleep(ctx, time.Duration(attempt)*p.BaseDelay) {
				return zero, false
			}
		}
		v, err := fn(ctx)
		if err == nil {
			return v, true
		}
		if !retryable(err) {
			return zero, false
		}
	}
	return zero, false
}

// sleep waits for d or until ctx is done; returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
