// Package retry runs a call repeatedly under a bounded attempt budget with a
// per-error backoff policy.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/use-agent/rankscope/models"
)

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first. Values
	// below 1 mean a single attempt.
	MaxAttempts int

	// Backoff returns the delay to wait after the given failed attempt
	// (1-based). Nil means no delay.
	Backoff func(attempt int, err error) time.Duration

	// Retryable reports whether err warrants another attempt. Nil retries
	// every error except cancellation.
	Retryable func(err error) bool

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep waits for d or until ctx ends. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget runs out. Caller cancellation is never retried: it is
// returned immediately, including when it interrupts a backoff sleep. On
// exhaustion the last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := max(p.MaxAttempts, 1)
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, canceled(err)
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if models.IsCanceled(err) {
			return zero, err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt, err)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, canceled(err)
		}
	}
	return zero, lastErr
}

// Sleep blocks for d or until ctx is done, returning ctx.Err in that case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Jitter returns a uniformly random duration in [0, limit).
func Jitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

// Linear returns base*attempt plus up to jitter of random slack.
func Linear(base, jitter time.Duration) func(attempt int, err error) time.Duration {
	return func(attempt int, _ error) time.Duration {
		return base*time.Duration(attempt) + Jitter(jitter)
	}
}

// Clamp bounds d to [lo, hi].
func Clamp(d, lo, hi time.Duration) time.Duration {
	return min(max(d, lo), hi)
}

// canceled maps a context error to a typed error. A deadline is reported as a
// timeout, anything else as caller cancellation.
func canceled(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.ScrapeError{Code: models.ErrCodeTimeout, Message: "deadline exceeded during retry", Err: err}
	}
	return &models.ScrapeError{Code: models.ErrCodeCanceled, Message: "request canceled", Err: err}
}
