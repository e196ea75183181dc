package evidence

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RetryOptions tunes the single-item retry loop shared by all backends.
type RetryOptions struct {
	// MaxRetries is the number of re-attempts after the first try.
	MaxRetries int

	// BaseDelay is the first backoff step.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay, including server-suggested ones.
	MaxDelay time.Duration

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// jitter is replaceable in tests; returns a random duration in [0, 1s).
	jitter func() time.Duration
}

// DefaultRetryOptions returns the standard policy: 3 retries, exponential
// backoff from 1s capped at 30s with up to 1s of jitter.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
	}
}

func (o *RetryOptions) fill() {
	if o.BaseDelay == 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.sleep == nil {
		o.sleep = func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return nil
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
	}
	if o.jitter == nil {
		o.jitter = func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		}
	}
}

// WithRetry runs op with the backend retry policy. A *CollectorError with
// Retryable=false stops immediately; a rate-limit error carrying RetryAfter
// overrides the exponential schedule for the next attempt, clamped to the
// cap.
func WithRetry(ctx context.Context, opts RetryOptions, op func(ctx context.Context) error) error {
	opts.fill()

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var collErr *CollectorError
		if errors.As(err, &collErr) && !collErr.Retryable {
			return err
		}
		if attempt == opts.MaxRetries {
			break
		}

		delay := opts.BaseDelay<<attempt + opts.jitter()
		if collErr != nil && collErr.RateLimit != nil && collErr.RateLimit.RetryAfter > 0 {
			delay = time.Duration(collErr.RateLimit.RetryAfter) * time.Second
		}
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}

		if err := opts.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}
