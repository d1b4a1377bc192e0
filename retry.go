package transcache

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryConfig controls how a failed engine batch is retried.
type RetryConfig struct {
	MaxRetries int           // Attempts after the first; 0 disables retries
	BaseDelay  time.Duration // Delay before the first retry, doubled on each further one
	MaxDelay   time.Duration // Upper bound on a single delay (0 = unbounded)
	Jitter     float64       // Fraction of each delay drawn at random, in [0, 1]

	// OnRetry, if set, is called with the 1-based retry number before each wait.
	OnRetry func(retry int, err error, delay time.Duration)
}

// DefaultRetryConfig returns the retry policy applied to engine batches.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Jitter:     0.2,
	}
}

// backoff returns the wait before retry n (0-based). With jitter the result
// lies in [d*(1-Jitter), d].
func (c RetryConfig) backoff(n int) time.Duration {
	d := c.BaseDelay
	for i := 0; i < n && d > 0; i++ {
		if c.MaxDelay > 0 && d >= c.MaxDelay {
			break
		}
		d *= 2
	}
	if c.MaxDelay > 0 && d > c.MaxDelay {
		d = c.MaxDelay
	}

	if j := min(c.Jitter, 1); j > 0 && d > 0 {
		spread := time.Duration(float64(d) * j)
		d -= time.Duration(rand.Int64N(int64(spread) + 1))
	}
	return d
}

// RetryFunc is one attempt of a retried operation.
type RetryFunc[T any] func() (T, error)

// WithRetry runs fn until it succeeds, fails with an error IsRetryable
// rejects, or MaxRetries retries are spent. The last error is returned.
// Cancelling ctx stops both attempts and waits.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var zero T

	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if n >= cfg.MaxRetries || !IsRetryable(err) {
			return zero, err
		}

		delay := cfg.backoff(n)
		if cfg.OnRetry != nil {
			cfg.OnRetry(n+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsRetryable reports whether err is a transient engine failure.
// Cancellation and deadlines never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return false
}
