package resilience

import (
	"context"
	"time"

	"github.com/loomrun/loom/errs"
)

// RetryConfig configures Retry's backoff schedule.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Allow, if non-empty, restricts retries of errors without an
	// inherently retryable or non-retryable Kind to those whose message
	// contains one of these substrings (see errs.IsRetryable).
	Allow []string
}

// Delay returns the backoff delay before attempt n (1-indexed), capped
// at MaxDelay: min(initialDelay * multiplier^(n-1), maxDelay).
//
// Uses an exponential-backoff-with-cap idiom, generalized to an
// arbitrary multiplier instead of a fixed doubling.
func (c RetryConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
	}
	delay := time.Duration(d)
	if c.MaxDelay > 0 && delay > c.MaxDelay {
		delay = c.MaxDelay
	}
	return delay
}

// Retry invokes op up to MaxAttempts times, sleeping Delay(n) between
// attempts, stopping early when errs.IsRetryable reports the error as
// not retryable (a non-retryable Kind, or a message outside a non-empty
// Allow list). The last error is returned unwrapped on final failure.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !errs.IsRetryable(lastErr, cfg.Allow) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		delay := cfg.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}
