// Package resilience provides the retry, timeout and failure-isolation
// primitives used around backend calls.
package resilience

import (
	"context"
	"time"
)

// Schedule selects how the delay between attempts grows.
type Schedule int

const (
	// ScheduleLinear waits BaseDelay * n before attempt n+1.
	ScheduleLinear Schedule = iota
	// ScheduleExponential waits BaseDelay * 2^n before attempt n+1.
	// Used for more failure-prone paths such as first contact to a new
	// local endpoint.
	ScheduleExponential
)

// RetryConfig holds configuration for the retry wrapper.
type RetryConfig struct {
	MaxAttempts int           // Total attempts, including the first
	BaseDelay   time.Duration // Delay unit between attempts
	MaxDelay    time.Duration // Cap on a single delay (0 = uncapped)
	Schedule    Schedule
}

// DefaultRetryConfig returns sensible defaults for backend calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Schedule:    ScheduleLinear,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// Retry executes fn up to cfg.MaxAttempts times, sleeping between attempts
// according to cfg.Schedule. It retries on any error returned by fn and never
// on a successful result. Exhausting all attempts returns the last error
// unchanged. Context cancellation is honored before each attempt and during
// each backoff sleep.
func Retry(ctx context.Context, cfg RetryConfig, fn RetryableFunc) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delayFor(cfg, attempt)):
		}
	}

	return lastErr
}

// delayFor computes the sleep after the attempt-th failed call (0-indexed).
func delayFor(cfg RetryConfig, attempt int) time.Duration {
	var d time.Duration
	switch cfg.Schedule {
	case ScheduleExponential:
		d = cfg.BaseDelay << uint(attempt)
	default:
		d = cfg.BaseDelay * time.Duration(attempt+1)
	}

	if cfg.MaxDelay > 0 && d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}
