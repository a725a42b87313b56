package opensky

import (
	"context"
	"fmt"
	"math"
	"time"
)

// BackoffConfig configures exponential backoff after upstream failures.
type BackoffConfig struct {
	// MaxRetries is the maximum number of retry attempts for
	// RetryWithBackoff (default: 3). The poller never retries and ignores it.
	MaxRetries int

	// InitialDelay is the delay after the first failure (default: 15 seconds)
	InitialDelay time.Duration

	// MaxDelay caps the delay (default: 5 minutes)
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (default: 2.0 for exponential)
	Multiplier float64

	// RespectRetryAfter lets the upstream's Retry-After extend the delay (default: true)
	RespectRetryAfter bool
}

// DefaultBackoffConfig returns defaults tuned to OpenSky's anonymous limits.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxRetries:        3,
		InitialDelay:      15 * time.Second,
		MaxDelay:          5 * time.Minute,
		Multiplier:        2.0,
		RespectRetryAfter: true,
	}
}

// Delay returns the backoff after the given number of consecutive failures.
// delay = min(InitialDelay * Multiplier^(failures-1), MaxDelay)
func (cfg BackoffConfig) Delay(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(failures-1))
	if d > float64(cfg.MaxDelay) || math.IsInf(d, 0) {
		return cfg.MaxDelay
	}
	return time.Duration(d)
}

// Cooldown is how long to hold off after a failure: the larger of the
// upstream Retry-After and the exponential delay. Only rate-limit errors
// cause a cooldown; anything else returns 0.
func (cfg BackoffConfig) Cooldown(err error, failures int) time.Duration {
	rle, ok := IsRateLimitError(err)
	if !ok {
		return 0
	}
	d := cfg.Delay(failures)
	if cfg.RespectRetryAfter && rle.RetryAfter > d {
		d = rle.RetryAfter
	}
	return d
}

// RetryWithBackoffResult executes a function with exponential backoff and returns a result.
// Rate limit errors carrying Retry-After stretch the wait accordingly.
// onRetry, when non-nil, is called before each wait.
//
// Example usage:
//
//	states, err := RetryWithBackoffResult(ctx, DefaultBackoffConfig(), nil, func() ([]StateVector, error) {
//	    return client.StatesInBox(ctx, bbox)
//	})
func RetryWithBackoffResult[T any](ctx context.Context, cfg BackoffConfig, onRetry func(attempt int, wait time.Duration, err error), fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := cfg.Delay(attempt)
			if c := cfg.Cooldown(lastErr, attempt); c > wait {
				wait = c
			}
			if onRetry != nil {
				onRetry(attempt, wait, lastErr)
			}

			select {
			case <-ctx.Done():
				return result, fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		res, err := fn()
		if err == nil {
			return res, nil
		}
		result = res
		lastErr = err
	}

	return result, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxRetries, lastErr)
}
