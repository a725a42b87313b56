package opensky

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestBackoffDelay tests the exponential delay calculation.
func TestBackoffDelay(t *testing.T) {
	cfg := BackoffConfig{
		InitialDelay: 10 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 60 * time.Second},
		{50, 60 * time.Second},
	}

	for _, tt := range tests {
		if got := cfg.Delay(tt.failures); got != tt.want {
			t.Errorf("Delay(%d): expected %v, got %v", tt.failures, tt.want, got)
		}
	}
}

// TestBackoffCooldown tests that only rate-limit errors cause a cooldown.
func TestBackoffCooldown(t *testing.T) {
	cfg := DefaultBackoffConfig()

	t.Run("Unavailable error has no cooldown", func(t *testing.T) {
		if got := cfg.Cooldown(&UnavailableError{Message: "down"}, 3); got != 0 {
			t.Errorf("Expected 0, got %v", got)
		}
	})

	t.Run("Backoff wins over short Retry-After", func(t *testing.T) {
		err := &RateLimitError{RetryAfter: time.Second}
		if got := cfg.Cooldown(err, 1); got != cfg.InitialDelay {
			t.Errorf("Expected %v, got %v", cfg.InitialDelay, got)
		}
	})

	t.Run("Long Retry-After wins over backoff", func(t *testing.T) {
		err := &RateLimitError{RetryAfter: 10 * time.Minute}
		if got := cfg.Cooldown(err, 1); got != 10*time.Minute {
			t.Errorf("Expected 10m, got %v", got)
		}
	})

	t.Run("Retry-After ignored when disabled", func(t *testing.T) {
		c := cfg
		c.RespectRetryAfter = false
		err := &RateLimitError{RetryAfter: 10 * time.Minute}
		if got := c.Cooldown(err, 1); got != c.InitialDelay {
			t.Errorf("Expected %v, got %v", c.InitialDelay, got)
		}
	})
}

// TestDefaultBackoffConfig tests the default values.
func TestDefaultBackoffConfig(t *testing.T) {
	cfg := DefaultBackoffConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("Expected MaxRetries 3, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != 15*time.Second {
		t.Errorf("Expected InitialDelay 15s, got %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay != 5*time.Minute {
		t.Errorf("Expected MaxDelay 5m, got %v", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Expected Multiplier 2.0, got %f", cfg.Multiplier)
	}
	if !cfg.RespectRetryAfter {
		t.Error("Expected RespectRetryAfter to be true")
	}
}

// TestRetryWithBackoffResult tests the generic retry helper.
func TestRetryWithBackoffResult(t *testing.T) {
	fast := BackoffConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}

	t.Run("Success after retries", func(t *testing.T) {
		attempts := 0
		retries := 0
		got, err := RetryWithBackoffResult(context.Background(), fast,
			func(int, time.Duration, error) { retries++ },
			func() (int, error) {
				attempts++
				if attempts < 3 {
					return 0, errors.New("temporary error")
				}
				return 42, nil
			})

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if got != 42 {
			t.Errorf("Expected 42, got %d", got)
		}
		if attempts != 3 || retries != 2 {
			t.Errorf("Expected 3 attempts and 2 retries, got %d and %d", attempts, retries)
		}
	})

	t.Run("Max retries exceeded", func(t *testing.T) {
		attempts := 0
		sentinel := errors.New("persistent error")
		_, err := RetryWithBackoffResult(context.Background(), fast, nil, func() (string, error) {
			attempts++
			return "", sentinel
		})

		if !errors.Is(err, sentinel) {
			t.Errorf("Expected wrapped sentinel, got %v", err)
		}
		// initial + 3 retries
		if attempts != 4 {
			t.Errorf("Expected 4 attempts, got %d", attempts)
		}
	})

	t.Run("Context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		slow := fast
		slow.InitialDelay = time.Hour
		slow.MaxDelay = time.Hour

		attempts := 0
		_, err := RetryWithBackoffResult(ctx, slow, nil, func() (int, error) {
			attempts++
			return 0, errors.New("error")
		})

		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
		}
	})
}
