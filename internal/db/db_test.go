package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/config"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// TestConnect tests database connection with an unreachable server.
func TestConnect(t *testing.T) {
	t.Run("Unreachable server returns an error", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         1,
			Username:     "testuser",
			Password:     "testpass",
			Database:     "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 2,
			MaxIdleConns: 1,
		}

		db, err := Connect(cfg)
		if err == nil {
			db.Close()
			t.Skip("Something is listening on port 1")
		}
		if db != nil {
			t.Error("Expected nil db on error")
		}
	})
}

// TestRetention tests the retention default.
func TestRetention(t *testing.T) {
	if retention(0) != 24*time.Hour {
		t.Errorf("Expected 24h default, got %v", retention(0))
	}
	if retention(6) != 6*time.Hour {
		t.Errorf("Expected 6h, got %v", retention(6))
	}
}

// TestIsConnectionError tests connection error detection.
func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp 127.0.0.1:5432: connect: Connection Refused"), true},
		{errors.New("driver: bad connection"), true},
		{errors.New("unexpected EOF"), true},
		{errors.New(`pq: relation "poll_events" does not exist`), false},
	}

	for _, tt := range tests {
		if got := IsConnectionError(tt.err); got != tt.want {
			t.Errorf("IsConnectionError(%v): expected %v, got %v", tt.err, tt.want, got)
		}
	}
}

// TestWithRetry tests that only connection failures are retried.
func TestWithRetry(t *testing.T) {
	t.Run("Query errors are not retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errors.New("syntax error")
		}, 3)
		if err == nil || calls != 1 {
			t.Errorf("Expected 1 call with error, got %d calls and %v", calls, err)
		}
	})

	t.Run("Connection errors are retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls == 1 {
				return errors.New("connection reset by peer")
			}
			return nil
		}, 1)
		if err != nil || calls != 2 {
			t.Errorf("Expected success on 2nd call, got %d calls and %v", calls, err)
		}
	})

	t.Run("Cancelled context stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error {
			return errors.New("broken pipe")
		}, 3)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	})
}

// TestEventArgs tests mapping a cycle report onto insert parameters.
func TestEventArgs(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rep := tracker.CycleReport{
		SessionID:     "s1",
		Generation:    7,
		Trigger:       tracker.TriggerTimer,
		BBox:          coordinates.BoundingBox{West: -10, South: 40, East: 10, North: 60},
		Outcome:       tracker.OutcomeFailed,
		Reason:        opensky.ReasonRateLimited,
		StartedAt:     started,
		Duration:      1500 * time.Millisecond,
		Err:           errors.New("Rate limit exceeded"),
		CooldownUntil: started.Add(time.Minute),
	}

	args := eventArgs(rep)
	if len(args) != 14 {
		t.Fatalf("Expected 14 args, got %d", len(args))
	}
	if args[1] != int64(7) {
		t.Errorf("Expected generation 7, got %v", args[1])
	}
	if args[2] != "timer" || args[7] != "failed" || args[8] != "rate_limited" {
		t.Errorf("Unexpected enum args %v %v %v", args[2], args[7], args[8])
	}
	if args[11] != int64(1500) {
		t.Errorf("Expected 1500ms, got %v", args[11])
	}
	if args[12] != "Rate limit exceeded" {
		t.Errorf("Expected error text from Err, got %v", args[12])
	}

	rep.CooldownUntil = time.Time{}
	rep.Err = nil
	args = eventArgs(rep)
	if args[12] != "" {
		t.Errorf("Expected empty error text, got %v", args[12])
	}
}

type fakeResult struct {
	rows int64
	err  error
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }

func (r fakeResult) RowsAffected() (int64, error) { return r.rows, r.err }

// TestRowsDeleted tests reading the cleanup row count.
func TestRowsDeleted(t *testing.T) {
	t.Run("Returns the row count", func(t *testing.T) {
		n, err := rowsDeleted(fakeResult{rows: 7})
		if err != nil || n != 7 {
			t.Errorf("Expected 7 rows, got %d (%v)", n, err)
		}
	})

	t.Run("Reports a failed count", func(t *testing.T) {
		cause := errors.New("driver does not report rows")
		n, err := rowsDeleted(fakeResult{err: cause})
		if !errors.Is(err, cause) {
			t.Errorf("Expected wrapped driver error, got %v", err)
		}
		if n != 0 {
			t.Errorf("Expected 0 rows, got %d", n)
		}
	})
}
