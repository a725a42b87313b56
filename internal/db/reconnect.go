package db

import (
	"context"
	"strings"
	"time"

	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/pkg/config"
)

// ReconnectWithRetry connects with exponential backoff, capped at 60 seconds.
// maxRetries of 0 retries until ctx is done.
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int, initialDelay time.Duration, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}

	delay := initialDelay
	attempt := 0

	for {
		attempt++
		log.Debug("Database connection attempt", logger.Int("attempt", attempt))

		db, err := Connect(cfg)
		if err == nil {
			log.Info("Database connected", logger.Int("attempt", attempt))
			return db, nil
		}

		if maxRetries > 0 && attempt >= maxRetries {
			log.Error("Failed to connect to database", logger.Int("attempts", attempt), logger.Error(err))
			return nil, err
		}

		log.Warn("Database connection failed",
			logger.Error(err),
			logger.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > 60*time.Second {
			delay = 60 * time.Second
		}
	}
}

// EnsureConnection pings db and reconnects when the connection is gone.
func EnsureConnection(ctx context.Context, db *DB, cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if db == nil {
		log.Warn("Database connection is nil, reconnecting")
		return ReconnectWithRetry(ctx, cfg, 3, time.Second, log)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		log.Warn("Database connection lost, reconnecting", logger.Error(err))
		db.Close()
		return ReconnectWithRetry(ctx, cfg, 3, time.Second, log)
	}

	return db, nil
}

// HealthCheck reports whether the database answers a trivial query.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return false
	}
	return result == 1
}

var connErrors = []string{
	"connection refused",
	"broken pipe",
	"no connection",
	"connection reset",
	"eof",
	"timeout",
	"bad connection",
}

// IsConnectionError reports whether err looks like a lost connection
// rather than a query error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range connErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WithRetry runs operation, retrying connection failures with a linear
// wait. Other errors are returned immediately.
func WithRetry(ctx context.Context, operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsConnectionError(err) {
			return err
		}

		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}

	return lastErr
}
