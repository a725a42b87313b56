package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/unklstewy/flightmap/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     sqlDB,
		config: cfg,
	}, nil
}

// InitSchema creates the poll log tables if they do not exist.
// Call once at startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// Retention returns how long poll events are kept.
func (db *DB) Retention() time.Duration {
	return retention(db.config.RetentionHours)
}

func retention(hours int) time.Duration {
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// CleanupOldData deletes poll events older than maxAge and returns how
// many rows were removed.
// Should be called periodically to prevent unbounded growth.
func (db *DB) CleanupOldData(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	res, err := db.ExecContext(ctx,
		`DELETE FROM poll_events WHERE started_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old poll events: %w", err)
	}

	return rowsDeleted(res)
}

func rowsDeleted(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted poll events: %w", err)
	}
	return n, nil
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM poll_events`,
	).Scan(&total); err != nil {
		return nil, err
	}
	stats["poll_events"] = total

	rows, err := db.QueryContext(ctx,
		`SELECT outcome, COUNT(*) FROM poll_events
		 WHERE started_at > NOW() - INTERVAL '1 hour'
		 GROUP BY outcome`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lastHour := make(map[string]int64)
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, err
		}
		lastHour[outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats["last_hour"] = lastHour

	var sessions int64
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT session_id) FROM poll_events
		 WHERE started_at > NOW() - INTERVAL '1 hour'`,
	).Scan(&sessions); err != nil {
		return nil, err
	}
	stats["active_sessions"] = sessions

	return stats, nil
}
