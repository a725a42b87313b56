package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// PollEvent is one stored poll cycle.
type PollEvent struct {
	ID            int64                   `json:"id"`
	SessionID     string                  `json:"session_id"`
	Generation    uint64                  `json:"generation"`
	Trigger       string                  `json:"trigger"`
	BBox          coordinates.BoundingBox `json:"bbox"`
	Outcome       string                  `json:"outcome"`
	Reason        string                  `json:"reason,omitempty"`
	Features      int                     `json:"features"`
	StartedAt     time.Time               `json:"started_at"`
	DurationMs    int64                   `json:"duration_ms"`
	Error         string                  `json:"error,omitempty"`
	CooldownUntil *time.Time              `json:"cooldown_until,omitempty"`
}

// PollEventRepository stores poll cycles. It implements tracker.Recorder.
type PollEventRepository struct {
	db *DB
}

// NewPollEventRepository creates a new poll event repository.
func NewPollEventRepository(db *DB) *PollEventRepository {
	return &PollEventRepository{db: db}
}

var _ tracker.Recorder = (*PollEventRepository)(nil)

const insertPollEvent = `INSERT INTO poll_events (
	session_id, generation, trigger,
	bbox_west, bbox_south, bbox_east, bbox_north,
	outcome, reason, features, started_at, duration_ms, error, cooldown_until
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// Record inserts one cycle report.
func (r *PollEventRepository) Record(ctx context.Context, rep tracker.CycleReport) error {
	args := eventArgs(rep)
	err := WithRetry(ctx, func() error {
		_, err := r.db.ExecContext(ctx, insertPollEvent, args...)
		return err
	}, 1)
	if err != nil {
		return fmt.Errorf("failed to insert poll event: %w", err)
	}
	return nil
}

// eventArgs maps a report onto the insert parameters.
func eventArgs(rep tracker.CycleReport) []any {
	var cooldown sql.NullTime
	if !rep.CooldownUntil.IsZero() {
		cooldown = sql.NullTime{Time: rep.CooldownUntil.UTC(), Valid: true}
	}

	errText := rep.Error
	if errText == "" && rep.Err != nil {
		errText = rep.Err.Error()
	}

	return []any{
		rep.SessionID,
		int64(rep.Generation),
		string(rep.Trigger),
		rep.BBox.West,
		rep.BBox.South,
		rep.BBox.East,
		rep.BBox.North,
		string(rep.Outcome),
		string(rep.Reason),
		rep.Features,
		rep.StartedAt.UTC(),
		rep.Duration.Milliseconds(),
		errText,
		cooldown,
	}
}

// Recent returns the latest events, newest first. An empty sessionID
// returns events from every session.
func (r *PollEventRepository) Recent(ctx context.Context, sessionID string, limit int) ([]PollEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, generation, trigger,
		        bbox_west, bbox_south, bbox_east, bbox_north,
		        outcome, reason, features, started_at, duration_ms, error, cooldown_until
		 FROM poll_events
		 WHERE $1 = '' OR session_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query poll events: %w", err)
	}
	defer rows.Close()

	var events []PollEvent
	for rows.Next() {
		var e PollEvent
		var gen int64
		var cooldown sql.NullTime
		if err := rows.Scan(&e.ID, &e.SessionID, &gen, &e.Trigger,
			&e.BBox.West, &e.BBox.South, &e.BBox.East, &e.BBox.North,
			&e.Outcome, &e.Reason, &e.Features, &e.StartedAt, &e.DurationMs, &e.Error, &cooldown); err != nil {
			return nil, fmt.Errorf("failed to scan poll event: %w", err)
		}
		e.Generation = uint64(gen)
		if cooldown.Valid {
			t := cooldown.Time
			e.CooldownUntil = &t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RateLimitedSince counts rate-limited failures since the given time.
func (r *PollEventRepository) RateLimitedSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM poll_events
		 WHERE outcome = $1 AND reason = $2 AND started_at >= $3`,
		string(tracker.OutcomeFailed), string(opensky.ReasonRateLimited), since.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count rate-limited polls: %w", err)
	}
	return n, nil
}
