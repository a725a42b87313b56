package tracker

import (
	"context"
	"time"

	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// Trigger names what started a poll cycle.
type Trigger string

const (
	TriggerViewport Trigger = "viewport"
	TriggerTimer    Trigger = "timer"
	TriggerManual   Trigger = "manual"
)

// Outcome is how a poll cycle ended.
type Outcome string

const (
	// OutcomeApplied: fetched and published
	OutcomeApplied Outcome = "applied"

	// OutcomeFailed: fetch failed, the empty set was published
	OutcomeFailed Outcome = "failed"

	// OutcomeStale: fetched, but a newer cycle had started
	OutcomeStale Outcome = "stale"

	// OutcomeSuperseded: cancelled by a newer cycle or shutdown
	OutcomeSuperseded Outcome = "superseded"

	// OutcomeSkipped: not started because of a rate-limit cooldown
	OutcomeSkipped Outcome = "skipped"
)

// CycleReport describes one poll cycle.
type CycleReport struct {
	SessionID  string                  `json:"session_id,omitempty"`
	Generation uint64                  `json:"generation"`
	Trigger    Trigger                 `json:"trigger"`
	BBox       coordinates.BoundingBox `json:"bbox"`
	Outcome    Outcome                 `json:"outcome"`
	Reason     opensky.Reason          `json:"reason,omitempty"`
	Features   int                     `json:"features"`
	StartedAt  time.Time               `json:"started_at"`
	Duration   time.Duration           `json:"duration"`
	Error      string                  `json:"error,omitempty"`
	Err        error                   `json:"-"`

	// CooldownUntil is set while rate-limit backoff is active
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
}

// Recorder persists cycle reports.
type Recorder interface {
	Record(ctx context.Context, r CycleReport) error
}
