package tracker

import (
	"context"
	"time"

	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
	"github.com/unklstewy/flightmap/pkg/flight"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// Source answers the upstream queries a session needs.
// opensky.Client and opensky.CachingSource implement it.
type Source interface {
	StatesInBox(ctx context.Context, bbox coordinates.BoundingBox) ([]opensky.StateVector, error)
	SearchCallsign(ctx context.Context, callsign string) ([]opensky.StateVector, error)
}

// Renderer receives everything a map view needs to draw.
//
// Methods are called from tracker goroutines, sometimes while internal
// locks are held. Implementations must not block and must not call back
// into the session synchronously.
type Renderer interface {
	// SetFeatures replaces the drawn feature set.
	SetFeatures(fc feature.Collection)

	// SetFilter replaces the visibility predicate.
	SetFilter(p filter.Predicate)

	// Recenter moves the view.
	Recenter(d RecenterDirective)

	// ShowPopup opens the details popup for one aircraft.
	ShowPopup(d PopupDirective)
}

// CycleObserver is optionally implemented by renderers that show poll status.
type CycleObserver interface {
	CycleCompleted(r CycleReport)
}

// RecenterDirective asks the view to fly to a point.
type RecenterDirective struct {
	Center   coordinates.Geographic `json:"center"`
	Zoom     float64                `json:"zoom"`
	Duration time.Duration          `json:"-"`

	// DurationMillis mirrors Duration for JSON consumers
	DurationMillis int64 `json:"duration_ms"`
}

// NewRecenter builds a RecenterDirective.
func NewRecenter(center coordinates.Geographic, zoom float64, d time.Duration) RecenterDirective {
	return RecenterDirective{Center: center, Zoom: zoom, Duration: d, DurationMillis: d.Milliseconds()}
}

// PopupDirective asks the view to open a popup anchored at Position.
type PopupDirective struct {
	ICAO24   string                 `json:"icao24"`
	Position coordinates.Geographic `json:"position"`
	Details  flight.Details         `json:"details"`
}
