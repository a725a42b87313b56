package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/flight"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// LocatorConfig controls the recenter animation.
type LocatorConfig struct {
	// Zoom is the zoom level to fly to (default: 8)
	Zoom float64

	// TransitionDuration is the animation length; the popup opens after it
	TransitionDuration time.Duration
}

// Located is the result of a successful Locate.
type Located struct {
	Feature  feature.Feature   `json:"feature"`
	Recenter RecenterDirective `json:"recenter"`
	Popup    PopupDirective    `json:"popup"`
}

// Locator finds a single flight by callsign, merges it into the store and
// flies the view to it.
//
// Only the newest Locate call is honoured: starting a new one cancels the
// search in flight (which then returns ErrSuperseded) and any popup that
// has not opened yet.
type Locator struct {
	src      Source
	store    *Store
	renderer Renderer
	dir      *flight.Directory
	cfg      LocatorConfig
	log      *logger.Logger

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	popup  *time.Timer
}

// NewLocator creates a locator.
func NewLocator(src Source, store *Store, renderer Renderer, dir *flight.Directory, cfg LocatorConfig, log *logger.Logger) *Locator {
	if cfg.Zoom == 0 {
		cfg.Zoom = 8
	}
	if dir == nil {
		dir = flight.DefaultDirectory()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Locator{
		src:      src,
		store:    store,
		renderer: renderer,
		dir:      dir,
		cfg:      cfg,
		log:      log,
	}
}

// Locate searches for callsign and, on success, recenters the view on the
// first match, merges it into the store and schedules its popup.
func (l *Locator) Locate(ctx context.Context, callsign string) (*Located, error) {
	query := strings.TrimSpace(callsign)
	if query == "" {
		return nil, ErrEmptyCallsign
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.cancelPendingLocked()
	l.cancel = cancel
	l.mu.Unlock()

	raw, err := l.src.SearchCallsign(ctx, query)
	if !l.isCurrent(seq) {
		return nil, ErrSuperseded
	}
	if err != nil {
		l.log.Warn("Callsign search failed",
			logger.String("callsign", query),
			logger.String("reason", string(opensky.Classify(err))),
			logger.Error(err))
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if len(raw) == 0 {
		return nil, ErrFlightNotFound
	}

	state := opensky.ParseStateVector(raw[0])
	f, ok := feature.New(state)
	if !ok {
		return nil, ErrLocationUnavailable
	}

	located := &Located{
		Feature:  f,
		Recenter: NewRecenter(f.Position(), l.cfg.Zoom, l.cfg.TransitionDuration),
		Popup: PopupDirective{
			ICAO24:   state.ICAO24,
			Position: f.Position(),
			Details:  flight.Describe(state, l.dir),
		},
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.seq != seq {
		return nil, ErrSuperseded
	}
	l.cancel = nil

	l.renderer.Recenter(located.Recenter)
	l.store.Merge(f)

	popup := located.Popup
	l.popup = time.AfterFunc(l.cfg.TransitionDuration, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.seq == seq {
			l.renderer.ShowPopup(popup)
			l.popup = nil
		}
	})

	l.log.Info("Flight located",
		logger.String("callsign", state.Callsign),
		logger.String("icao24", state.ICAO24),
		logger.Float64("lon", f.Geometry.Coordinates[0]),
		logger.Float64("lat", f.Geometry.Coordinates[1]))

	return located, nil
}

// Cancel drops the search in flight and any pending popup.
func (l *Locator) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	l.cancelPendingLocked()
}

func (l *Locator) isCurrent(seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq == seq
}

func (l *Locator) cancelPendingLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.popup != nil {
		l.popup.Stop()
		l.popup = nil
	}
}
