package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
	"github.com/unklstewy/flightmap/pkg/flight"
)

// SessionConfig groups the per-session settings.
type SessionConfig struct {
	Poller  PollerConfig
	Locator LocatorConfig
}

// Session is the single coordinator for one map view. It owns the feature
// store, the poller, the locator and the active filter, and is the only
// way consumers touch them.
type Session struct {
	id       string
	renderer Renderer
	dir      *flight.Directory
	log      *logger.Logger
	recorder Recorder

	store   *Store
	poller  *Poller
	locator *Locator

	mu        sync.Mutex
	predicate filter.Predicate
}

// NewSession wires a session. recorder may be nil.
func NewSession(id string, src Source, renderer Renderer, dir *flight.Directory, cfg SessionConfig, log *logger.Logger, recorder Recorder) *Session {
	if dir == nil {
		dir = flight.DefaultDirectory()
	}
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.String("session", id))

	s := &Session{
		id:       id,
		renderer: renderer,
		dir:      dir,
		log:      log,
		recorder: recorder,
	}

	s.store = NewStore(renderer.SetFeatures)
	s.poller = NewPoller(src, s.store, cfg.Poller, log.Named("poller"))
	s.poller.OnCycle = s.cycleCompleted
	s.locator = NewLocator(src, s.store, renderer, dir, cfg.Locator, log.Named("locator"))

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Start begins polling. Nothing is fetched until the first viewport arrives.
func (s *Session) Start(ctx context.Context) {
	s.poller.Start(ctx)
}

// Close stops polling and cancels any pending locate.
func (s *Session) Close() {
	s.locator.Cancel()
	s.poller.Stop()
}

// ViewportChanged records a new viewport and polls it immediately.
// Longitudes past ±180 are wrapped and latitudes clamped.
func (s *Session) ViewportChanged(bbox coordinates.BoundingBox) error {
	bbox = bbox.Normalize()
	if bbox.West >= bbox.East || bbox.South >= bbox.North {
		return fmt.Errorf("empty viewport %s", bbox)
	}
	s.poller.SetViewport(bbox)
	return nil
}

// Refresh polls the current viewport now.
func (s *Session) Refresh() {
	s.poller.Trigger()
}

// SetFilter compiles input, stores it and pushes it to the renderer.
func (s *Session) SetFilter(input string) filter.Predicate {
	p := filter.Compile(input, s.dir)

	s.mu.Lock()
	s.predicate = p
	s.mu.Unlock()

	s.renderer.SetFilter(p)
	return p
}

// Filter returns the active predicate.
func (s *Session) Filter() filter.Predicate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.predicate
}

// Locate finds a flight by callsign and flies the view to it.
func (s *Session) Locate(ctx context.Context, callsign string) (*Located, error) {
	return s.locator.Locate(ctx, callsign)
}

// Select opens the popup for a clicked aircraft. The popup is anchored on
// the world copy the user clicked, not on the canonical longitude.
func (s *Session) Select(icao24 string, clicked coordinates.Geographic) (PopupDirective, error) {
	f, ok := s.store.Current().Find(icao24)
	if !ok {
		return PopupDirective{}, ErrFlightNotFound
	}

	d := PopupDirective{
		ICAO24:   icao24,
		Position: coordinates.WrapToward(f.Position(), clicked),
		Details:  flight.Describe(f.Properties, s.dir),
	}
	s.renderer.ShowPopup(d)
	return d, nil
}

// Features returns the latest published feature set.
func (s *Session) Features() feature.Collection {
	return s.store.Current()
}

// VisibleFeatures returns the published set with the active filter applied.
func (s *Session) VisibleFeatures() feature.Collection {
	return s.Filter().Apply(s.store.Current())
}

// Status returns the poller status.
func (s *Session) Status() PollerStatus {
	return s.poller.Status()
}

// Wait blocks until the poller has fully stopped.
func (s *Session) Wait() {
	s.poller.Wait()
}

func (s *Session) cycleCompleted(r CycleReport) {
	r.SessionID = s.id

	if obs, ok := s.renderer.(CycleObserver); ok {
		obs.CycleCompleted(r)
	}

	if s.recorder == nil || r.Outcome == OutcomeSuperseded {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.Record(ctx, r); err != nil {
		s.log.Warn("Failed to record poll cycle", logger.Error(err))
	}
}
