package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// fakeSource lets each test decide how upstream calls behave.
type fakeSource struct {
	mu          sync.Mutex
	boxCalls    int
	searchCalls int
	box         func(ctx context.Context, call int, bbox coordinates.BoundingBox) ([]opensky.StateVector, error)
	search      func(ctx context.Context, call int, callsign string) ([]opensky.StateVector, error)
}

func (s *fakeSource) StatesInBox(ctx context.Context, bbox coordinates.BoundingBox) ([]opensky.StateVector, error) {
	s.mu.Lock()
	s.boxCalls++
	call := s.boxCalls
	s.mu.Unlock()
	if s.box == nil {
		return nil, nil
	}
	return s.box(ctx, call, bbox)
}

func (s *fakeSource) SearchCallsign(ctx context.Context, callsign string) ([]opensky.StateVector, error) {
	s.mu.Lock()
	s.searchCalls++
	call := s.searchCalls
	s.mu.Unlock()
	if s.search == nil {
		return nil, nil
	}
	return s.search(ctx, call, callsign)
}

func (s *fakeSource) calls() (box, search int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boxCalls, s.searchCalls
}

// fakeRenderer records every directive it receives.
type fakeRenderer struct {
	mu        sync.Mutex
	features  []feature.Collection
	filters   []filter.Predicate
	recenters []RecenterDirective
	popups    chan PopupDirective
	reports   chan CycleReport
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{
		popups:  make(chan PopupDirective, 8),
		reports: make(chan CycleReport, 16),
	}
}

func (r *fakeRenderer) SetFeatures(fc feature.Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.features = append(r.features, fc)
}

func (r *fakeRenderer) SetFilter(p filter.Predicate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, p)
}

func (r *fakeRenderer) Recenter(d RecenterDirective) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recenters = append(r.recenters, d)
}

func (r *fakeRenderer) ShowPopup(d PopupDirective) {
	r.popups <- d
}

func (r *fakeRenderer) CycleCompleted(rep CycleReport) {
	r.reports <- rep
}

func (r *fakeRenderer) lastFeatures() (feature.Collection, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.features) == 0 {
		return feature.Collection{}, 0
	}
	return r.features[len(r.features)-1], len(r.features)
}

func waitReport(t *testing.T, ch <-chan CycleReport) CycleReport {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for cycle report")
		return CycleReport{}
	}
}

var europe = coordinates.BoundingBox{West: -10, South: 40, East: 10, North: 60}

// twoRecords is one placeable and one unplaceable aircraft.
func twoRecords() []opensky.StateVector {
	return []opensky.StateVector{
		{"abc123", "BAW287  ", "United Kingdom", 1700000000.0, 1700000001.0, -0.45, 51.47, 10668.0, false, 230.5, 270.0, 0.0, nil, 11000.0},
		{"def456", "CCA910  ", "China", nil, 1700000001.0, nil, nil, 9000.0, false, 220.0, 90.0, 0.0, nil, 9100.0},
	}
}

func quietPoller(src Source, store *Store) (*Poller, chan CycleReport) {
	p := NewPoller(src, store, PollerConfig{
		Interval: time.Hour,
		Backoff: opensky.BackoffConfig{
			InitialDelay:      time.Minute,
			MaxDelay:          time.Hour,
			Multiplier:        2,
			RespectRetryAfter: true,
		},
	}, nil)
	reports := make(chan CycleReport, 16)
	p.OnCycle = func(r CycleReport) { reports <- r }
	return p, reports
}
