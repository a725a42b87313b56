package tracker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// TestPollerEndToEnd tests fetch, parse, build and publish for one cycle.
func TestPollerEndToEnd(t *testing.T) {
	var gotBox coordinates.BoundingBox
	src := &fakeSource{box: func(ctx context.Context, call int, bbox coordinates.BoundingBox) ([]opensky.StateVector, error) {
		gotBox = bbox
		return twoRecords(), nil
	}}
	store := NewStore(nil)
	p, reports := quietPoller(src, store)

	p.Start(context.Background())
	defer p.Stop()

	p.SetViewport(europe)
	r := waitReport(t, reports)

	if r.Outcome != OutcomeApplied {
		t.Fatalf("Expected outcome %s, got %s (%v)", OutcomeApplied, r.Outcome, r.Err)
	}
	if r.Trigger != TriggerViewport {
		t.Errorf("Expected trigger %s, got %s", TriggerViewport, r.Trigger)
	}
	if gotBox != europe {
		t.Errorf("Expected bbox %v, got %v", europe, gotBox)
	}

	fc := store.Current()
	if fc.Len() != 1 {
		t.Fatalf("Expected 1 feature, got %d", fc.Len())
	}
	props := fc.Features[0].Properties
	if props.ICAO24 != "abc123" || props.Callsign != "BAW287" {
		t.Errorf("Expected abc123/BAW287, got %s/%s", props.ICAO24, props.Callsign)
	}
	if r.Features != 1 {
		t.Errorf("Expected report to count 1 feature, got %d", r.Features)
	}

	st := p.Status()
	if st.State != StateIdle || st.Last == nil || st.Last.Outcome != OutcomeApplied {
		t.Errorf("Unexpected status %+v", st)
	}
}

// TestPollerNoViewport tests that nothing is fetched before a viewport exists.
func TestPollerNoViewport(t *testing.T) {
	src := &fakeSource{}
	p, reports := quietPoller(src, NewStore(nil))

	p.Start(context.Background())
	p.Trigger()
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if box, _ := src.calls(); box != 0 {
		t.Errorf("Expected no upstream calls, got %d", box)
	}
	select {
	case r := <-reports:
		t.Errorf("Expected no report, got %+v", r)
	default:
	}
}

// TestPollerRateLimited tests fail-safe empty publication and cooldown.
func TestPollerRateLimited(t *testing.T) {
	src := &fakeSource{box: func(ctx context.Context, call int, bbox coordinates.BoundingBox) ([]opensky.StateVector, error) {
		if call == 1 {
			return twoRecords(), nil
		}
		return nil, &opensky.RateLimitError{StatusCode: 429, Message: "Rate limit exceeded", RetryAfter: 10 * time.Minute}
	}}
	store := NewStore(nil)
	p, reports := quietPoller(src, store)

	p.Start(context.Background())
	defer p.Stop()

	p.SetViewport(europe)
	if r := waitReport(t, reports); r.Outcome != OutcomeApplied || store.Current().Len() != 1 {
		t.Fatalf("Expected first cycle to publish 1 feature, got %s with %d", r.Outcome, store.Current().Len())
	}

	p.Trigger()
	r := waitReport(t, reports)

	if r.Outcome != OutcomeFailed {
		t.Fatalf("Expected outcome %s, got %s", OutcomeFailed, r.Outcome)
	}
	if r.Reason != opensky.ReasonRateLimited {
		t.Errorf("Expected reason %s, got %s", opensky.ReasonRateLimited, r.Reason)
	}
	if store.Current().Len() != 0 {
		t.Errorf("Expected empty feature set after failure, got %d", store.Current().Len())
	}
	if r.CooldownUntil.IsZero() || time.Until(r.CooldownUntil) < 9*time.Minute {
		t.Errorf("Expected Retry-After driven cooldown, got %v", r.CooldownUntil)
	}

	p.Trigger()
	skipped := waitReport(t, reports)
	if skipped.Outcome != OutcomeSkipped {
		t.Errorf("Expected outcome %s during cooldown, got %s", OutcomeSkipped, skipped.Outcome)
	}
	if box, _ := src.calls(); box != 2 {
		t.Errorf("Expected no upstream call during cooldown, got %d calls", box)
	}
	if p.Status().Failures != 1 {
		t.Errorf("Expected 1 consecutive failure, got %d", p.Status().Failures)
	}
}

// TestPollerCooldownExpires tests that polling resumes after the cooldown.
func TestPollerCooldownExpires(t *testing.T) {
	src := &fakeSource{box: func(ctx context.Context, call int, bbox coordinates.BoundingBox) ([]opensky.StateVector, error) {
		if call == 1 {
			return nil, &opensky.RateLimitError{Message: "Rate limit exceeded"}
		}
		return twoRecords(), nil
	}}
	p, reports := quietPoller(src, NewStore(nil))

	var offset atomic.Int64
	base := time.Now()
	p.now = func() time.Time { return base.Add(time.Duration(offset.Load())) }

	p.Start(context.Background())
	defer p.Stop()

	p.SetViewport(europe)
	if r := waitReport(t, reports); r.Outcome != OutcomeFailed {
		t.Fatalf("Expected failed cycle, got %s", r.Outcome)
	}

	// Backoff is one minute after the first failure
	offset.Store(int64(61 * time.Second))

	p.Trigger()
	if r := waitReport(t, reports); r.Outcome != OutcomeApplied {
		t.Errorf("Expected polling to resume, got %s", r.Outcome)
	}
	if p.Status().Failures != 0 {
		t.Errorf("Expected failures reset after success, got %d", p.Status().Failures)
	}
}

// TestPollerUnavailableNoCooldown tests that non rate-limit failures do not back off.
func TestPollerUnavailableNoCooldown(t *testing.T) {
	src := &fakeSource{box: func(ctx context.Context, call int, bbox coordinates.BoundingBox) ([]opensky.StateVector, error) {
		return nil, &opensky.UnavailableError{Message: "Failed to fetch data from OpenSky", Err: errors.New("dial tcp")}
	}}
	p, reports := quietPoller(src, NewStore(nil))

	p.Start(context.Background())
	defer p.Stop()

	p.SetViewport(europe)
	r := waitReport(t, reports)
	if r.Outcome != OutcomeFailed || r.Reason != opensky.ReasonUnavailable {
		t.Fatalf("Expected unavailable failure, got %s/%s", r.Outcome, r.Reason)
	}
	if !r.CooldownUntil.IsZero() {
		t.Errorf("Expected no cooldown, got %v", r.CooldownUntil)
	}

	p.Trigger()
	if r := waitReport(t, reports); r.Outcome != OutcomeFailed {
		t.Errorf("Expected an immediate second attempt, got %s", r.Outcome)
	}
}

// TestPollerSupersession tests that a newer trigger cancels the cycle in flight.
func TestPollerSupersession(t *testing.T) {
	started := make(chan struct{})
	src := &fakeSource{box: func(ctx context.Context, call int, bbox coordinates.BoundingBox) ([]opensky.StateVector, error) {
		if call == 1 {
			close(started)
			<-ctx.Done()
			return nil, &opensky.UnavailableError{Message: "cancelled", Err: ctx.Err()}
		}
		return twoRecords(), nil
	}}
	store := NewStore(nil)
	p, reports := quietPoller(src, store)

	p.Start(context.Background())
	defer p.Stop()

	p.SetViewport(europe)
	<-started
	p.SetViewport(coordinates.BoundingBox{West: 0, South: 45, East: 5, North: 52})

	outcomes := map[Outcome]int{}
	for i := 0; i < 2; i++ {
		outcomes[waitReport(t, reports).Outcome]++
	}

	if outcomes[OutcomeSuperseded] != 1 || outcomes[OutcomeApplied] != 1 {
		t.Errorf("Expected one superseded and one applied cycle, got %v", outcomes)
	}
	if store.Current().Len() != 1 {
		t.Errorf("Expected newest result published, got %d features", store.Current().Len())
	}
	if vp, _ := p.Viewport(); vp.West != 0 {
		t.Errorf("Expected newest viewport to be kept, got %v", vp)
	}
}

// TestPollerTimer tests the periodic trigger.
func TestPollerTimer(t *testing.T) {
	src := &fakeSource{box: func(ctx context.Context, call int, bbox coordinates.BoundingBox) ([]opensky.StateVector, error) {
		return twoRecords(), nil
	}}
	p := NewPoller(src, NewStore(nil), PollerConfig{Interval: 20 * time.Millisecond}, nil)
	reports := make(chan CycleReport, 64)
	p.OnCycle = func(r CycleReport) {
		select {
		case reports <- r:
		default:
		}
	}

	p.Start(context.Background())
	defer p.Stop()
	p.SetViewport(europe)

	timerSeen := false
	deadline := time.After(2 * time.Second)
	for !timerSeen {
		select {
		case r := <-reports:
			timerSeen = r.Trigger == TriggerTimer
		case <-deadline:
			t.Fatal("Timed out waiting for a timer-triggered cycle")
		}
	}
}
