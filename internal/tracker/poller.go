package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// PollerState is the poller's coarse state.
type PollerState string

const (
	StateIdle     PollerState = "idle"
	StateFetching PollerState = "fetching"
)

// PollerConfig controls the polling loop.
type PollerConfig struct {
	// Interval is the periodic refresh interval
	Interval time.Duration

	// Backoff decides the cooldown after rate-limited cycles
	Backoff opensky.BackoffConfig
}

// PollerStatus is a snapshot of the poller.
type PollerStatus struct {
	State         PollerState             `json:"state"`
	Viewport      coordinates.BoundingBox `json:"viewport"`
	Failures      int                     `json:"consecutive_failures"`
	CooldownUntil time.Time               `json:"cooldown_until,omitempty"`
	Last          *CycleReport            `json:"last,omitempty"`
}

type triggerRequest struct {
	trigger Trigger
}

// Poller keeps a Store filled with the aircraft inside the current viewport.
//
// Every trigger (timer tick, viewport change, manual) starts a new cycle
// with a fresh generation and cancels the cycle in flight. A failed fetch
// publishes the empty set. Rate-limited fetches put the poller into a
// cooldown during which triggers are skipped.
type Poller struct {
	src   Source
	store *Store
	cfg   PollerConfig
	log   *logger.Logger

	// OnCycle, when set before Start, receives every cycle report
	OnCycle func(CycleReport)

	now func() time.Time

	triggers chan triggerRequest

	mu            sync.Mutex
	viewport      coordinates.BoundingBox
	hasViewport   bool
	state         PollerState
	inFlight      uint64
	cancelCycle   context.CancelFunc
	failures      int
	cooldownUntil time.Time
	last          *CycleReport

	stop   context.CancelFunc
	cycles sync.WaitGroup
	loop   sync.WaitGroup
}

// NewPoller creates a poller publishing into store.
func NewPoller(src Source, store *Store, cfg PollerConfig, log *logger.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Poller{
		src:      src,
		store:    store,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		triggers: make(chan triggerRequest, 8),
		state:    StateIdle,
	}
}

// Start runs the polling loop until ctx is cancelled or Stop is called.
// Nothing is fetched until a viewport is set.
func (p *Poller) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.stop = cancel
	p.mu.Unlock()

	p.loop.Add(1)
	go p.run(ctx)
}

// Stop ends the loop, cancels the cycle in flight and waits for both.
func (p *Poller) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.mu.Unlock()

	if stop != nil {
		stop()
	}
	p.Wait()
}

// Wait blocks until the loop and every started cycle have returned.
func (p *Poller) Wait() {
	p.loop.Wait()
	p.cycles.Wait()
}

// SetViewport records the viewport and triggers a cycle.
func (p *Poller) SetViewport(bbox coordinates.BoundingBox) {
	p.mu.Lock()
	p.viewport = bbox
	p.hasViewport = true
	p.mu.Unlock()

	p.enqueue(TriggerViewport)
}

// Trigger asks for an immediate cycle.
func (p *Poller) Trigger() {
	p.enqueue(TriggerManual)
}

// Viewport returns the current viewport and whether one has been set.
func (p *Poller) Viewport() (coordinates.BoundingBox, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport, p.hasViewport
}

// Status returns a snapshot of the poller.
func (p *Poller) Status() PollerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := PollerStatus{
		State:         p.state,
		Viewport:      p.viewport,
		Failures:      p.failures,
		CooldownUntil: p.cooldownUntil,
	}
	if p.last != nil {
		last := *p.last
		st.Last = &last
	}
	return st
}

func (p *Poller) enqueue(t Trigger) {
	select {
	case p.triggers <- triggerRequest{trigger: t}:
	default:
		// Queue full: a cycle is about to start anyway.
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.loop.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.cancelCycle != nil {
				p.cancelCycle()
			}
			p.mu.Unlock()
			return
		case <-ticker.C:
			p.poll(ctx, TriggerTimer)
		case req := <-p.triggers:
			p.poll(ctx, req.trigger)
		}
	}
}

// poll starts one cycle unless there is no viewport yet or a cooldown is active.
func (p *Poller) poll(ctx context.Context, trigger Trigger) {
	p.mu.Lock()
	if !p.hasViewport {
		p.mu.Unlock()
		return
	}

	now := p.now()
	if now.Before(p.cooldownUntil) {
		report := CycleReport{
			Trigger:       trigger,
			BBox:          p.viewport,
			Outcome:       OutcomeSkipped,
			Reason:        opensky.ReasonRateLimited,
			StartedAt:     now,
			CooldownUntil: p.cooldownUntil,
		}
		p.mu.Unlock()
		p.emit(report)
		return
	}

	if p.cancelCycle != nil {
		p.cancelCycle()
	}
	gen := p.store.NextGeneration()
	cycleCtx, cancel := context.WithCancel(ctx)
	p.cancelCycle = cancel
	p.inFlight = gen
	p.state = StateFetching
	bbox := p.viewport
	p.cycles.Add(1)
	p.mu.Unlock()

	go p.cycle(cycleCtx, cancel, gen, trigger, bbox, now)
}

func (p *Poller) cycle(ctx context.Context, cancel context.CancelFunc, gen uint64, trigger Trigger, bbox coordinates.BoundingBox, started time.Time) {
	defer p.cycles.Done()
	defer cancel()

	report := CycleReport{
		Generation: gen,
		Trigger:    trigger,
		BBox:       bbox,
		StartedAt:  started,
	}

	raw, err := p.src.StatesInBox(ctx, bbox)
	switch {
	case err != nil && ctx.Err() != nil:
		report.Outcome = OutcomeSuperseded
	case err != nil:
		p.store.Replace(gen, feature.Empty())
		report.Outcome = OutcomeFailed
		report.Reason = opensky.Classify(err)
		report.Err = err
		report.Error = err.Error()
	default:
		fc := feature.Build(opensky.ParseStates(raw))
		report.Features = fc.Len()
		if p.store.Replace(gen, fc) {
			report.Outcome = OutcomeApplied
		} else {
			report.Outcome = OutcomeStale
		}
	}
	report.Duration = p.now().Sub(started)

	p.mu.Lock()
	switch report.Outcome {
	case OutcomeApplied, OutcomeStale:
		p.failures = 0
		p.cooldownUntil = time.Time{}
	case OutcomeFailed:
		p.failures++
		if d := p.cfg.Backoff.Cooldown(err, p.failures); d > 0 {
			p.cooldownUntil = p.now().Add(d)
			report.CooldownUntil = p.cooldownUntil
		}
	}
	if p.inFlight == gen {
		p.state = StateIdle
		p.cancelCycle = nil
	}
	p.mu.Unlock()

	p.emit(report)
}

// emit logs a report, stores it as the latest and hands it to OnCycle.
func (p *Poller) emit(r CycleReport) {
	fields := []logger.Field{
		logger.Int64("generation", int64(r.Generation)),
		logger.String("trigger", string(r.Trigger)),
		logger.String("bbox", r.BBox.String()),
		logger.String("outcome", string(r.Outcome)),
		logger.Int("features", r.Features),
		logger.Duration("duration", r.Duration),
	}

	switch r.Outcome {
	case OutcomeFailed:
		fields = append(fields, logger.String("reason", string(r.Reason)), logger.Error(r.Err))
		if !r.CooldownUntil.IsZero() {
			fields = append(fields, logger.Time("cooldown_until", r.CooldownUntil))
		}
		p.log.Warn("Poll cycle failed, published empty feature set", fields...)
	case OutcomeSkipped:
		p.log.Debug("Poll skipped during rate-limit cooldown", fields...)
	case OutcomeSuperseded, OutcomeStale:
		p.log.Debug("Poll cycle discarded", fields...)
	default:
		p.log.Debug("Poll cycle applied", fields...)
	}

	if r.Outcome != OutcomeSuperseded {
		p.mu.Lock()
		last := r
		p.last = &last
		p.mu.Unlock()
	}

	if p.OnCycle != nil {
		p.OnCycle(r)
	}
}
