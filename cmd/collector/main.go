package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/unklstewy/flightmap/internal/app"
	"github.com/unklstewy/flightmap/internal/db"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// Collector runs one headless session over the configured viewport and
// writes every poll cycle to the poll log. It is useful for watching
// upstream health and rate limiting without a browser attached.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	bboxFlag := flag.String("bbox", "", "Viewport as west,south,east,north (overrides config)")
	filterFlag := flag.String("filter", "", "Airline or callsign filter applied to the logged counts")
	locate := flag.String("locate", "", "Callsign to locate once at startup")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.Named("collector")

	viewport := cfg.Viewport.BoundingBox()
	if *bboxFlag != "" {
		if viewport, err = coordinates.ParseBoundingBox(*bboxFlag); err != nil {
			log.Error("Invalid bbox", logger.String("bbox", *bboxFlag), logger.Error(err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, events, err := app.OpenPollLog(ctx, cfg.Database, log)
	if err != nil {
		log.Error("Failed to open poll log", logger.Error(err))
		os.Exit(1)
	}
	if database != nil {
		defer database.Close()
	}

	var recorder tracker.Recorder
	if events != nil {
		recorder = events
	}

	renderer := &logRenderer{log: log}
	session := tracker.NewSession("collector", app.NewSource(cfg.OpenSky, log), renderer,
		app.Directory(cfg), app.SessionConfig(cfg.Tracker), log, recorder)

	log.Info("Collector starting",
		logger.String("viewport", viewport.String()),
		logger.Duration("interval", cfg.Tracker.PollInterval()),
		logger.Bool("poll_log", database != nil))

	session.Start(ctx)
	if *filterFlag != "" {
		session.SetFilter(*filterFlag)
	}
	if err := session.ViewportChanged(viewport); err != nil {
		log.Error("Invalid viewport", logger.Error(err))
		os.Exit(1)
	}

	if *locate != "" {
		go func() {
			located, err := session.Locate(ctx, *locate)
			if err != nil {
				log.Warn("Locate failed", logger.String("callsign", *locate), logger.String("message", tracker.UserMessage(err)))
				return
			}
			log.Info("Located flight",
				logger.String("callsign", located.Popup.Details.Callsign),
				logger.String("airline", located.Popup.Details.Airline),
				logger.Int("altitude_ft", located.Popup.Details.AltitudeFeet),
				logger.Int("speed_kmh", located.Popup.Details.SpeedKmh))
		}()
	}

	c := &Collector{session: session, renderer: renderer, db: database, log: log}
	c.Run(ctx)

	session.Close()
	log.Info("Collector stopped", logger.Int("cycles", renderer.snapshot().cycles))
}

// Collector prints periodic statistics and trims the poll log.
type Collector struct {
	session  *tracker.Session
	renderer *logRenderer
	db       *db.DB
	log      *logger.Logger
}

// Run blocks until ctx is done.
func (c *Collector) Run(ctx context.Context) {
	statsTicker := time.NewTicker(time.Minute)
	defer statsTicker.Stop()

	if c.db != nil {
		go app.RunCleanup(ctx, c.db, 5*time.Minute, c.log)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-statsTicker.C:
			c.printStats(ctx)
		}
	}
}

func (c *Collector) printStats(ctx context.Context) {
	s := c.renderer.snapshot()
	st := c.session.Status()

	fields := []logger.Field{
		logger.Int("cycles", s.cycles),
		logger.Int("failed", s.failed),
		logger.Int("rate_limited", s.rateLimited),
		logger.Int("features", c.session.Features().Len()),
		logger.Int("visible", c.session.VisibleFeatures().Len()),
		logger.Int("consecutive_failures", st.Failures),
	}
	if !st.CooldownUntil.IsZero() && st.CooldownUntil.After(time.Now()) {
		fields = append(fields, logger.Time("cooldown_until", st.CooldownUntil))
	}

	if c.db != nil {
		stats, err := c.db.GetStats(ctx)
		if err != nil {
			c.log.Warn("Failed to read poll log stats", logger.Error(err))
		} else {
			fields = append(fields, logger.Any("poll_log", stats))
		}
	}

	c.log.Info("Collector stats", fields...)
}

// logRenderer renders a session into the log.
type logRenderer struct {
	log *logger.Logger

	mu          sync.Mutex
	cycles      int
	failed      int
	rateLimited int
	filter      filter.Predicate
}

type rendererStats struct {
	cycles, failed, rateLimited int
}

func (r *logRenderer) snapshot() rendererStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rendererStats{cycles: r.cycles, failed: r.failed, rateLimited: r.rateLimited}
}

func (r *logRenderer) SetFeatures(fc feature.Collection) {
	r.mu.Lock()
	p := r.filter
	r.mu.Unlock()

	r.log.Debug("Features published",
		logger.Int("features", fc.Len()),
		logger.Int("visible", p.Apply(fc).Len()))
}

func (r *logRenderer) SetFilter(p filter.Predicate) {
	r.mu.Lock()
	r.filter = p
	r.mu.Unlock()
	r.log.Info("Filter set", logger.String("input", p.Input()), logger.Any("codes", p.Codes()))
}

func (r *logRenderer) Recenter(d tracker.RecenterDirective) {
	r.log.Info("Recenter",
		logger.Float64("lat", d.Center.Latitude),
		logger.Float64("lng", d.Center.Longitude),
		logger.Float64("zoom", d.Zoom))
}

func (r *logRenderer) ShowPopup(d tracker.PopupDirective) {
	r.log.Info("Popup",
		logger.String("icao24", d.ICAO24),
		logger.String("callsign", d.Details.Callsign),
		logger.String("status", d.Details.Status),
		logger.String("country", d.Details.Country))
}

func (r *logRenderer) CycleCompleted(rep tracker.CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch rep.Outcome {
	case tracker.OutcomeApplied, tracker.OutcomeStale:
		r.cycles++
	case tracker.OutcomeFailed:
		r.cycles++
		r.failed++
		if rep.Reason == opensky.ReasonRateLimited {
			r.rateLimited++
		}
	}
}
