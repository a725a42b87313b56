package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/flightmap/internal/app"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// test-api-rate brackets the shortest poll interval OpenSky accepts for
// the configured viewport without answering 429.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	bboxFlag := flag.String("bbox", "", "Viewport as west,south,east,north (overrides config)")
	minDelay := flag.Float64("min", 5.0, "Minimum delay between calls in seconds")
	maxDelay := flag.Float64("max", 60.0, "Maximum delay between calls in seconds")
	testCalls := flag.Int("calls", 3, "Number of calls per tested interval")
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

	viewport := cfg.Viewport.BoundingBox()
	if *bboxFlag != "" {
		if viewport, err = coordinates.ParseBoundingBox(*bboxFlag); err != nil {
			log.Error("Invalid bbox", logger.String("bbox", *bboxFlag), logger.Error(err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The raw client: the response cache would hide the rate limit
	client := opensky.NewClient(cfg.OpenSky.ClientConfig())

	log.Info("Bracketing OpenSky poll interval",
		logger.String("viewport", viewport.String()),
		logger.Float64("min_seconds", *minDelay),
		logger.Float64("max_seconds", *maxDelay),
		logger.Int("calls", *testCalls),
		logger.Bool("authenticated", cfg.OpenSky.Username != ""))

	probe := func(delay time.Duration) (bool, error) {
		return testCallRate(ctx, client, viewport, delay, *testCalls, log)
	}
	safe := bracket(ctx, probe, *minDelay, *maxDelay, 10, 3*time.Second, log)

	log.Info("Recommended poll interval",
		logger.Float64("poll_interval_seconds", safe),
		logger.Float64("calls_per_minute", 60.0/safe))
	fmt.Printf("\nSet \"poll_interval_seconds\": %.0f in the tracker section of your config.\n", safe+0.5)
}

// bracket bisects between minDelay and maxDelay (seconds) until the
// interval between the fastest safe and slowest failing delay is under
// half a second, or maxIterations is reached. It returns the fastest
// delay that succeeded.
func bracket(ctx context.Context, probe func(time.Duration) (bool, error), minDelay, maxDelay float64, maxIterations int, pause time.Duration, log *logger.Logger) float64 {
	current := maxDelay
	minSafe := maxDelay
	maxFailed := minDelay

	for i := 1; maxFailed < minSafe-0.5 && i <= maxIterations; i++ {
		ok, err := probe(time.Duration(current * float64(time.Second)))
		switch {
		case ok:
			log.Info("Interval accepted", logger.Int("iteration", i), logger.Float64("seconds", current))
			minSafe = current
			current = (current + maxFailed) / 2
		case err != nil:
			log.Warn("Interval failed", logger.Int("iteration", i), logger.Float64("seconds", current), logger.Error(err))
			maxFailed = current
			current = (current + minSafe) / 2
		default:
			log.Warn("Interval rate limited", logger.Int("iteration", i), logger.Float64("seconds", current))
			maxFailed = current
			current = (current + minSafe) / 2
		}

		select {
		case <-ctx.Done():
			return minSafe
		case <-time.After(pause):
		}
	}
	return minSafe
}

// testCallRate makes numCalls viewport fetches spaced by delay.
// It returns false with a nil error when any call is rate limited.
func testCallRate(ctx context.Context, client *opensky.Client, bbox coordinates.BoundingBox, delay time.Duration, numCalls int, log *logger.Logger) (bool, error) {
	for i := 0; i < numCalls; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
		}

		states, err := client.StatesInBox(ctx, bbox)
		if rle, ok := opensky.IsRateLimitError(err); ok {
			log.Debug("Rate limited",
				logger.Duration("retry_after", rle.RetryAfter),
				logger.Int("remaining", rle.Headers.Remaining))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		log.Debug("Call succeeded", logger.Int("call", i+1), logger.Int("states", len(states)))
	}
	return true, nil
}
