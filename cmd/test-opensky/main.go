package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/unklstewy/flightmap/internal/app"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/flight"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// main is a smoke test of the OpenSky feed: one bounding box query and,
// optionally, one callsign search, each retried with backoff.
func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	bboxFlag := flag.String("bbox", "-0.6,51.3,0.3,51.7", "Bounding box as west,south,east,north")
	callsign := flag.String("callsign", "", "Callsign to search for")
	limit := flag.Int("limit", 10, "Aircraft to print")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.Named("test-opensky")

	bbox, err := coordinates.ParseBoundingBox(*bboxFlag)
	if err != nil {
		log.Error("Invalid bbox", logger.Error(err))
		os.Exit(1)
	}

	client := opensky.NewClient(cfg.OpenSky.ClientConfig())
	dir := app.Directory(cfg)
	backoff := opensky.DefaultBackoffConfig()
	onRetry := func(attempt int, wait time.Duration, err error) {
		log.Warn("Retrying",
			logger.Int("attempt", attempt),
			logger.Duration("wait", wait),
			logger.String("reason", string(opensky.Classify(err))),
			logger.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	center := bbox.Center()
	log.Info("Fetching states", logger.String("bbox", bbox.String()))

	raw, err := opensky.RetryWithBackoffResult(ctx, backoff, onRetry, func() ([]opensky.StateVector, error) {
		return client.StatesInBox(ctx, bbox)
	})
	if err != nil {
		log.Error("Fetch failed", logger.String("reason", string(opensky.Classify(err))), logger.Error(err))
		os.Exit(1)
	}

	fc := feature.Build(opensky.ParseStates(raw))
	log.Info("Fetched states",
		logger.Int("records", len(raw)),
		logger.Int("features", fc.Len()))

	for i, f := range fc.Features {
		if i >= *limit {
			fmt.Printf("... and %d more\n", fc.Len()-*limit)
			break
		}
		printFeature(f, center, dir)
	}

	if *callsign == "" {
		return
	}

	log.Info("Searching callsign", logger.String("callsign", *callsign))
	found, err := opensky.RetryWithBackoffResult(ctx, backoff, onRetry, func() ([]opensky.StateVector, error) {
		return client.SearchCallsign(ctx, *callsign)
	})
	if err != nil {
		log.Error("Search failed", logger.Error(err))
		os.Exit(1)
	}
	if len(found) == 0 {
		fmt.Println("No match")
		return
	}
	state := opensky.ParseStateVector(found[0])
	f, ok := feature.New(state)
	if !ok {
		fmt.Printf("%s found, but its location is unavailable\n", state.Callsign)
		return
	}
	printFeature(f, center, dir)
}

func printFeature(f feature.Feature, center coordinates.Geographic, dir *flight.Directory) {
	d := flight.Describe(f.Properties, dir)
	pos := f.Position()
	fmt.Printf("%-8s %-6s %-28s %6d ft %5d km/h  %6.1f nm %3s  %s\n",
		d.Callsign,
		d.ICAO24,
		d.Airline,
		d.AltitudeFeet,
		d.SpeedKmh,
		coordinates.DistanceNauticalMiles(center, pos),
		cardinal(coordinates.Bearing(center, pos)),
		d.Status)
}

// cardinal converts a bearing in degrees to a 16-point compass direction.
func cardinal(bearing float64) string {
	directions := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	index := int((coordinates.NormalizeAzimuth(bearing) + 11.25) / 22.5)
	return directions[index%16]
}
