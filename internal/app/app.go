// Package app holds the startup wiring shared by the commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/unklstewy/flightmap/internal/db"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/config"
	"github.com/unklstewy/flightmap/pkg/flight"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// LoadConfig loads and validates the configuration file.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the logger described by the logging section.
func NewLogger(cfg config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})
}

// NewSource builds the shared OpenSky client, wrapped in the response
// cache when a TTL is configured.
func NewSource(cfg config.OpenSkyConfig, log *logger.Logger) tracker.Source {
	client := opensky.NewClient(cfg.ClientConfig())

	authenticated := cfg.Username != "" && cfg.Password != ""
	log.Info("OpenSky client configured",
		logger.String("base_url", cfg.BaseURL),
		logger.Bool("authenticated", authenticated),
		logger.Float64("requests_per_second", cfg.RequestsPerSecond))

	if ttl := cfg.CacheTTL(); ttl > 0 {
		log.Info("OpenSky response cache enabled",
			logger.Duration("ttl", ttl),
			logger.Int("size", cfg.CacheSize))
		return opensky.NewCachingSource(client, cfg.CacheSize, ttl)
	}
	return client
}

// SessionConfig converts the tracker section.
func SessionConfig(cfg config.TrackerConfig) tracker.SessionConfig {
	return tracker.SessionConfig{
		Poller: tracker.PollerConfig{
			Interval: cfg.PollInterval(),
			Backoff:  cfg.Backoff(),
		},
		Locator: tracker.LocatorConfig{
			Zoom:               cfg.LocateZoom,
			TransitionDuration: cfg.LocateTransition(),
		},
	}
}

// Directory builds the airline directory with configured additions.
func Directory(cfg *config.Config) *flight.Directory {
	return flight.NewDirectory(cfg.Airlines)
}

// OpenPollLog connects to PostgreSQL and prepares the schema. It returns
// nil without error when the poll log is disabled.
func OpenPollLog(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*db.DB, *db.PollEventRepository, error) {
	if !cfg.Enabled {
		log.Info("Poll log disabled")
		return nil, nil, nil
	}

	database, err := db.ReconnectWithRetry(ctx, cfg, 5, 2*time.Second, log.Named("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.InitSchema(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info("Poll log ready",
		logger.String("host", cfg.Host),
		logger.String("database", cfg.Database),
		logger.Duration("retention", database.Retention()))

	return database, db.NewPollEventRepository(database), nil
}

// RunCleanup deletes expired poll events every interval until ctx is done.
func RunCleanup(ctx context.Context, database *db.DB, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := database.CleanupOldData(ctx, database.Retention())
			if err != nil {
				log.Warn("Poll log cleanup failed", logger.Error(err))
				continue
			}
			if n > 0 {
				log.Info("Poll log cleaned up", logger.Int64("deleted", n))
			}
		}
	}
}
