// Flight map web server.
// Serves the browser map, the REST API and one WebSocket session per tab.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/flightmap/internal/api"
	"github.com/unklstewy/flightmap/internal/app"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/internal/ws"
	"github.com/unklstewy/flightmap/pkg/config"
)

var (
	configPath = flag.String("config", "configs/config.json", "Path to configuration file")
	port       = flag.String("port", "", "HTTP server port (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log = log.Named("web-server")
	log.Info("Starting flight map web server", logger.String("config", *configPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	src := app.NewSource(cfg.OpenSky, log)
	dir := app.Directory(cfg)

	database, events, err := app.OpenPollLog(ctx, cfg.Database, log)
	if err != nil {
		// The map works without the poll log
		log.Warn("Continuing without poll log", logger.Error(err))
	}
	if database != nil {
		defer database.Close()
	}

	var recorder tracker.Recorder
	var lister api.EventLister
	if events != nil {
		recorder = events
		lister = events
	}

	hub := ws.NewHub(src, dir, app.SessionConfig(cfg.Tracker), recorder, log)

	srv := api.NewServer(api.Options{
		Source:         src,
		Directory:      dir,
		WebSocket:      hub,
		Sessions:       hub,
		Events:         lister,
		StaticDir:      cfg.Server.StaticDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if database != nil {
		g.Go(func() error {
			app.RunCleanup(gctx, database, 10*time.Minute, log.Named("db"))
			return nil
		})
	}

	g.Go(func() error {
		log.Info("Server listening",
			logger.String("addr", httpServer.Addr),
			logger.Bool("tls", cfg.Server.TLSEnabled),
			logger.String("static_dir", cfg.Server.StaticDir))

		var err error
		if cfg.Server.TLSEnabled {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
