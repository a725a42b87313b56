package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/flightmap/internal/app"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/coordinates"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	bboxFlag := flag.String("bbox", "", "Initial viewport as west,south,east,north (overrides config)")
	filterFlag := flag.String("filter", "", "Initial airline or callsign filter")
	logFile := flag.String("log", "logs/tui-viewfinder.log", "Log file (the terminal is used by the UI)")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	viewport := cfg.Viewport.BoundingBox()
	if *bboxFlag != "" {
		if viewport, err = coordinates.ParseBoundingBox(*bboxFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid bbox: %v\n", err)
			os.Exit(1)
		}
	}

	file := cfg.Logging.File
	if file == "" {
		file = *logFile
	}
	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       file,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		FileOnly:   true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log = log.Named("tui")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, events, err := app.OpenPollLog(ctx, cfg.Database, log)
	if err != nil {
		log.Warn("Poll log unavailable, continuing without it", logger.Error(err))
	}
	if database != nil {
		defer database.Close()
	}
	var recorder tracker.Recorder
	if events != nil {
		recorder = events
	}

	dir := app.Directory(cfg)
	renderer := newProgramRenderer()
	defer renderer.close()
	session := tracker.NewSession(fmt.Sprintf("tui-%d", time.Now().Unix()), app.NewSource(cfg.OpenSky, log),
		renderer, dir, app.SessionConfig(cfg.Tracker), log, recorder)

	program := tea.NewProgram(newModel(session, dir, viewport.Clamp()), tea.WithAltScreen())
	renderer.attach(program)

	session.Start(ctx)
	if *filterFlag != "" {
		session.SetFilter(*filterFlag)
	}
	if err := session.ViewportChanged(viewport); err != nil {
		session.Close()
		fmt.Fprintf(os.Stderr, "Invalid viewport: %v\n", err)
		os.Exit(1)
	}

	log.Info("Viewfinder started", logger.String("viewport", viewport.String()))

	_, runErr := program.Run()
	session.Close()
	if runErr != nil {
		log.Error("Viewfinder exited with error", logger.Error(runErr))
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}
