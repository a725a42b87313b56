// Package api serves the REST endpoints, the WebSocket endpoint and the
// browser map page.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/unklstewy/flightmap/internal/db"
	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/internal/ws"
	"github.com/unklstewy/flightmap/pkg/flight"
)

// SessionLister reports the live WebSocket sessions.
type SessionLister interface {
	Count() int
	Sessions() []ws.SessionInfo
}

// EventLister reads the poll log.
type EventLister interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]db.PollEvent, error)
}

// Options configures the router. Source and Directory are required.
type Options struct {
	Source    tracker.Source
	Directory *flight.Directory

	// WebSocket handles /ws when set
	WebSocket http.Handler

	// Sessions and Events feed /status; either may be nil
	Sessions SessionLister
	Events   EventLister

	// StaticDir holds the map page; empty disables static serving
	StaticDir string

	AllowedOrigins []string
	Logger         *logger.Logger
}

// Server holds the HTTP routes and their dependencies.
type Server struct {
	router  *chi.Mux
	opts    Options
	log     *logger.Logger
	started time.Time
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	if opts.Directory == nil {
		opts.Directory = flight.DefaultDirectory()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router:  chi.NewRouter(),
		opts:    opts,
		log:     opts.Logger.Named("api"),
		started: time.Now(),
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Use(middleware.Timeout(30 * time.Second))

		r.Get("/flights", s.handleFlights)
		r.Get("/flights/search", s.handleSearch)
		r.Get("/features", s.handleFeatures)
		r.Get("/airlines", s.handleAirlines)
		r.Get("/status", s.handleStatus)
	})

	if s.opts.WebSocket != nil {
		r.Handle("/ws", s.opts.WebSocket)
	}

	if s.opts.StaticDir != "" {
		r.Handle("/*", newStaticHandler(s.opts.StaticDir, s.log))
	}
}
