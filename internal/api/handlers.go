package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unklstewy/flightmap/internal/logger"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
	"github.com/unklstewy/flightmap/pkg/flight"
	"github.com/unklstewy/flightmap/pkg/opensky"
)

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

// flightsResponse mirrors the upstream states/all body.
type flightsResponse struct {
	Time   int64                 `json:"time"`
	States []opensky.StateVector `json:"states"`
}

// handleFlights proxies a bounding box query to OpenSky.
func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	bbox, ok := s.parseBBox(w, r)
	if !ok {
		return
	}

	states, err := s.opts.Source.StatesInBox(r.Context(), bbox)
	if err != nil {
		s.respondUpstreamError(w, r, err)
		return
	}
	if states == nil {
		states = []opensky.StateVector{}
	}

	respondJSON(w, http.StatusOK, flightsResponse{
		Time:   time.Now().Unix(),
		States: states,
	})
}

// handleSearch returns the state vectors whose callsign contains the query.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	callsign := strings.TrimSpace(r.URL.Query().Get("callsign"))
	if callsign == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing callsign parameter"})
		return
	}

	states, err := s.opts.Source.SearchCallsign(r.Context(), callsign)
	if err != nil {
		s.respondUpstreamError(w, r, err)
		return
	}
	if states == nil {
		states = []opensky.StateVector{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"callsign": callsign,
		"count":    len(states),
		"states":   states,
	})
}

// handleFeatures runs the full pipeline for a bounding box: fetch, parse,
// build and filter. The optional filter expression is returned in a header.
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	bbox, ok := s.parseBBox(w, r)
	if !ok {
		return
	}

	states, err := s.opts.Source.StatesInBox(r.Context(), bbox)
	if err != nil {
		s.respondUpstreamError(w, r, err)
		return
	}

	fc := feature.Build(opensky.ParseStates(states))

	p := filter.Compile(r.URL.Query().Get("filter"), s.opts.Directory)
	if expr := p.Expression(); expr != nil {
		if raw, err := json.Marshal(expr); err == nil {
			w.Header().Set("X-Filter-Expression", string(raw))
		}
	}

	respondJSON(w, http.StatusOK, p.Apply(fc))
}

// handleAirlines lists the airline directory and the quick filter presets.
func (s *Server) handleAirlines(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"airlines":      s.opts.Directory.Airlines(),
		"count":         s.opts.Directory.Len(),
		"quick_filters": flight.QuickFilters,
	})
}

// handleStatus reports live sessions and, when the poll log is enabled,
// the latest poll cycles.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}

	if s.opts.Sessions != nil {
		status["session_count"] = s.opts.Sessions.Count()
		status["sessions"] = s.opts.Sessions.Sessions()
	}

	if s.opts.Events != nil {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		events, err := s.opts.Events.Recent(r.Context(), r.URL.Query().Get("session"), limit)
		if err != nil {
			s.log.Warn("Failed to read poll log", logger.Error(err))
			status["poll_log_error"] = err.Error()
		} else {
			status["recent_polls"] = events
		}
	}

	respondJSON(w, http.StatusOK, status)
}

// parseBBox reads and validates the bbox query parameter, answering 400
// on failure.
func (s *Server) parseBBox(w http.ResponseWriter, r *http.Request) (coordinates.BoundingBox, bool) {
	raw := r.URL.Query().Get("bbox")
	if raw == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing bbox parameter"})
		return coordinates.BoundingBox{}, false
	}

	bbox, err := coordinates.ParseBoundingBox(raw)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return coordinates.BoundingBox{}, false
	}
	return bbox, true
}

// respondUpstreamError maps a classified upstream failure onto a status.
// Rate limiting answers 429; everything else answers 500.
func (s *Server) respondUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if rle, ok := opensky.IsRateLimitError(err); ok {
		s.log.Warn("Upstream rate limited", logger.String("path", r.URL.Path), logger.Error(err))
		if rle.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())))
		}
		respondJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:      "Rate limit exceeded",
			Details:    rle.Error(),
			RetryAfter: int(rle.RetryAfter.Seconds()),
		})
		return
	}

	s.log.Error("Upstream request failed", logger.String("path", r.URL.Path), logger.Error(err))

	var ue *opensky.UnavailableError
	if errors.As(err, &ue) {
		if ue.StatusCode == http.StatusUnauthorized {
			respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Authentication failed"})
			return
		}
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: ue.Message, Details: ue.Details})
		return
	}

	respondJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "Failed to fetch data from OpenSky",
		Details: err.Error(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
