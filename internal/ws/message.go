package ws

import (
	"encoding/json"
	"errors"

	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/filter"
)

// Inbound message types
const (
	TypeViewport = "viewport"
	TypeFilter   = "filter"
	TypeLocate   = "locate"
	TypeSelect   = "select"
	TypeRefresh  = "refresh"
)

// Outbound message types
const (
	TypeFeatures = "features"
	TypeRecenter = "recenter"
	TypePopup    = "popup"
	TypeStatus   = "status"
	TypeError    = "error"
	// TypeFilter is also sent back once the filter is compiled
)

// Message is a server to client message.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Inbound is a client to server message. Data is decoded per type.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ViewportRequest carries the visible map edges.
type ViewportRequest struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// BoundingBox converts the request to a bounding box.
func (v ViewportRequest) BoundingBox() coordinates.BoundingBox {
	return coordinates.BoundingBox{West: v.West, South: v.South, East: v.East, North: v.North}
}

// FilterRequest carries the raw filter text.
type FilterRequest struct {
	Text string `json:"text"`
}

// LocateRequest asks to fly to a callsign.
type LocateRequest struct {
	Callsign string `json:"callsign"`
}

// SelectRequest is a click on an aircraft; Lat/Lng is the clicked point.
type SelectRequest struct {
	ICAO24 string  `json:"icao24"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

// FilterPayload echoes the compiled filter with its map expression.
type FilterPayload struct {
	Input      string   `json:"input"`
	Codes      []string `json:"codes,omitempty"`
	Expression []any    `json:"expression"`
}

func newFilterPayload(p filter.Predicate) FilterPayload {
	return FilterPayload{
		Input:      p.Input(),
		Codes:      p.Codes(),
		Expression: p.Expression(),
	}
}

// StatusPayload is a poll cycle report plus the text to show for failures.
type StatusPayload struct {
	tracker.CycleReport
	Message string `json:"message,omitempty"`
}

// ErrorPayload reports a failed request.
type ErrorPayload struct {
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}

// requestError is a malformed or invalid client message.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &requestError{err: err}
}

// errorMessage returns the user-visible text for err.
func errorMessage(err error) string {
	var re *requestError
	if errors.As(err, &re) {
		return re.Error()
	}
	return tracker.UserMessage(err)
}
