// Package opensky talks to the OpenSky Network REST API and turns its
// positional state vectors into flight.State values.
//
// API Documentation: https://openskynetwork.github.io/opensky-api/rest.html
package opensky

import (
	"context"

	"github.com/unklstewy/flightmap/pkg/coordinates"
)

// DefaultBaseURL is the public OpenSky REST endpoint.
const DefaultBaseURL = "https://opensky-network.org/api"

// StateVector is one raw record from the "states" array, decoded from JSON
// without interpretation. OpenSky sends 17 (sometimes 18) positional values.
type StateVector []any

// Response is the body of GET /states/all.
type Response struct {
	// Time is the Unix time the snapshot refers to
	Time int64 `json:"time"`

	// States is null upstream when nothing is in the box; Fetch normalizes it
	// to an empty slice.
	States []StateVector `json:"states"`
}

// Source is anything that can answer the two upstream queries the tracker
// needs. Client and CachingSource both implement it.
type Source interface {
	// StatesInBox returns every record inside the bounding box.
	StatesInBox(ctx context.Context, bbox coordinates.BoundingBox) ([]StateVector, error)

	// SearchCallsign returns records whose callsign contains the query.
	SearchCallsign(ctx context.Context, callsign string) ([]StateVector, error)
}
