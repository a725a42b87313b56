package tracker

import (
	"errors"

	"github.com/unklstewy/flightmap/pkg/opensky"
)

var (
	// ErrEmptyCallsign is returned when a locate request has no callsign.
	// No upstream call is made.
	ErrEmptyCallsign = errors.New("callsign is empty")

	// ErrFlightNotFound is returned when no aircraft matches the callsign,
	// or a selected icao24 is not in the current feature set.
	ErrFlightNotFound = errors.New("flight not found")

	// ErrLocationUnavailable is returned when the aircraft exists but has
	// no usable position.
	ErrLocationUnavailable = errors.New("flight location unavailable")

	// ErrSuperseded is returned to a locate call replaced by a newer one.
	ErrSuperseded = errors.New("superseded by a newer request")
)

// UserMessage returns the text to show a user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyCallsign):
		return "Please enter a flight number."
	case errors.Is(err, ErrFlightNotFound):
		return "Flight not found. Check the flight number and try again."
	case errors.Is(err, ErrLocationUnavailable):
		return "Flight found, but its current location is unavailable."
	case errors.Is(err, ErrSuperseded):
		return "Search replaced by a newer one."
	}

	if opensky.Classify(err) == opensky.ReasonRateLimited {
		return "Too many requests to the flight data service. Please wait a moment and try again."
	}
	return "Flight data service is unavailable. Please try again later."
}
