package opensky

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/unklstewy/flightmap/pkg/flight"
)

// Positional indices inside a state vector.
const (
	idxICAO24 = iota
	idxCallsign
	idxOriginCountry
	idxTimePosition
	idxLastContact
	idxLongitude
	idxLatitude
	idxBaroAltitude
	idxOnGround
	idxVelocity
	idxTrueTrack
	idxVerticalRate
	idxSensors
	idxGeoAltitude
)

// ParseStateVector converts one raw record into a flight.State.
//
// Short records and values of the wrong type degrade to absent fields.
// Only three fields are defaulted: callsign (flight.NoCallsign), origin
// country (flight.UnknownCountry) and true track (0).
func ParseStateVector(raw StateVector) flight.State {
	s := flight.State{
		ICAO24:        stringAt(raw, idxICAO24),
		Callsign:      strings.TrimSpace(stringAt(raw, idxCallsign)),
		OriginCountry: stringAt(raw, idxOriginCountry),
		TimePosition:  intAt(raw, idxTimePosition),
		LastContact:   intAt(raw, idxLastContact),
		Longitude:     floatAt(raw, idxLongitude),
		Latitude:      floatAt(raw, idxLatitude),
		BaroAltitude:  floatAt(raw, idxBaroAltitude),
		OnGround:      boolAt(raw, idxOnGround),
		Velocity:      floatAt(raw, idxVelocity),
		VerticalRate:  floatAt(raw, idxVerticalRate),
		GeoAltitude:   floatAt(raw, idxGeoAltitude),
	}

	if s.Callsign == "" {
		s.Callsign = flight.NoCallsign
	}
	if s.OriginCountry == "" {
		s.OriginCountry = flight.UnknownCountry
	}
	if track := floatAt(raw, idxTrueTrack); track != nil {
		s.TrueTrack = *track
	}

	return s
}

// ParseStates converts a whole response, preserving order.
func ParseStates(raw []StateVector) []flight.State {
	states := make([]flight.State, 0, len(raw))
	for _, r := range raw {
		states = append(states, ParseStateVector(r))
	}
	return states
}

func valueAt(raw StateVector, i int) any {
	if i < 0 || i >= len(raw) {
		return nil
	}
	return raw[i]
}

func stringAt(raw StateVector, i int) string {
	if v, ok := valueAt(raw, i).(string); ok {
		return v
	}
	return ""
}

func boolAt(raw StateVector, i int) bool {
	v, _ := valueAt(raw, i).(bool)
	return v
}

// floatAt accepts the types encoding/json produces for numbers, with or
// without Decoder.UseNumber. NaN and infinities count as absent.
func floatAt(raw StateVector, i int) *float64 {
	var f float64
	switch v := valueAt(raw, i).(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func intAt(raw StateVector, i int) *int64 {
	f := floatAt(raw, i)
	if f == nil {
		return nil
	}
	n := int64(*f)
	return &n
}
