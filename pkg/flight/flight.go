// Package flight defines the normalized aircraft state used across the
// tracker, plus the airline directory and the popup view-model built from it.
package flight

const (
	// NoCallsign is the callsign stored when the upstream record has none.
	NoCallsign = "N/A"

	// UnknownCountry is the origin country stored when the upstream record has none.
	UnknownCountry = "Unknown"
)

// State is one aircraft's reported identity, position and velocity.
// All positions are WGS84 degrees, altitudes are meters, speeds are m/s.
//
// Optional values are pointers: nil means the feed did not report the field.
// Altitude and speed summaries must be able to tell "unknown" from "zero",
// so only Callsign, OriginCountry and TrueTrack are ever defaulted.
type State struct {
	// ICAO24 is the unique 24-bit transponder address (e.g., "4ca7b3")
	ICAO24 string `json:"icao24"`

	// Callsign is the trimmed flight identifier, or NoCallsign
	Callsign string `json:"callsign"`

	// OriginCountry is the country inferred from the ICAO24 address
	OriginCountry string `json:"origin_country"`

	// TimePosition is the Unix time of the last position update
	TimePosition *int64 `json:"time_position"`

	// LastContact is the Unix time of the last message of any kind
	LastContact *int64 `json:"last_contact"`

	Longitude *float64 `json:"longitude"`
	Latitude  *float64 `json:"latitude"`

	// BaroAltitude is the barometric altitude in meters
	BaroAltitude *float64 `json:"baro_altitude"`

	OnGround bool `json:"on_ground"`

	// Velocity is the ground speed in m/s
	Velocity *float64 `json:"velocity"`

	// TrueTrack is degrees clockwise from north (0 when not reported)
	TrueTrack float64 `json:"true_track"`

	// VerticalRate is in m/s, positive when climbing
	VerticalRate *float64 `json:"vertical_rate"`

	// GeoAltitude is the geometric altitude in meters
	GeoAltitude *float64 `json:"geo_altitude"`
}

// HasCallsign reports whether the aircraft broadcast a usable callsign.
func (s State) HasCallsign() bool {
	return s.Callsign != "" && s.Callsign != NoCallsign
}

// Position returns the longitude and latitude, and false if either is absent.
func (s State) Position() (lon, lat float64, ok bool) {
	if s.Longitude == nil || s.Latitude == nil {
		return 0, 0, false
	}
	return *s.Longitude, *s.Latitude, true
}

// Float returns a pointer to v. Handy for building States in code and tests.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int64) *int64 {
	return &v
}
