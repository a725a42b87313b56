package flight

import "math"

// Unit conversions used by the details view.
const (
	MetersToFeet = 3.28084
	MpsToKmh     = 3.6
)

// Status values shown in the details view.
const (
	StatusOnGround = "On Ground"
	StatusInFlight = "In Flight"
)

// Details is the presentation-ready summary of one aircraft, handed to
// whatever draws the popup. It carries values, never markup.
type Details struct {
	Callsign string `json:"callsign"`
	Airline  string `json:"airline"`
	Status   string `json:"status"`
	OnGround bool   `json:"on_ground"`

	// AltitudeMeters is barometric altitude, else geometric, else 0
	AltitudeMeters int `json:"altitude_m"`
	AltitudeFeet   int `json:"altitude_ft"`

	// SpeedKmh is 0 when the feed did not report a velocity
	SpeedKmh int `json:"speed_kmh"`

	Country string `json:"country"`
	ICAO24  string `json:"icao24"`
}

// Describe builds the details view for a state.
func Describe(s State, dir *Directory) Details {
	altitude := 0.0
	if s.BaroAltitude != nil {
		altitude = *s.BaroAltitude
	} else if s.GeoAltitude != nil {
		altitude = *s.GeoAltitude
	}

	speed := 0.0
	if s.Velocity != nil {
		speed = *s.Velocity
	}

	status := StatusInFlight
	if s.OnGround {
		status = StatusOnGround
	}

	callsign := s.Callsign
	if callsign == "" {
		callsign = NoCallsign
	}
	country := s.OriginCountry
	if country == "" {
		country = UnknownCountry
	}
	icao := s.ICAO24
	if icao == "" {
		icao = "Unknown"
	}

	return Details{
		Callsign:       callsign,
		Airline:        dir.AirlineFor(callsign),
		Status:         status,
		OnGround:       s.OnGround,
		AltitudeMeters: int(math.Round(altitude)),
		AltitudeFeet:   int(math.Round(altitude * MetersToFeet)),
		SpeedKmh:       int(math.Round(speed * MpsToKmh)),
		Country:        country,
		ICAO24:         icao,
	}
}
