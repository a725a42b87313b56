// Package tracking extrapolates aircraft positions between poll cycles.
package tracking

import (
	"math"
	"time"

	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/flight"
)

// MaxExtrapolation is the longest gap a position is projected across.
// Older reports are drawn where they were last seen.
const MaxExtrapolation = 60 * time.Second

// PredictedPosition is an aircraft's estimated position at a given time.
type PredictedPosition struct {
	// Position is the estimated geographic location
	Position coordinates.Geographic

	// Altitude is the estimated altitude in meters (0 when not reported)
	Altitude float64

	// PredictionTime is when this estimate is valid
	PredictionTime time.Time

	// Age is how far the estimate was projected from the last report
	Age time.Duration

	// Confidence is a measure of prediction reliability (0-1)
	// 1.0 at 0s, 0.5 at 30s, 0.0 at 60s
	Confidence float64
}

// Predict dead-reckons s forward to at, assuming constant ground speed,
// track and vertical rate.
//
// It reports false when s has no position. Without a position timestamp
// or velocity, or when the gap exceeds MaxExtrapolation, the last
// reported position is returned unchanged.
func Predict(s flight.State, at time.Time) (PredictedPosition, bool) {
	lon, lat, ok := s.Position()
	if !ok {
		return PredictedPosition{}, false
	}

	altitude := 0.0
	switch {
	case s.BaroAltitude != nil:
		altitude = *s.BaroAltitude
	case s.GeoAltitude != nil:
		altitude = *s.GeoAltitude
	}

	pred := PredictedPosition{
		Position:       coordinates.Geographic{Latitude: lat, Longitude: lon},
		Altitude:       altitude,
		PredictionTime: at,
		Confidence:     1.0,
	}

	if s.TimePosition == nil || s.Velocity == nil || s.OnGround {
		return pred, true
	}

	age := at.Sub(time.Unix(*s.TimePosition, 0))
	if age <= 0 {
		return pred, true
	}
	pred.Age = age
	if age > MaxExtrapolation {
		pred.Confidence = 0
		return pred, true
	}

	deltaT := age.Seconds()
	pred.Confidence = math.Max(0, 1-deltaT/MaxExtrapolation.Seconds())
	pred.Position.Latitude, pred.Position.Longitude = predictHorizontalPosition(lat, lon, *s.Velocity, s.TrueTrack, deltaT)

	if s.VerticalRate != nil {
		pred.Altitude = math.Max(0, altitude+*s.VerticalRate*deltaT)
	}
	return pred, true
}

// predictHorizontalPosition moves a point along a great circle.
// speed is in m/s, trackDeg clockwise from north, deltaT in seconds.
func predictHorizontalPosition(lat, lon, speed, trackDeg, deltaT float64) (float64, float64) {
	latRad := lat * coordinates.DegreesToRadians
	lonRad := lon * coordinates.DegreesToRadians
	trackRad := trackDeg * coordinates.DegreesToRadians

	angularDistance := speed * deltaT / (coordinates.EarthRadiusKm * 1000.0)

	// lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(track))
	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(angularDistance) +
			math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(trackRad),
	)

	// lon2 = lon1 + atan2(sin(track)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
	newLonRad := lonRad + math.Atan2(
		math.Sin(trackRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	return newLatRad * coordinates.RadiansToDegrees,
		coordinates.NormalizeLongitude(newLonRad * coordinates.RadiansToDegrees)
}
