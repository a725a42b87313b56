package coordinates

import "math"

const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// NauticalMileKm is the length of one nautical mile in kilometers
	NauticalMileKm = 1.852
)

// Geographic is a WGS84 position in decimal degrees, north and east positive.
type Geographic struct {
	Latitude float64 `json:"lat"`

	// Longitude may lie outside [-180, 180] after being wrapped toward a
	// point on a repeated world copy.
	Longitude float64 `json:"lng"`
}

// LngLat returns the position in GeoJSON order.
func (g Geographic) LngLat() [2]float64 {
	return [2]float64{g.Longitude, g.Latitude}
}

// NormalizeAzimuth maps any angle in degrees into [0, 360).
func NormalizeAzimuth(deg float64) float64 {
	if deg = math.Mod(deg, 360.0); deg < 0 {
		deg += 360.0
	}
	return deg
}

// NormalizeLongitude maps any longitude into [-180, 180).
func NormalizeLongitude(lng float64) float64 {
	return NormalizeAzimuth(lng+180.0) - 180.0
}

// radians returns the latitudes and longitudes of a and b in radians.
func radians(a, b Geographic) (lat1, lon1, lat2, lon2 float64) {
	return a.Latitude * DegreesToRadians, a.Longitude * DegreesToRadians,
		b.Latitude * DegreesToRadians, b.Longitude * DegreesToRadians
}

// Bearing is the initial great-circle course from one point to another in
// degrees clockwise from north, in [0, 360).
func Bearing(from, to Geographic) float64 {
	lat1, lon1, lat2, lon2 := radians(from, to)
	dLon := lon2 - lon1

	east := math.Sin(dLon) * math.Cos(lat2)
	north := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeAzimuth(math.Atan2(east, north) * RadiansToDegrees)
}

// DistanceNauticalMiles is the haversine great-circle distance.
func DistanceNauticalMiles(from, to Geographic) float64 {
	lat1, lon1, lat2, lon2 := radians(from, to)

	sinLat := math.Sin((lat2 - lat1) / 2)
	sinLon := math.Sin((lon2 - lon1) / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	angle := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * angle / NauticalMileKm
}
