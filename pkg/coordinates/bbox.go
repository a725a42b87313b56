package coordinates

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidBBoxFormat is returned when a bbox string is not four numbers
	ErrInvalidBBoxFormat = errors.New("invalid bbox format, expected: west,south,east,north")

	// ErrBBoxOutOfRange is returned when a bbox coordinate is outside WGS84 bounds
	ErrBBoxOutOfRange = errors.New("coordinates out of valid range")
)

// BoundingBox is a geographic rectangle in WGS84 degrees.
// The wire order is always west, south, east, north.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseBoundingBox parses "west,south,east,north" and validates the ranges.
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, ErrInvalidBBoxFormat
	}

	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return BoundingBox{}, ErrInvalidBBoxFormat
		}
		vals[i] = v
	}

	b := BoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate checks that every edge lies within WGS84 bounds.
func (b BoundingBox) Validate() error {
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 ||
		b.South < -90 || b.South > 90 || b.North < -90 || b.North > 90 {
		return ErrBBoxOutOfRange
	}
	return nil
}

// Clamp returns the box limited to WGS84 bounds. Map viewports zoomed far
// out report edges beyond ±180, which the upstream feed rejects.
func (b BoundingBox) Clamp() BoundingBox {
	return BoundingBox{
		West:  math.Max(-180, math.Min(180, b.West)),
		South: math.Max(-90, math.Min(90, b.South)),
		East:  math.Max(-180, math.Min(180, b.East)),
		North: math.Max(-90, math.Min(90, b.North)),
	}
}

// Normalize shifts both longitude edges by the same multiple of 360 so
// West lies in [-180, 180), then clamps. A box that still crosses the
// antimeridian, or spans the globe, is widened to every longitude since
// the upstream feed cannot query across it. Inverted boxes stay inverted.
func (b BoundingBox) Normalize() BoundingBox {
	shift := 360 * math.Floor((b.West+180)/360)
	b.West -= shift
	b.East -= shift
	if b.West < b.East && (b.East > 180 || b.East-b.West >= 360) {
		b.West, b.East = -180, 180
	}
	return b.Clamp()
}

// String formats the box as "west,south,east,north".
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		strconv.FormatFloat(b.West, 'f', -1, 64),
		strconv.FormatFloat(b.South, 'f', -1, 64),
		strconv.FormatFloat(b.East, 'f', -1, 64),
		strconv.FormatFloat(b.North, 'f', -1, 64))
}

// IsZero reports whether no viewport has been set.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() Geographic {
	return Geographic{
		Latitude:  (b.South + b.North) / 2,
		Longitude: (b.West + b.East) / 2,
	}
}

// Contains reports whether a point lies inside the box, edges included.
func (b BoundingBox) Contains(p Geographic) bool {
	return p.Latitude >= b.South && p.Latitude <= b.North &&
		p.Longitude >= b.West && p.Longitude <= b.East
}

// Scale grows (factor > 1) or shrinks (factor < 1) the box around its
// center. The result is clamped to WGS84 bounds.
func (b BoundingBox) Scale(factor float64) BoundingBox {
	c := b.Center()
	halfLat := (b.North - b.South) / 2 * factor
	halfLon := (b.East - b.West) / 2 * factor
	return BoundingBox{
		West:  c.Longitude - halfLon,
		South: c.Latitude - halfLat,
		East:  c.Longitude + halfLon,
		North: c.Latitude + halfLat,
	}.Clamp()
}

// BoundingBoxAround derives a box from a center point and a radius in
// nautical miles, one minute of latitude per nautical mile.
func BoundingBoxAround(center Geographic, radiusNM float64) BoundingBox {
	latDeg := radiusNM / 60.0
	lonDeg := radiusNM / (60.0 * math.Cos(center.Latitude*DegreesToRadians))

	return BoundingBox{
		West:  center.Longitude - lonDeg,
		South: center.Latitude - latDeg,
		East:  center.Longitude + lonDeg,
		North: center.Latitude + latDeg,
	}.Clamp()
}
