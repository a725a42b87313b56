// Package feature turns flight states into GeoJSON point features.
package feature

import (
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/flight"
)

// GeoJSON type names.
const (
	TypeFeature           = "Feature"
	TypeFeatureCollection = "FeatureCollection"
	TypePoint             = "Point"
)

// Geometry is a GeoJSON Point. Coordinates are [longitude, latitude].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Feature is one aircraft on the map. Properties carry the full state so a
// renderer can rotate icons by true_track and filter by callsign.
type Feature struct {
	Type       string       `json:"type"`
	Geometry   Geometry     `json:"geometry"`
	Properties flight.State `json:"properties"`
}

// Collection is a GeoJSON FeatureCollection.
//
// A published Collection is treated as immutable: Merge returns a new
// value and never touches the receiver's backing array.
type Collection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Empty returns a collection with no features. Features is non-nil so it
// encodes as [] rather than null.
func Empty() Collection {
	return Collection{Type: TypeFeatureCollection, Features: []Feature{}}
}

// New builds a feature for s, reporting false when s cannot be placed.
//
// A longitude or latitude of exactly 0 is treated as missing, so an
// aircraft sitting exactly on the equator or prime meridian is dropped.
func New(s flight.State) (Feature, bool) {
	lon, lat, ok := s.Position()
	if !ok || lon == 0 || lat == 0 {
		return Feature{}, false
	}

	return Feature{
		Type: TypeFeature,
		Geometry: Geometry{
			Type:        TypePoint,
			Coordinates: [2]float64{lon, lat},
		},
		Properties: s,
	}, true
}

// Build converts states into a collection, keeping input order and
// dropping states New rejects.
func Build(states []flight.State) Collection {
	fc := Collection{Type: TypeFeatureCollection, Features: make([]Feature, 0, len(states))}
	for _, s := range states {
		if f, ok := New(s); ok {
			fc.Features = append(fc.Features, f)
		}
	}
	return fc
}

// Position returns the feature's point.
func (f Feature) Position() coordinates.Geographic {
	return coordinates.Geographic{
		Longitude: f.Geometry.Coordinates[0],
		Latitude:  f.Geometry.Coordinates[1],
	}
}

// Len returns the number of features.
func (c Collection) Len() int {
	return len(c.Features)
}

// Merge returns a new collection in which every feature sharing f's
// callsign is removed and f is appended.
func (c Collection) Merge(f Feature) Collection {
	out := Collection{Type: TypeFeatureCollection, Features: make([]Feature, 0, len(c.Features)+1)}
	for _, existing := range c.Features {
		if existing.Properties.Callsign == f.Properties.Callsign {
			continue
		}
		out.Features = append(out.Features, existing)
	}
	out.Features = append(out.Features, f)
	return out
}

// Find returns the feature with the given icao24.
func (c Collection) Find(icao24 string) (Feature, bool) {
	for _, f := range c.Features {
		if f.Properties.ICAO24 == icao24 {
			return f, true
		}
	}
	return Feature{}, false
}

// Filter returns a new collection holding the features keep accepts.
func (c Collection) Filter(keep func(Feature) bool) Collection {
	out := Collection{Type: TypeFeatureCollection, Features: make([]Feature, 0, len(c.Features))}
	for _, f := range c.Features {
		if keep(f) {
			out.Features = append(out.Features, f)
		}
	}
	return out
}
