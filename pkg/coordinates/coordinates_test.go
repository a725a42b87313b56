package coordinates

import (
	"math"
	"testing"
)

// TestWrapLongitude tests shifting a stored longitude toward a reference.
func TestWrapLongitude(t *testing.T) {
	tests := []struct {
		name      string
		stored    float64
		reference float64
		want      float64
	}{
		{"Already close", 10, 12, 10},
		{"Across the antimeridian eastward", -179, 179, 181},
		{"Across the antimeridian westward", 179, -179, -181},
		{"Two world copies east", 0, 725, 720},
		{"Two world copies west", 0, -725, -720},
		{"Exactly 180 apart stays", 0, 180, 0},
		{"Reference far west of stored", 350, 0, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WrapLongitude(tt.stored, tt.reference)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Expected %f, got %f", tt.want, got)
			}
			if math.Abs(tt.reference-got) > 180 {
				t.Errorf("Expected result within 180 of %f, got %f", tt.reference, got)
			}
			turns := (got - tt.stored) / 360
			if math.Abs(turns-math.Round(turns)) > 1e-9 {
				t.Errorf("Expected a whole number of turns, got %f", turns)
			}
		})
	}

	t.Run("Non-finite input unchanged", func(t *testing.T) {
		if got := WrapLongitude(10, math.NaN()); got != 10 {
			t.Errorf("Expected 10, got %f", got)
		}
		if got := WrapLongitude(math.Inf(1), 0); !math.IsInf(got, 1) {
			t.Errorf("Expected +Inf, got %f", got)
		}
	})
}

// TestParseBoundingBox tests parsing and range checks on bbox strings.
func TestParseBoundingBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"Valid", "-10.5,35,30,60", nil},
		{"Spaces allowed", " -10 , 35 , 30 , 60 ", nil},
		{"Too few values", "1,2,3", ErrInvalidBBoxFormat},
		{"Not a number", "a,2,3,4", ErrInvalidBBoxFormat},
		{"Empty", "", ErrInvalidBBoxFormat},
		{"Longitude out of range", "-181,0,10,10", ErrBBoxOutOfRange},
		{"Latitude out of range", "0,-91,10,10", ErrBBoxOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBoundingBox(tt.input)
			if err != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("Round trip through String", func(t *testing.T) {
		b, err := ParseBoundingBox("-10.5,35,30,60")
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if b.String() != "-10.5,35,30,60" {
			t.Errorf("Expected -10.5,35,30,60, got %s", b.String())
		}
	})
}

// TestBoundingBoxHelpers tests center, containment, scaling and clamping.
func TestBoundingBoxHelpers(t *testing.T) {
	b := BoundingBox{West: -10, South: 40, East: 10, North: 60}

	c := b.Center()
	if c.Latitude != 50 || c.Longitude != 0 {
		t.Errorf("Expected center (50, 0), got (%f, %f)", c.Latitude, c.Longitude)
	}
	if !b.Contains(Geographic{Latitude: 51.47, Longitude: -0.45}) {
		t.Error("Expected London inside the box")
	}
	if b.Contains(Geographic{Latitude: 25.25, Longitude: 55.36}) {
		t.Error("Expected Dubai outside the box")
	}

	zoomed := b.Scale(0.5)
	if zoomed.West != -5 || zoomed.East != 5 || zoomed.South != 45 || zoomed.North != 55 {
		t.Errorf("Unexpected scaled box: %+v", zoomed)
	}

	wide := b.Scale(100)
	if err := wide.Validate(); err != nil {
		t.Errorf("Expected scaled box to be clamped, got %v", err)
	}

	if !(BoundingBox{}).IsZero() || b.IsZero() {
		t.Error("IsZero mismatch")
	}
}

// TestBoundingBoxNormalize tests wrapping longitudes past the antimeridian.
func TestBoundingBoxNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   BoundingBox
		want BoundingBox
	}{
		{"In range", BoundingBox{-10, 40, 10, 60}, BoundingBox{-10, 40, 10, 60}},
		{"Shifted one turn east", BoundingBox{350, 40, 390, 60}, BoundingBox{-10, 40, 30, 60}},
		{"Shifted one turn west", BoundingBox{-370, 40, -350, 60}, BoundingBox{-10, 40, 10, 60}},
		{"West on the antimeridian", BoundingBox{180, 40, 190, 60}, BoundingBox{-180, 40, -170, 60}},
		{"Crossing the antimeridian", BoundingBox{170, -10, 190, 10}, BoundingBox{-180, -10, 180, 10}},
		{"Crossing from the west", BoundingBox{-190, -10, -170, 10}, BoundingBox{-180, -10, 180, 10}},
		{"Whole world", BoundingBox{-200, -100, 200, 100}, BoundingBox{-180, -90, 180, 90}},
		{"Latitude clamped", BoundingBox{0, -95, 10, 95}, BoundingBox{0, -90, 10, 90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	inverted := BoundingBox{West: 10, South: 40, East: -10, North: 60}.Normalize()
	if inverted.West < inverted.East {
		t.Errorf("Expected inverted box to stay inverted, got %v", inverted)
	}
}

// TestBoundingBoxAround tests deriving a viewport from a center and radius.
func TestBoundingBoxAround(t *testing.T) {
	b := BoundingBoxAround(Geographic{Latitude: 0, Longitude: 0}, 60)
	if math.Abs(b.North-1) > 1e-9 || math.Abs(b.South+1) > 1e-9 {
		t.Errorf("Expected ±1° latitude, got %+v", b)
	}
	if math.Abs(b.East-1) > 1e-9 || math.Abs(b.West+1) > 1e-9 {
		t.Errorf("Expected ±1° longitude at the equator, got %+v", b)
	}
}

// TestDistanceAndBearing tests great-circle helpers.
func TestDistanceAndBearing(t *testing.T) {
	from := Geographic{Latitude: 0, Longitude: 0}
	to := Geographic{Latitude: 1, Longitude: 0}

	if d := DistanceNauticalMiles(from, to); math.Abs(d-60) > 0.1 {
		t.Errorf("Expected ~60 NM for one degree of latitude, got %f", d)
	}
	if b := Bearing(from, to); math.Abs(b) > 1e-6 {
		t.Errorf("Expected bearing 0 (north), got %f", b)
	}
	if b := Bearing(from, Geographic{Latitude: 0, Longitude: 1}); math.Abs(b-90) > 1e-6 {
		t.Errorf("Expected bearing 90 (east), got %f", b)
	}
	if n := NormalizeLongitude(190); math.Abs(n+170) > 1e-9 {
		t.Errorf("Expected -170, got %f", n)
	}
}
