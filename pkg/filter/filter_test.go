package filter

import (
	"encoding/json"
	"testing"

	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/flight"
)

func withCallsign(cs string) feature.Feature {
	return feature.Feature{Properties: flight.State{Callsign: cs}}
}

// TestCompileMatch tests matching behaviour for typical inputs.
func TestCompileMatch(t *testing.T) {
	dir := flight.DefaultDirectory()

	tests := []struct {
		name     string
		input    string
		callsign string
		want     bool
	}{
		{"Empty input matches everything", "", "BAW287", true},
		{"Whitespace input matches everything", "   ", "", true},
		{"Airline code", "BAW", "BAW287", true},
		{"Airline code excludes others", "BAW", "CCA910", false},
		{"Airline name", "British Airways", "BAW287", true},
		{"Lower-case airline name", "emirates", "UAE12", true},
		{"Shared name matches any code", "China", "CSN3", true},
		{"Shared name excludes non-matching", "China", "BAW287", false},
		{"Raw callsign fallback", "N123", "N123AB", true},
		{"Raw callsign is case-insensitive", "n123", "N123AB", true},
		{"Raw callsign miss", "N123", "N999", false},
		{"Raw callsign needs a callsign", "Q9", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Compile(tt.input, dir)
			if got := p.Match(withCallsign(tt.callsign)); got != tt.want {
				t.Errorf("Compile(%q).Match(%q): expected %v, got %v", tt.input, tt.callsign, tt.want, got)
			}
		})
	}
}

// TestCompileIdempotent tests that compiling twice gives the same result.
func TestCompileIdempotent(t *testing.T) {
	dir := flight.DefaultDirectory()
	a := Compile("lufthansa", dir)
	b := Compile("lufthansa", dir)

	ja, _ := json.Marshal(a.Expression())
	jb, _ := json.Marshal(b.Expression())
	if string(ja) != string(jb) {
		t.Errorf("Expected identical expressions, got %s and %s", ja, jb)
	}
	if a.Input() != "lufthansa" {
		t.Errorf("Expected input to be preserved, got %q", a.Input())
	}
	if codes := a.Codes(); len(codes) != 1 || codes[0] != "DLH" {
		t.Errorf("Expected [DLH], got %v", codes)
	}
}

// TestExpression tests the exported map filter expression.
func TestExpression(t *testing.T) {
	dir := flight.DefaultDirectory()

	t.Run("Empty clears the filter", func(t *testing.T) {
		if expr := Compile("", dir).Expression(); expr != nil {
			t.Errorf("Expected nil expression, got %v", expr)
		}
	})

	t.Run("Airline match", func(t *testing.T) {
		data, _ := json.Marshal(Compile("BAW", dir).Expression())
		want := `["any",[">=",["index-of","BAW",["upcase",["get","callsign"]]],0]]`
		if string(data) != want {
			t.Errorf("Expected %s, got %s", want, data)
		}
	})

	t.Run("Raw callsign", func(t *testing.T) {
		data, _ := json.Marshal(Compile(" n123 ", dir).Expression())
		want := `["all",["has","callsign"],[">=",["index-of","N123",["upcase",["get","callsign"]]],0]]`
		if string(data) != want {
			t.Errorf("Expected %s, got %s", want, data)
		}
	})
}

// TestApply tests filtering a collection.
func TestApply(t *testing.T) {
	fc := feature.Build([]flight.State{
		{ICAO24: "a", Callsign: "BAW287", Longitude: flight.Float(-0.4), Latitude: flight.Float(51.4)},
		{ICAO24: "b", Callsign: "CCA910", Longitude: flight.Float(116.5), Latitude: flight.Float(40)},
	})

	if out := Compile("", nil).Apply(fc); out.Len() != 2 {
		t.Errorf("Expected 2 features, got %d", out.Len())
	}

	out := Compile("BAW", flight.DefaultDirectory()).Apply(fc)
	if out.Len() != 1 || out.Features[0].Properties.ICAO24 != "a" {
		t.Errorf("Expected only BAW287, got %+v", out.Features)
	}

	var zero Predicate
	if !zero.Match(withCallsign("ANY")) {
		t.Error("Expected zero predicate to match everything")
	}
}
