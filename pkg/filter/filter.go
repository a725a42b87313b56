// Package filter compiles free-text airline/callsign input into a
// predicate over map features.
package filter

import (
	"strings"

	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/flight"
)

// Predicate decides which features stay visible. The zero value matches
// everything.
type Predicate struct {
	input string

	// codes holds airline codes matched by the input; when non-empty
	// the callsign needle is not consulted
	codes []string

	// needle is the upper-cased trimmed input
	needle string
}

// Compile turns user input into a Predicate.
//
// Empty input matches everything. Otherwise the input is first looked up in
// the airline directory by code or name, and a callsign containing any of
// the matched codes passes. If no airline matches, a callsign containing
// the input passes.
func Compile(input string, dir *flight.Directory) Predicate {
	p := Predicate{input: input}

	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return p
	}

	p.needle = strings.ToUpper(trimmed)
	if dir != nil {
		p.codes = dir.Match(trimmed)
	}
	return p
}

// Input returns the text the predicate was compiled from.
func (p Predicate) Input() string {
	return p.input
}

// IsEmpty reports whether the predicate matches everything.
func (p Predicate) IsEmpty() bool {
	return p.needle == ""
}

// Codes returns the airline codes the input resolved to.
func (p Predicate) Codes() []string {
	out := make([]string, len(p.codes))
	copy(out, p.codes)
	return out
}

// Match reports whether f passes the filter.
func (p Predicate) Match(f feature.Feature) bool {
	return p.MatchState(f.Properties)
}

// MatchState reports whether s passes the filter.
func (p Predicate) MatchState(s flight.State) bool {
	if p.IsEmpty() {
		return true
	}

	callsign := strings.ToUpper(s.Callsign)
	if len(p.codes) > 0 {
		for _, code := range p.codes {
			if strings.Contains(callsign, code) {
				return true
			}
		}
		return false
	}

	return callsign != "" && strings.Contains(callsign, p.needle)
}

// Apply returns the features of fc that pass the filter.
func (p Predicate) Apply(fc feature.Collection) feature.Collection {
	if p.IsEmpty() {
		return fc
	}
	return fc.Filter(p.Match)
}

// Expression returns the equivalent Mapbox GL filter expression, or nil
// when the map filter should be cleared.
func (p Predicate) Expression() []any {
	if p.IsEmpty() {
		return nil
	}

	upcaseCallsign := []any{"upcase", []any{"get", "callsign"}}

	if len(p.codes) > 0 {
		expr := []any{"any"}
		for _, code := range p.codes {
			expr = append(expr, []any{">=", []any{"index-of", code, upcaseCallsign}, 0})
		}
		return expr
	}

	return []any{
		"all",
		[]any{"has", "callsign"},
		[]any{">=", []any{"index-of", p.needle, upcaseCallsign}, 0},
	}
}
