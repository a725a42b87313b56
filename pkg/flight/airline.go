package flight

import (
	"sort"
	"strings"
)

// Airline is one entry of the airline directory.
type Airline struct {
	// Code is the 3-letter ICAO airline designator used as a callsign prefix
	Code string `json:"code"`

	// Name is the display name (e.g., "British Airways")
	Name string `json:"name"`
}

// defaultAirlines covers the carriers most often seen on the live map.
var defaultAirlines = map[string]string{
	"CCA": "Air China",
	"CSN": "China Southern Airlines",
	"CES": "China Eastern Airlines",
	"CHH": "Hainan Airlines",
	"CSC": "Sichuan Airlines",
	"CXA": "Xiamen Airlines",
	"CDC": "Chengdu Airlines",
	"CBJ": "Capital Airlines",
	"CYZ": "China Postal Airlines",
	"SZX": "Shenzhen Airlines",
	"AFL": "Aeroflot",
	"AFR": "Air France",
	"AAL": "American Airlines",
	"ANA": "All Nippon Airways",
	"BAW": "British Airways",
	"CPA": "Cathay Pacific",
	"DAL": "Delta Air Lines",
	"DLH": "Lufthansa",
	"EZY": "easyJet",
	"ETH": "Ethiopian Airlines",
	"FDX": "FedEx",
	"JAL": "Japan Airlines",
	"KAL": "Korean Air",
	"KLM": "KLM Royal Dutch Airlines",
	"QFA": "Qantas",
	"QTR": "Qatar Airways",
	"RYR": "Ryanair",
	"SIA": "Singapore Airlines",
	"SWA": "Southwest Airlines",
	"THY": "Turkish Airlines",
	"UAE": "Emirates",
	"UAL": "United Airlines",
	"UPS": "UPS",
	"VIR": "Virgin Atlantic",
}

// QuickFilters are the suggested filter inputs shown next to the filter box.
// Both codes and names are accepted by the filter compiler.
var QuickFilters = []string{"BAW", "CCA", "AFL", "Lufthansa", "Emirates"}

// Directory maps airline codes to display names. It is immutable once built,
// so a single Directory can be shared by every session.
type Directory struct {
	airlines []Airline        // sorted by code
	byCode   map[string]string // upper-case code -> name
}

// NewDirectory builds a directory from the built-in airlines plus extra
// entries. Extra entries override built-in names for the same code.
func NewDirectory(extra map[string]string) *Directory {
	byCode := make(map[string]string, len(defaultAirlines)+len(extra))
	for code, name := range defaultAirlines {
		byCode[code] = name
	}
	for code, name := range extra {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		byCode[code] = name
	}

	airlines := make([]Airline, 0, len(byCode))
	for code, name := range byCode {
		airlines = append(airlines, Airline{Code: code, Name: name})
	}
	sort.Slice(airlines, func(i, j int) bool {
		return airlines[i].Code < airlines[j].Code
	})

	return &Directory{airlines: airlines, byCode: byCode}
}

// DefaultDirectory returns the built-in airline directory.
func DefaultDirectory() *Directory {
	return NewDirectory(nil)
}

// Airlines returns all entries ordered by code.
func (d *Directory) Airlines() []Airline {
	out := make([]Airline, len(d.airlines))
	copy(out, d.airlines)
	return out
}

// Len returns the number of airlines in the directory.
func (d *Directory) Len() int {
	return len(d.airlines)
}

// Name returns the display name for a code.
func (d *Directory) Name(code string) (string, bool) {
	name, ok := d.byCode[strings.ToUpper(code)]
	return name, ok
}

// Match returns, ordered by code, every code whose code or name contains
// query. The comparison is case-insensitive; query is expected trimmed.
func (d *Directory) Match(query string) []string {
	q := strings.ToUpper(query)
	if q == "" {
		return nil
	}

	var codes []string
	for _, a := range d.airlines {
		if strings.Contains(strings.ToUpper(a.Code), q) || strings.Contains(strings.ToUpper(a.Name), q) {
			codes = append(codes, a.Code)
		}
	}
	return codes
}

// AirlineFor describes the operator of a callsign from its 3-letter prefix.
// Returns "Unknown" for missing callsigns and "XYZ (Unknown)" for prefixes
// not in the directory.
func (d *Directory) AirlineFor(callsign string) string {
	if callsign == "" || callsign == NoCallsign {
		return "Unknown"
	}

	prefix := strings.ToUpper(callsign)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if name, ok := d.byCode[prefix]; ok {
		return name
	}
	return prefix + " (Unknown)"
}
