package main

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightmap/internal/tracker"
	"github.com/unklstewy/flightmap/pkg/coordinates"
	"github.com/unklstewy/flightmap/pkg/feature"
	"github.com/unklstewy/flightmap/pkg/filter"
	"github.com/unklstewy/flightmap/pkg/flight"
	"github.com/unklstewy/flightmap/pkg/tracking"
)

// controller is the part of tracker.Session the viewfinder drives.
type controller interface {
	ViewportChanged(bbox coordinates.BoundingBox) error
	Refresh()
	SetFilter(input string) filter.Predicate
	Locate(ctx context.Context, callsign string) (*tracker.Located, error)
	Select(icao24 string, clicked coordinates.Geographic) (tracker.PopupDirective, error)
}

// Messages sent by programRenderer.
type (
	featuresMsg feature.Collection
	filterMsg   filter.Predicate
	recenterMsg tracker.RecenterDirective
	popupMsg    tracker.PopupDirective
	cycleMsg    tracker.CycleReport
)

type locateResultMsg struct {
	callsign string
	located  *tracker.Located
	err      error
}

type inputMode int

const (
	inputNone inputMode = iota
	inputFilter
	inputLocate
)

// Scope radius limits in nautical miles
const (
	minRadiusNM = 5.0
	maxRadiusNM = 2500.0
)

type model struct {
	session controller
	dir     *flight.Directory

	width  int
	height int

	features  feature.Collection
	predicate filter.Predicate
	viewport  coordinates.BoundingBox
	radiusNM  float64

	// visible is features after the filter, nearest the scope center first
	visible  []feature.Feature
	selected int

	popup *tracker.PopupDirective
	last  *tracker.CycleReport

	mode        inputMode
	inputBuffer string

	// extrapolate draws dead-reckoned positions instead of reported ones
	extrapolate bool

	locating string
	message  string
	isError  bool

	now func() time.Time
}

func newModel(session controller, dir *flight.Directory, viewport coordinates.BoundingBox) model {
	m := model{
		session:  session,
		dir:      dir,
		features: feature.Empty(),
		viewport: viewport,
		width:    120,
		height:   40,
		now:      time.Now,

		extrapolate: true,
	}
	m.radiusNM = radiusOf(viewport)
	return m
}

// radiusOf is the half height of bbox in nautical miles.
func radiusOf(bbox coordinates.BoundingBox) float64 {
	r := (bbox.North - bbox.South) / 2 * 60
	return math.Max(minRadiusNM, math.Min(maxRadiusNM, r))
}

// radiusForZoom maps a web map zoom level to a scope radius.
func radiusForZoom(zoom float64) float64 {
	r := 5400 / math.Pow(2, zoom)
	return math.Max(minRadiusNM, math.Min(maxRadiusNM, r))
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case featuresMsg:
		m.features = feature.Collection(msg)
		m.refreshVisible()

	case filterMsg:
		m.predicate = filter.Predicate(msg)
		m.refreshVisible()

	case recenterMsg:
		m.radiusNM = radiusForZoom(msg.Zoom)
		m.moveTo(msg.Center)

	case popupMsg:
		d := tracker.PopupDirective(msg)
		m.popup = &d
		for i, f := range m.visible {
			if f.Properties.ICAO24 == d.ICAO24 {
				m.selected = i
			}
		}

	case cycleMsg:
		r := tracker.CycleReport(msg)
		m.last = &r

	case locateResultMsg:
		if msg.callsign != m.locating {
			return m, nil
		}
		m.locating = ""
		if msg.err != nil {
			m.setMessage(tracker.UserMessage(msg.err), true)
		} else {
			m.setMessage(fmt.Sprintf("Located %s", msg.located.Popup.Details.Callsign), false)
		}

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		text := m.inputBuffer
		mode := m.mode
		m.mode = inputNone
		m.inputBuffer = ""
		if mode == inputFilter {
			p := m.session.SetFilter(text)
			m.predicate = p
			m.refreshVisible()
			return m, nil
		}
		return m.locate(text)
	case tea.KeyEsc:
		m.mode = inputNone
		m.inputBuffer = ""
	case tea.KeyBackspace:
		if len(m.inputBuffer) > 0 {
			m.inputBuffer = m.inputBuffer[:len(m.inputBuffer)-1]
		}
	case tea.KeySpace:
		m.inputBuffer += " "
	case tea.KeyRunes:
		m.inputBuffer += string(msg.Runes)
	}
	return m, nil
}

func (m model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.message = ""

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "/":
		m.mode = inputFilter
		m.inputBuffer = m.predicate.Input()
	case "f":
		m.mode = inputLocate
		m.inputBuffer = ""
	case "c":
		p := m.session.SetFilter("")
		m.predicate = p
		m.refreshVisible()
	case "r":
		m.session.Refresh()
	case "p":
		m.extrapolate = !m.extrapolate
	case "esc":
		m.popup = nil
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.visible)-1 {
			m.selected++
		}
	case "enter", " ":
		if m.selected < len(m.visible) {
			f := m.visible[m.selected]
			d, err := m.session.Select(f.Properties.ICAO24, f.Position())
			if err != nil {
				m.setMessage(tracker.UserMessage(err), true)
			} else {
				m.popup = &d
			}
		}
	case "+", "=":
		m.radiusNM = math.Max(minRadiusNM, m.radiusNM/1.5)
		m.moveTo(m.viewport.Center())
	case "-", "_":
		m.radiusNM = math.Min(maxRadiusNM, m.radiusNM*1.5)
		m.moveTo(m.viewport.Center())
	case "H":
		m.pan(0, -1)
	case "L":
		m.pan(0, 1)
	case "K":
		m.pan(1, 0)
	case "J":
		m.pan(-1, 0)
	}
	return m, nil
}

// pan moves the scope by half its radius. dLat and dLon are -1, 0 or 1.
func (m *model) pan(dLat, dLon float64) {
	c := m.viewport.Center()
	step := m.radiusNM / 2 / 60
	c.Latitude = math.Max(-85, math.Min(85, c.Latitude+dLat*step))
	c.Longitude = coordinates.NormalizeLongitude(c.Longitude + dLon*step/math.Max(0.1, math.Cos(c.Latitude*coordinates.DegreesToRadians)))
	m.moveTo(c)
}

// moveTo recenters the scope and tells the session about the new viewport.
func (m *model) moveTo(center coordinates.Geographic) {
	bbox := coordinates.BoundingBoxAround(center, m.radiusNM)
	if err := m.session.ViewportChanged(bbox); err != nil {
		m.setMessage(err.Error(), true)
		return
	}
	m.viewport = bbox
	m.refreshVisible()
}

func (m model) locate(callsign string) (tea.Model, tea.Cmd) {
	callsign = strings.TrimSpace(callsign)
	if callsign == "" {
		m.setMessage(tracker.UserMessage(tracker.ErrEmptyCallsign), true)
		return m, nil
	}

	m.locating = callsign
	m.setMessage(fmt.Sprintf("Searching for %s...", strings.ToUpper(callsign)), false)
	session := m.session
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		located, err := session.Locate(ctx, callsign)
		return locateResultMsg{callsign: callsign, located: located, err: err}
	}
}

func (m *model) setMessage(text string, isError bool) {
	m.message = text
	m.isError = isError
}

// refreshVisible re-applies the filter and sorts by distance from the
// scope center, keeping the selection on the same aircraft when possible.
func (m *model) refreshVisible() {
	var keep string
	if m.selected < len(m.visible) {
		keep = m.visible[m.selected].Properties.ICAO24
	}

	center := m.viewport.Center()
	visible := append([]feature.Feature(nil), m.predicate.Apply(m.features).Features...)
	sort.SliceStable(visible, func(i, j int) bool {
		return distanceFrom(center, visible[i]) < distanceFrom(center, visible[j])
	})
	m.visible = visible

	m.selected = 0
	for i, f := range visible {
		if f.Properties.ICAO24 == keep {
			m.selected = i
			break
		}
	}
}

// position is where f is drawn: its reported position, or the
// dead-reckoned one when extrapolation is on.
func (m model) position(f feature.Feature) coordinates.Geographic {
	if !m.extrapolate {
		return f.Position()
	}
	if pred, ok := tracking.Predict(f.Properties, m.now()); ok {
		return pred.Position
	}
	return f.Position()
}

func distanceFrom(center coordinates.Geographic, f feature.Feature) float64 {
	return coordinates.DistanceNauticalMiles(center, coordinates.WrapToward(f.Position(), center))
}

func (m model) View() string {
	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	s.WriteString(titleStyle.Render("FLIGHTMAP VIEWFINDER"))
	s.WriteString("  ")
	s.WriteString(m.renderStatus())
	s.WriteString("\n\n")

	scope := strings.Split(m.renderScope(), "\n")
	info := strings.Split(m.renderInfo(), "\n")
	rows := len(scope)
	if len(info) > rows {
		rows = len(info)
	}
	w := m.scopeWidth()
	for i := 0; i < rows; i++ {
		if i < len(scope) {
			s.WriteString(scope[i])
		} else {
			s.WriteString(strings.Repeat(" ", w))
		}
		s.WriteString("  ")
		if i < len(info) {
			s.WriteString(info[i])
		}
		s.WriteString("\n")
	}

	s.WriteString(m.renderList())
	s.WriteString("\n")
	s.WriteString(m.renderFooter())
	return s.String()
}

func (m model) renderStatus() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	if m.last == nil {
		return dim.Render("waiting for first poll")
	}

	r := m.last
	text := fmt.Sprintf("%s %s  %d aircraft  %s ago", r.Trigger, r.Outcome, m.features.Len(),
		m.now().Sub(r.StartedAt).Truncate(time.Second))

	switch r.Outcome {
	case tracker.OutcomeFailed:
		text = fmt.Sprintf("%s (%s)", text, r.Reason)
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(text)
	case tracker.OutcomeSkipped:
		text = fmt.Sprintf("rate limited until %s", r.CooldownUntil.Local().Format("15:04:05"))
		return lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Render(text)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render(text)
}

// renderInfo is the side panel: scope geometry plus the popup details.
func (m model) renderInfo() string {
	var info strings.Builder

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	info.WriteString(header.Render("SCOPE"))
	info.WriteString("\n")
	c := m.viewport.Center()
	info.WriteString(fmt.Sprintf("Center: %.4f°, %.4f°\n", c.Latitude, c.Longitude))
	info.WriteString(fmt.Sprintf("Radius: %.0f NM\n", m.radiusNM))
	info.WriteString(fmt.Sprintf("Shown:  %d of %d\n", len(m.visible), m.features.Len()))
	if m.extrapolate {
		info.WriteString("Positions extrapolated\n")
	}
	if !m.predicate.IsEmpty() {
		info.WriteString(fmt.Sprintf("Filter: %s", m.predicate.Input()))
		if codes := m.predicate.Codes(); len(codes) > 0 {
			info.WriteString(fmt.Sprintf(" (%s)", strings.Join(codes, ", ")))
		}
		info.WriteString("\n")
	}
	info.WriteString("\n")

	if m.popup == nil {
		return info.String()
	}

	d := m.popup.Details
	info.WriteString(header.Render(d.Callsign))
	info.WriteString("\n")
	label := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	row := func(k, v string) {
		info.WriteString(label.Render(fmt.Sprintf("%-9s", k)))
		info.WriteString(v)
		info.WriteString("\n")
	}
	row("Airline", d.Airline)
	row("Status", d.Status)
	row("Altitude", fmt.Sprintf("%d m (%d ft)", d.AltitudeMeters, d.AltitudeFeet))
	row("Speed", fmt.Sprintf("%d km/h", d.SpeedKmh))
	row("Country", d.Country)
	row("ICAO24", d.ICAO24)
	row("Position", fmt.Sprintf("%.4f°, %.4f°", m.popup.Position.Latitude, m.popup.Position.Longitude))

	return info.String()
}

func (m model) renderList() string {
	var list strings.Builder

	header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	list.WriteString(header.Render("Aircraft"))
	list.WriteString(fmt.Sprintf(" (%d)\n", len(m.visible)))

	if len(m.visible) == 0 {
		list.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("  No aircraft in view"))
		list.WriteString("\n")
		return list.String()
	}

	const rows = 6
	start := 0
	if m.selected > rows/2 && len(m.visible) > rows {
		start = m.selected - rows/2
	}
	end := start + rows
	if end > len(m.visible) {
		end = len(m.visible)
	}

	center := m.viewport.Center()
	for i := start; i < end; i++ {
		f := m.visible[i]
		d := flight.Describe(f.Properties, m.dir)

		prefix := "  "
		if i == m.selected {
			prefix = "→ "
		}
		pos := coordinates.WrapToward(m.position(f), center)
		line := fmt.Sprintf("%s%-8s %-24.24s %6d ft %5d km/h %6.1f nm %3.0f°",
			prefix, d.Callsign, d.Airline, d.AltitudeFeet, d.SpeedKmh,
			coordinates.DistanceNauticalMiles(center, pos), coordinates.Bearing(center, pos))
		if i == m.selected {
			line = lipgloss.NewStyle().Background(lipgloss.Color("237")).Render(line)
		}
		list.WriteString(line)
		list.WriteString("\n")
	}
	return list.String()
}

func (m model) renderFooter() string {
	help := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	switch m.mode {
	case inputFilter:
		prompt := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
		input := lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
		return prompt.Render("Filter (airline name, code or callsign): ") +
			input.Render(m.inputBuffer+"_") + "\n" +
			help.Render("Try: "+strings.Join(flight.QuickFilters, "  ")+"   ENTER: Apply  ESC: Cancel")
	case inputLocate:
		prompt := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
		input := lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
		return prompt.Render("Find flight: ") + input.Render(m.inputBuffer+"_") + "\n" +
			help.Render("ENTER: Search  ESC: Cancel")
	}

	var s strings.Builder
	if m.message != "" {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
		if m.isError {
			style = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		}
		s.WriteString(style.Render(m.message))
		s.WriteString("\n")
	}
	s.WriteString(help.Render("↑/↓: Select  ENTER: Details  /: Filter  C: Clear  F: Find  HJKL: Pan  +/-: Zoom  P: Extrapolate  R: Refresh  Q: Quit"))
	return s.String()
}
