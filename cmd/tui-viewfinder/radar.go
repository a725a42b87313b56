package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightmap/pkg/coordinates"
)

// Terminal cells are roughly twice as tall as they are wide.
const aspectRatio = 0.5

const (
	minScopeWidth  = 60
	minScopeHeight = 20
	infoPanelWidth = 44
)

func (m model) scopeWidth() int {
	w := m.width - infoPanelWidth
	if w < minScopeWidth {
		w = minScopeWidth
	}
	return w
}

func (m model) scopeHeight() int {
	h := m.height - 14 // header, list and footer
	if h < minScopeHeight {
		h = minScopeHeight
	}
	return h
}

// scopeScale is screen rows per nautical mile.
func (m model) scopeScale() float64 {
	maxY := float64(m.scopeHeight()/2 - 1)
	maxX := float64((m.scopeWidth()-2)/2-1) * aspectRatio
	return math.Min(maxX, maxY) / m.radiusNM
}

// scopeToScreen places p on the scope grid by distance and bearing from
// the center. It returns -1, -1 when p is off screen.
func (m model) scopeToScreen(p coordinates.Geographic) (int, int) {
	center := m.viewport.Center()
	p = coordinates.WrapToward(p, center)

	distance := coordinates.DistanceNauticalMiles(center, p)
	if distance > m.radiusNM {
		return -1, -1
	}
	bearing := coordinates.Bearing(center, p) * coordinates.DegreesToRadians

	w, h := m.scopeWidth()-2, m.scopeHeight()
	r := distance * m.scopeScale()
	x := w/2 + int(math.Round(r*math.Sin(bearing)/aspectRatio))
	y := h/2 - int(math.Round(r*math.Cos(bearing)))

	if x < 0 || x >= w || y < 0 || y >= h {
		return -1, -1
	}
	return x, y
}

// ringSpacing picks a round ring interval giving at most four rings.
func ringSpacing(radiusNM float64) float64 {
	for _, step := range []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000} {
		if radiusNM/step <= 4 {
			return step
		}
	}
	return 1000
}

// renderScope draws the visible aircraft around the viewport center.
func (m model) renderScope() string {
	var scope strings.Builder

	w, h := m.scopeWidth()-2, m.scopeHeight()
	grid := make([][]rune, h)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", w))
	}

	cx, cy := w/2, h/2
	scale := m.scopeScale()

	step := ringSpacing(m.radiusNM)
	for d := step; d <= m.radiusNM; d += step {
		radius := int(d * scale)
		drawCircle(grid, cx, cy, radius, '─')

		label := fmt.Sprintf("%.0f", d)
		if y := cy - radius; y >= 0 {
			for j, ch := range label {
				setPixel(grid, cx+1+j, y, ch)
			}
		}
	}

	edge := int(m.radiusNM * scale)
	setPixel(grid, cx, cy-edge, 'N')
	setPixel(grid, cx, cy+edge, 'S')
	setPixel(grid, cx+int(float64(edge)/aspectRatio), cy, 'E')
	setPixel(grid, cx-int(float64(edge)/aspectRatio), cy, 'W')
	grid[cy][cx] = '+'

	type tag struct {
		x, y int
		text string
	}
	var tags []tag

	for i, f := range m.visible {
		x, y := m.scopeToScreen(m.position(f))
		if x < 0 {
			continue
		}

		symbol := '○'
		if i == m.selected {
			symbol = '●'
			tags = append(tags, tag{x + 2, y, f.Properties.Callsign})
		}
		if m.popup != nil && m.popup.ICAO24 == f.Properties.ICAO24 {
			symbol = '◉'
		}
		grid[y][x] = symbol

		if f.Properties.Velocity != nil && *f.Properties.Velocity > 25 {
			drawVelocityVector(grid, x, y, f.Properties.TrueTrack, *f.Properties.Velocity)
		}
	}

	for _, t := range tags {
		for j, ch := range t.text {
			if t.x+j < w && (grid[t.y][t.x+j] == ' ' || grid[t.y][t.x+j] == '─') {
				grid[t.y][t.x+j] = ch
			}
		}
	}

	border := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	scope.WriteString(border.Render("┌" + strings.Repeat("─", w) + "┐"))
	scope.WriteString("\n")
	for y := 0; y < h; y++ {
		scope.WriteString(border.Render("│"))
		for x := 0; x < w; x++ {
			scope.WriteString(styleCell(grid[y][x]))
		}
		scope.WriteString(border.Render("│"))
		scope.WriteString("\n")
	}
	scope.WriteString(border.Render("└" + strings.Repeat("─", w) + "┘"))

	return scope.String()
}

func styleCell(ch rune) string {
	var color string
	bold := false

	switch {
	case ch == '+':
		color, bold = "208", true
	case ch == '◉':
		color, bold = "46", true
	case ch == '●':
		color = "226"
	case ch == '○':
		color = "75"
	case ch == '─':
		color = "237"
	case ch == '→' || ch == '·':
		color = "39"
	case ch >= '0' && ch <= '9':
		color = "244"
	case ch >= 'A' && ch <= 'Z':
		color = "226"
	default:
		return string(ch)
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(bold).Render(string(ch))
}

// drawCircle draws a ring with the midpoint circle algorithm, stretching
// X by the cell aspect ratio.
func drawCircle(grid [][]rune, cx, cy, radius int, ch rune) {
	x, y, e := radius, 0, 0
	for x >= y {
		xs := int(float64(x) / aspectRatio)
		ys := int(float64(y) / aspectRatio)

		setPixel(grid, cx+xs, cy+y, ch)
		setPixel(grid, cx+ys, cy+x, ch)
		setPixel(grid, cx-ys, cy+x, ch)
		setPixel(grid, cx-xs, cy+y, ch)
		setPixel(grid, cx-xs, cy-y, ch)
		setPixel(grid, cx-ys, cy-x, ch)
		setPixel(grid, cx+ys, cy-x, ch)
		setPixel(grid, cx+xs, cy-y, ch)

		y++
		e += 1 + 2*y
		if 2*(e-x)+1 > 0 {
			x--
			e += 1 - 2*x
		}
	}
}

// setPixel writes ch when (x, y) is on the grid and the cell is blank or a ring.
func setPixel(grid [][]rune, x, y int, ch rune) {
	if y < 0 || y >= len(grid) || x < 0 || x >= len(grid[y]) {
		return
	}
	if grid[y][x] == ' ' || grid[y][x] == '─' {
		grid[y][x] = ch
	}
}

// drawVelocityVector draws a short heading tick, longer for faster aircraft.
// speed is in m/s.
func drawVelocityVector(grid [][]rune, x, y int, trackDeg, speed float64) {
	length := int(speed/80) + 1
	if length > 4 {
		length = 4
	}

	rad := trackDeg * coordinates.DegreesToRadians
	for i := 1; i <= length; i++ {
		nx := x + int(math.Round(float64(i)*math.Sin(rad)/aspectRatio))
		ny := y - int(math.Round(float64(i)*math.Cos(rad)))
		if ny < 0 || ny >= len(grid) || nx < 0 || nx >= len(grid[ny]) {
			return
		}
		if grid[ny][nx] != ' ' && grid[ny][nx] != '─' {
			continue
		}
		if i == length {
			grid[ny][nx] = '→'
		} else {
			grid[ny][nx] = '·'
		}
	}
}
