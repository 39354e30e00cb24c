// Package overlay draws a top-down terminal view of the firefly field: grid
// occupancy, lit handles and a status line.
package overlay

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/megameal/fireflies/internal/geom"
	"github.com/megameal/fireflies/internal/lighting"
	"github.com/megameal/fireflies/internal/lightpool"
	"github.com/megameal/fireflies/internal/spatial"
)

// density shades an occupied cell by how many fireflies it holds.
var density = []rune{'.', ':', '-', '=', '+', '*', '#'}

const (
	lightRune  = '●'
	cameraRune = '@'
)

var (
	styleMap    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleStatus = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	styleCamera = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// CameraFunc reports where the viewer is, for the camera marker.
type CameraFunc func() geom.Camera

// Overlay renders scheduler state onto a tcell screen. Frame loop goroutine
// only.
type Overlay struct {
	screen  tcell.Screen
	sched   *lighting.Scheduler
	camera  CameraFunc
	refresh int
	frame   int
	draws   int
}

// New creates an overlay redrawing every refreshTicks frames. camera may be
// nil.
func New(screen tcell.Screen, sched *lighting.Scheduler, camera CameraFunc, refreshTicks int) *Overlay {
	return &Overlay{
		screen:  screen,
		sched:   sched,
		camera:  camera,
		refresh: max(refreshTicks, 1),
	}
}

// Frame counts a frame and redraws when the refresh interval is reached.
func (o *Overlay) Frame() {
	o.frame++
	if o.frame%o.refresh == 0 {
		o.Draw()
	}
}

// Draws is how many times the overlay has rendered.
func (o *Overlay) Draws() int { return o.draws }

// Draw renders the map and status line and shows the screen.
func (o *Overlay) Draw() {
	o.draws++
	s := o.screen
	s.Clear()
	w, h := s.Size()
	if w < 1 || h < 2 {
		s.Show()
		return
	}
	m := newMapper(o.sched.Grid().Bounds(), w, h-1)

	grid := o.sched.Grid()
	cs := grid.CellSize()
	grid.EachCell(func(ci spatial.CellInfo) {
		x, y := m.project((float64(ci.Coord.X)+0.5)*cs, (float64(ci.Coord.Z)+0.5)*cs)
		s.SetContent(x, y, shade(ci.Count), nil, styleMap)
	})

	o.sched.Pool().Handles(func(_ int, _ string, hd lightpool.Handle) {
		if !hd.Visible {
			return
		}
		x, y := m.project(hd.Position.X, hd.Position.Z)
		s.SetContent(x, y, lightRune, nil, lightStyle(hd))
	})

	if o.camera != nil {
		p := o.camera().Position
		x, y := m.project(p.X, p.Z)
		s.SetContent(x, y, cameraRune, nil, styleCamera)
	}

	drawText(s, 0, h-1, w, Status(o.sched.Stats(), o.sched.Config()), styleStatus)
	s.Show()
}

// HandleEvent applies a key press: '+' and '-' change max_lights, 'q' or
// Esc asks to quit. It returns false when the caller should stop.
func (o *Overlay) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch {
		case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
			return false
		case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
			return false
		case ev.Key() == tcell.KeyRune && (ev.Rune() == '+' || ev.Rune() == '-'):
			n := o.sched.Config().MaxLights + 1
			if ev.Rune() == '-' {
				n -= 2
			}
			// rejected values leave the budget unchanged
			_ = o.sched.Reconfigure(lighting.ConfigPatch{MaxLights: &n})
		}
	case *tcell.EventResize:
		o.screen.Sync()
	}
	return true
}

// Status formats the one-line summary shown under the map.
func Status(st lighting.Stats, cfg lighting.Config) string {
	return fmt.Sprintf(" lights %d/%d  pool %d/%d  visible %d  cells %d/%d  tick %s  skips %d  invalid %d ",
		st.LightsActive, cfg.MaxLights,
		st.Pool.Active, st.Pool.Capacity,
		st.EntitiesProcessed,
		st.CellsTouched, st.Grid.ActiveCells,
		st.LastTickDuration.Round(time.Microsecond),
		st.CapacitySkips, st.InvalidTotal)
}

func shade(n int) rune {
	if n <= 0 {
		return ' '
	}
	i := int(math.Log2(float64(n)))
	return density[min(i, len(density)-1)]
}

func lightStyle(h lightpool.Handle) tcell.Style {
	c := h.Color
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(c.R()), int32(c.G()), int32(c.B())))
}

func drawText(s tcell.Screen, x, y, w int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= w {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < w; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}

// mapper projects world XZ onto a w×h character area, X to columns and Z to
// rows.
type mapper struct {
	minX, minZ    float64
	sx, sz        float64
	width, height int
}

func newMapper(b geom.AABB, w, h int) mapper {
	dx := math.Max(b.Max.X-b.Min.X, 1)
	dz := math.Max(b.Max.Z-b.Min.Z, 1)
	return mapper{
		minX:   b.Min.X,
		minZ:   b.Min.Z,
		sx:     float64(w) / dx,
		sz:     float64(h) / dz,
		width:  w,
		height: h,
	}
}

func (m mapper) project(x, z float64) (int, int) {
	col := int(math.Floor((x - m.minX) * m.sx))
	row := int(math.Floor((z - m.minZ) * m.sz))
	return min(max(col, 0), m.width-1), min(max(row, 0), m.height-1)
}
