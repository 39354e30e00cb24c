package spatial

import (
	"math"
	"sort"
	"time"

	"github.com/megameal/fireflies/internal/geom"
)

// maxCell bounds cell coordinates and spans so rect arithmetic stays in
// range for any radius or box, including infinite ones.
const maxCell = math.MaxInt / 4

// rect is an inclusive range of cell coordinates.
type rect struct {
	minX, maxX int
	minZ, maxZ int
}

// area is a float so huge rectangles compare correctly against the
// occupied cell count.
func (r rect) area() float64 {
	if r.maxX < r.minX || r.maxZ < r.minZ {
		return 0
	}
	return (float64(r.maxX) - float64(r.minX) + 1) * (float64(r.maxZ) - float64(r.minZ) + 1)
}

// clampCell converts a cell coordinate computed in float to an int within
// ±maxCell. NaN maps to 0.
func clampCell(f float64) int {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= maxCell:
		return maxCell
	case f <= -maxCell:
		return -maxCell
	}
	return int(f)
}

func (r rect) contains(c CellCoord) bool {
	return c.X >= r.minX && c.X <= r.maxX && c.Z >= r.minZ && c.Z <= r.maxZ
}

// rectOf converts a world box to the cells it overlaps, grown by margin cells.
func (g *Grid[T]) rectOf(b geom.AABB, margin int) rect {
	lo := g.CoordOf(b.Min)
	hi := g.CoordOf(b.Max)
	return rect{
		minX: lo.X - margin, maxX: hi.X + margin,
		minZ: lo.Z - margin, maxZ: hi.Z + margin,
	}
}

// QueryApproximateFrustum returns every entity inside the camera's view
// volume. Candidate cells come from geom.ApproxBounds plus one cell of
// margin; cameras without an approximation scan the grid's world bounds.
// Each entity in a candidate cell is then tested against the exact frustum.
func (g *Grid[T]) QueryApproximateFrustum(cam geom.Camera) []Entry[T] {
	start := g.now()
	box, ok := geom.ApproxBounds(cam)
	if !ok {
		box = g.bounds
	}
	fr := geom.FrustumOf(cam)
	r := g.rectOf(box, 1)

	var out []Entry[T]
	cells, checked := g.scan(r, func(rec *record[T]) {
		if fr.ContainsPoint(rec.Position) {
			out = append(out, rec.Entry)
		}
	})
	g.recordQuery(start, cells, checked)
	return out
}

// QueryRadius returns every entity within radius of center (inclusive,
// true 3D distance).
func (g *Grid[T]) QueryRadius(center geom.Vec3, radius float64) []Entry[T] {
	if !(radius >= 0) || !center.Finite() {
		return nil
	}
	start := g.now()
	span := clampCell(math.Ceil(radius * g.inv))
	c := g.CoordOf(center)
	r := rect{minX: c.X - span, maxX: c.X + span, minZ: c.Z - span, maxZ: c.Z + span}
	r2 := radius * radius

	var out []Entry[T]
	cells, checked := g.scan(r, func(rec *record[T]) {
		if rec.Position.DistanceSq(center) <= r2 {
			out = append(out, rec.Entry)
		}
	})
	g.recordQuery(start, cells, checked)
	return out
}

// scan visits every entity filed in a cell inside r, X-major then Z, and
// returns how many occupied cells and entities it touched. When r covers
// more cells than are occupied it walks the occupied set instead, sorted
// into the same order, so cost never exceeds the occupied cell count.
func (g *Grid[T]) scan(r rect, visit func(*record[T])) (cells, checked int) {
	walk := func(c *cell) {
		cells++
		for _, id := range c.ids {
			checked++
			visit(g.entries[id])
		}
	}

	if r.area() > float64(len(g.cells)) {
		keys := make([]CellCoord, 0, len(g.cells))
		for k := range g.cells {
			if r.contains(k) {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].X != keys[j].X {
				return keys[i].X < keys[j].X
			}
			return keys[i].Z < keys[j].Z
		})
		for _, k := range keys {
			walk(g.cells[k])
		}
		return cells, checked
	}

	for x := r.minX; x <= r.maxX; x++ {
		for z := r.minZ; z <= r.maxZ; z++ {
			if c := g.cells[CellCoord{X: x, Z: z}]; c != nil {
				walk(c)
			}
		}
	}
	return cells, checked
}

func (g *Grid[T]) recordQuery(start time.Time, cells, checked int) {
	g.stats.LastCellsTouched = cells
	g.stats.LastCullCount = checked
	g.stats.LastQueryTime = g.now().Sub(start)
	g.stats.ActiveCells = len(g.cells)
	g.stats.TotalEntities = len(g.entries)
}
