package spatial

import (
	"sort"
	"time"
)

// Stats is a diagnostic view of the grid. The Last* fields describe the
// most recent query.
type Stats struct {
	TotalEntities          int
	ActiveCells            int
	LastCellsTouched       int
	LastCullCount          int // entities checked against the precise test
	LastQueryTime          time.Duration
	AverageEntitiesPerCell float64
}

// CellInfo describes one occupied cell.
type CellInfo struct {
	Coord       CellCoord
	Count       int
	LastTouched time.Time
}

func (g *Grid[T]) Stats() Stats {
	s := g.stats
	s.TotalEntities = len(g.entries)
	s.ActiveCells = len(g.cells)
	s.AverageEntitiesPerCell = float64(s.TotalEntities) / float64(max(s.ActiveCells, 1))
	return s
}

// EachCell calls fn for every occupied cell in unspecified order.
func (g *Grid[T]) EachCell(fn func(CellInfo)) {
	for k, c := range g.cells {
		fn(CellInfo{Coord: k, Count: len(c.ids), LastTouched: c.lastTouched})
	}
}

// TopCells returns up to n of the most populated cells, busiest first.
// Ties are broken by coordinate so the result is stable.
func (g *Grid[T]) TopCells(n int) []CellInfo {
	if n <= 0 {
		return nil
	}
	all := make([]CellInfo, 0, len(g.cells))
	g.EachCell(func(ci CellInfo) { all = append(all, ci) })
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Coord.X != b.Coord.X {
			return a.Coord.X < b.Coord.X
		}
		return a.Coord.Z < b.Coord.Z
	})
	if len(all) > n {
		all = all[:n]
	}
	return all
}
