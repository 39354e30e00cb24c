// Package spatial implements a uniform grid over the XZ plane that tracks
// which entity sits in which cell, so proximity and visibility queries cost
// O(cells touched) instead of O(entities). Cells are created on first
// occupancy and dropped when empty. Accessed only from the frame loop
// goroutine, no locks.
//
// Iteration order inside a cell is insertion order, with swap-remove on
// departure, so queries are deterministic for a given update sequence.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/megameal/fireflies/internal/geom"
	"go.uber.org/zap"
)

// ErrInvalidCellSize is returned by NewGrid for a zero, negative or
// non-finite cell size.
var ErrInvalidCellSize = errors.New("spatial: cell size must be positive")

// CellCoord addresses one grid cell.
type CellCoord struct {
	X, Z int
}

// Entry is one indexed entity as returned by queries.
type Entry[T any] struct {
	ID       uint64
	Position geom.Vec3
	Payload  T
}

type record[T any] struct {
	Entry[T]
	cell CellCoord
}

type cell struct {
	ids         []uint64
	slot        map[uint64]int // id → index in ids
	lastTouched time.Time
}

// Grid indexes entities carrying a payload of type T.
type Grid[T any] struct {
	cellSize float64
	inv      float64
	bounds   geom.AABB
	cells    map[CellCoord]*cell
	entries  map[uint64]*record[T]
	now      func() time.Time
	log      *zap.Logger
	stats    Stats
}

// DefaultBounds mirrors the level extents the grid was tuned for.
var DefaultBounds = geom.AABB{
	Min: geom.Vec3{X: -500, Y: -50, Z: -500},
	Max: geom.Vec3{X: 500, Y: 100, Z: 500},
}

// NewGrid creates an empty grid. bounds is only consulted by frustum queries
// for cameras that have no approximate bounding box.
func NewGrid[T any](cellSize float64, bounds geom.AABB, log *zap.Logger) (*Grid[T], error) {
	if !(cellSize > 0) || math.IsInf(cellSize, 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidCellSize, cellSize)
	}
	if log == nil {
		log = zap.NewNop()
	}
	g := &Grid[T]{
		cellSize: cellSize,
		inv:      1 / cellSize,
		bounds:   bounds,
		cells:    make(map[CellCoord]*cell),
		entries:  make(map[uint64]*record[T], 256),
		now:      time.Now,
		log:      log,
	}
	log.Info("spatial grid initialised",
		zap.Float64("cell_size", cellSize),
		zap.Any("bounds_min", bounds.Min),
		zap.Any("bounds_max", bounds.Max))
	return g, nil
}

func (g *Grid[T]) CellSize() float64 { return g.cellSize }
func (g *Grid[T]) Bounds() geom.AABB { return g.bounds }
func (g *Grid[T]) Len() int          { return len(g.entries) }
func (g *Grid[T]) CellCount() int    { return len(g.cells) }

// CoordOf returns the cell containing p. Coordinates beyond the
// representable range saturate.
func (g *Grid[T]) CoordOf(p geom.Vec3) CellCoord {
	return CellCoord{
		X: clampCell(math.Floor(p.X * g.inv)),
		Z: clampCell(math.Floor(p.Z * g.inv)),
	}
}

// Update inserts or moves an entity. Positions with NaN or infinite
// components are rejected: any previous entry for id is dropped and false
// is returned.
func (g *Grid[T]) Update(id uint64, pos geom.Vec3, payload T) bool {
	if !pos.Finite() {
		g.Remove(id)
		return false
	}
	key := g.CoordOf(pos)
	rec, ok := g.entries[id]
	if !ok {
		rec = &record[T]{Entry: Entry[T]{ID: id}, cell: key}
		g.entries[id] = rec
		g.insert(key, id)
	} else if rec.cell != key {
		g.evict(rec.cell, id)
		g.insert(key, id)
		rec.cell = key
	} else if c := g.cells[key]; c != nil {
		c.lastTouched = g.now()
	}
	rec.Position = pos
	rec.Payload = payload
	return true
}

// Remove deletes an entity, reporting whether it was indexed.
func (g *Grid[T]) Remove(id uint64) bool {
	rec, ok := g.entries[id]
	if !ok {
		return false
	}
	g.evict(rec.cell, id)
	delete(g.entries, id)
	return true
}

// Get returns the indexed entry for id.
func (g *Grid[T]) Get(id uint64) (Entry[T], bool) {
	rec, ok := g.entries[id]
	if !ok {
		return Entry[T]{}, false
	}
	return rec.Entry, true
}

// CellOf returns the cell an entity is currently filed under.
func (g *Grid[T]) CellOf(id uint64) (CellCoord, bool) {
	rec, ok := g.entries[id]
	if !ok {
		return CellCoord{}, false
	}
	return rec.cell, true
}

// Members returns a copy of the ids filed under c, in iteration order.
func (g *Grid[T]) Members(c CellCoord) []uint64 {
	cl := g.cells[c]
	if cl == nil {
		return nil
	}
	out := make([]uint64, len(cl.ids))
	copy(out, cl.ids)
	return out
}

// Clear drops every entity and cell.
func (g *Grid[T]) Clear() {
	clear(g.cells)
	clear(g.entries)
	g.stats.TotalEntities = 0
	g.stats.ActiveCells = 0
}

func (g *Grid[T]) insert(key CellCoord, id uint64) {
	c := g.cells[key]
	if c == nil {
		c = &cell{slot: make(map[uint64]int, 4)}
		g.cells[key] = c
	}
	c.slot[id] = len(c.ids)
	c.ids = append(c.ids, id)
	c.lastTouched = g.now()
}

func (g *Grid[T]) evict(key CellCoord, id uint64) {
	c := g.cells[key]
	if c == nil {
		return
	}
	i, ok := c.slot[id]
	if !ok {
		return
	}
	last := len(c.ids) - 1
	if i != last {
		moved := c.ids[last]
		c.ids[i] = moved
		c.slot[moved] = i
	}
	c.ids = c.ids[:last]
	delete(c.slot, id)
	if len(c.ids) == 0 {
		delete(g.cells, key)
		return
	}
	c.lastTouched = g.now()
}
