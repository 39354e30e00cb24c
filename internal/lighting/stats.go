package lighting

import (
	"time"

	"github.com/megameal/fireflies/internal/lightpool"
	"github.com/megameal/fireflies/internal/spatial"
)

// Stats is telemetry for overlays and logs. Nothing should branch on it.
type Stats struct {
	Ticks             uint64
	LightsActive      int // fireflies holding a light, fading ones included
	LightsAvailable   int // budget left: MaxLights - LightsActive, floored at 0
	EntitiesProcessed int // visible after culling, last tick
	Selected          int // candidates accepted, last tick
	CellsTouched      int
	EntitiesChecked   int
	LastTickDuration  time.Duration
	InvalidLastTick   int
	InvalidTotal      uint64
	CapacitySkips     uint64

	Grid spatial.Stats
	Pool lightpool.Occupancy
}

// Stats returns a snapshot including grid and pool state.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Grid = s.grid.Stats()
	st.Pool = s.pool.Snapshot()
	return st
}
