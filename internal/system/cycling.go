package system

import (
	"math"
	"time"

	"github.com/megameal/fireflies/internal/component"
	"github.com/megameal/fireflies/internal/core/ecs"
	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/world"
)

// CycleFadeRate is how fast FadeProgress chases its target, per second.
const CycleFadeRate = 0.3

// CyclingSystem advances every firefly's slow light cycle. The resulting
// FadeProgress scales the intensity the lighting scheduler sees.
// Phase 1 (Simulate).
type CyclingSystem struct {
	swarm *world.Swarm
}

func NewCyclingSystem(swarm *world.Swarm) *CyclingSystem {
	return &CyclingSystem{swarm: swarm}
}

func (s *CyclingSystem) Phase() coresys.Phase { return coresys.PhaseSimulate }

func (s *CyclingSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	k := math.Min(CycleFadeRate*secs, 1)
	s.swarm.Cycling.Each(func(_ ecs.EntityID, c *component.LightCycling) {
		c.CycleTime += secs
		if c.MaxCycleTime > 0 && c.CycleTime >= c.MaxCycleTime {
			c.Active = !c.Active
			c.CycleTime = math.Mod(c.CycleTime, c.MaxCycleTime)
		}
		target := 0.0
		if c.Active {
			target = 1
		}
		c.FadeProgress += (target - c.FadeProgress) * k
		c.FadeProgress = math.Min(math.Max(c.FadeProgress, 0), 1)
	})
}
