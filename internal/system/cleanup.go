package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/megameal/fireflies/internal/core/ecs"
	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/lighting"
	"github.com/megameal/fireflies/internal/world"
)

// CleanupSystem flushes the deferred entity destruction queue at frame end.
// Destroyed fireflies are dropped from the light scheduler's index so their
// lights fade out. Phase 4 (Cleanup).
type CleanupSystem struct {
	world *ecs.World
	log   *zap.Logger
	total int
}

func NewCleanupSystem(swarm *world.Swarm, sched *lighting.Scheduler, log *zap.Logger) *CleanupSystem {
	if log == nil {
		log = zap.NewNop()
	}
	swarm.World.Registry().OnDestroy(func(id ecs.EntityID) {
		sched.Forget(id)
	})
	return &CleanupSystem{world: swarm.World, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.world.FlushDestroyQueue(); n > 0 {
		s.total += n
		s.log.Debug("fireflies destroyed", zap.Int("count", n), zap.Int("total", s.total))
	}
}
