package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/megameal/fireflies/internal/component"
	"github.com/megameal/fireflies/internal/core/ecs"
	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/world"
)

// LifetimeSystem counts down firefly lifespans. An expired firefly is
// despawned (its light fades out once CleanupSystem runs) and a replacement
// is spawned from the same swarm entry, so swarm sizes stay constant.
// Phase 1 (Simulate).
type LifetimeSystem struct {
	swarm   *world.Swarm
	log     *zap.Logger
	expired []ecs.EntityID
	total   int
}

func NewLifetimeSystem(swarm *world.Swarm, log *zap.Logger) *LifetimeSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &LifetimeSystem{swarm: swarm, log: log}
}

func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhaseSimulate }

func (s *LifetimeSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	s.expired = s.expired[:0]
	s.swarm.Lifespans.Each(func(id ecs.EntityID, l *component.Lifespan) {
		if l.Remaining <= 0 {
			return // already queued
		}
		l.Remaining -= secs
		if l.Remaining <= 0 {
			s.expired = append(s.expired, id)
		}
	})

	// stores must not grow while Each is walking them
	for _, id := range s.expired {
		l, _ := s.swarm.Lifespans.Get(id)
		swarm := l.Swarm
		if !s.swarm.Despawn(id) {
			continue
		}
		if _, ok := s.swarm.Respawn(swarm); !ok {
			s.log.Warn("firefly respawn failed", zap.Int("swarm", swarm))
		}
	}
	if n := len(s.expired); n > 0 {
		s.total += n
		s.log.Debug("fireflies expired", zap.Int("count", n), zap.Int("total", s.total))
	}
}

// Expired is how many fireflies have reached the end of their lifespan.
func (s *LifetimeSystem) Expired() int { return s.total }
