package world

import (
	"math"
	"math/rand"

	"go.uber.org/zap"

	"github.com/megameal/fireflies/internal/component"
	"github.com/megameal/fireflies/internal/core/ecs"
	"github.com/megameal/fireflies/internal/core/event"
	"github.com/megameal/fireflies/internal/data"
	"github.com/megameal/fireflies/internal/geom"
	"github.com/megameal/fireflies/internal/lighting"
)

// Swarm owns the firefly entities and their component stores.
// Accessed only from the frame loop goroutine, no locks.
type Swarm struct {
	World     *ecs.World
	Positions *ecs.Store[component.Position]
	Velocity  *ecs.Store[component.Velocity]
	Emitters  *ecs.Store[component.LightEmitter]
	Cycling   *ecs.Store[component.LightCycling]
	Floating  *ecs.Store[component.Floating]
	Lifespans *ecs.Store[component.Lifespan]

	entries []data.SwarmEntry // indexed by Lifespan.Swarm
	bounds  geom.AABB
	rng     *rand.Rand
	bus     *event.Bus
	log     *zap.Logger
}

// NewSwarm creates an empty swarm confined to bounds. bus may be nil.
func NewSwarm(bounds geom.AABB, seed int64, bus *event.Bus, log *zap.Logger) *Swarm {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Swarm{
		World:     ecs.NewWorld(),
		Positions: ecs.NewStore[component.Position](),
		Velocity:  ecs.NewStore[component.Velocity](),
		Emitters:  ecs.NewStore[component.LightEmitter](),
		Cycling:   ecs.NewStore[component.LightCycling](),
		Floating:  ecs.NewStore[component.Floating](),
		Lifespans: ecs.NewStore[component.Lifespan](),
		bounds:    bounds,
		rng:       rand.New(rand.NewSource(seed)),
		bus:       bus,
		log:       log,
	}
	reg := s.World.Registry()
	reg.Register(s.Positions)
	reg.Register(s.Velocity)
	reg.Register(s.Emitters)
	reg.Register(s.Cycling)
	reg.Register(s.Floating)
	reg.Register(s.Lifespans)
	reg.OnDestroy(func(id ecs.EntityID) {
		event.Emit(s.bus, event.FireflyDespawned{EntityID: id})
	})
	return s
}

// Bounds is the box fireflies are kept inside.
func (s *Swarm) Bounds() geom.AABB { return s.bounds }

// Len is the number of live fireflies.
func (s *Swarm) Len() int { return s.World.Pool().Len() }

// Spawn creates one firefly with the given components.
func (s *Swarm) Spawn(pos geom.Vec3, em component.LightEmitter, cyc component.LightCycling, fl component.Floating) ecs.EntityID {
	id := s.World.CreateEntity()
	s.Positions.Set(id, component.Position{Vec3: pos})
	s.Velocity.Set(id, component.Velocity{})
	s.Emitters.Set(id, em)
	s.Cycling.Set(id, cyc)
	s.Floating.Set(id, fl)
	return id
}

// SpawnEntry scatters e.Count fireflies around the entry's centre. Entries
// with a lifetime get a Lifespan so Respawn can replace them later.
func (s *Swarm) SpawnEntry(e data.SwarmEntry) []ecs.EntityID {
	if len(e.Palette) == 0 {
		e.Palette = []geom.Color{data.DefaultColor}
	}
	idx := len(s.entries)
	s.entries = append(s.entries, e)
	ids := make([]ecs.EntityID, 0, e.Count)
	for i := 0; i < e.Count; i++ {
		ids = append(ids, s.spawnFrom(idx))
	}
	return ids
}

// Respawn creates one replacement firefly from a previously spawned swarm
// entry. It returns false for an unknown entry.
func (s *Swarm) Respawn(swarm int) (ecs.EntityID, bool) {
	if swarm < 0 || swarm >= len(s.entries) {
		return 0, false
	}
	return s.spawnFrom(swarm), true
}

func (s *Swarm) spawnFrom(idx int) ecs.EntityID {
	e := &s.entries[idx]
	pos := geom.V(
		e.Center[0]+s.spread(e.Spread[0]),
		e.Center[1]+s.spread(e.Spread[1]),
		e.Center[2]+s.spread(e.Spread[2]),
	)
	pos = s.clamp(pos)
	if e.MaxHeight > e.MinHeight {
		pos.Y = math.Min(math.Max(pos.Y, e.MinHeight), e.MaxHeight)
	}
	em := component.LightEmitter{
		Color:     e.Palette[s.rng.Intn(len(e.Palette))],
		Intensity: e.Intensity[0] + s.rng.Float64()*(e.Intensity[1]-e.Intensity[0]),
		Range:     e.Range,
		Decay:     e.Decay,
	}
	cyc := component.LightCycling{
		Active:       true,
		FadeProgress: 1,
		MaxCycleTime: e.CycleDuration,
	}
	if e.CycleDuration > 0 {
		// stagger so a swarm does not flip in unison
		cyc.CycleTime = s.rng.Float64() * e.CycleDuration
	}
	fl := component.Floating{
		Amplitude:    e.FloatAmplitude,
		Frequency:    0.2 + s.rng.Float64()*0.3,
		Phase:        s.rng.Float64() * 2 * math.Pi,
		WanderRadius: e.WanderRadius,
		MinHeight:    e.MinHeight,
		MaxHeight:    e.MaxHeight,
	}
	id := s.Spawn(pos, em, cyc, fl)
	if e.Lifetime[1] > 0 {
		life := e.Lifetime[0] + s.rng.Float64()*(e.Lifetime[1]-e.Lifetime[0])
		s.Lifespans.Set(id, component.Lifespan{Remaining: life, Swarm: idx})
	}
	return id
}

// SpawnTable spawns every entry of t and returns how many fireflies were
// created.
func (s *Swarm) SpawnTable(t *data.SwarmTable) int {
	n := 0
	for _, e := range t.Entries() {
		n += len(s.SpawnEntry(e))
		s.log.Debug("swarm spawned", zap.String("name", e.Name), zap.Int("count", e.Count))
	}
	return n
}

// Despawn queues a firefly for destruction at the end of the frame.
func (s *Swarm) Despawn(id ecs.EntityID) bool {
	if !s.World.Alive(id) {
		return false
	}
	s.World.MarkForDestruction(id)
	return true
}

func (s *Swarm) spread(half float64) float64 {
	if half <= 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * half
}

func (s *Swarm) clamp(p geom.Vec3) geom.Vec3 {
	b := s.bounds
	p.X = math.Min(math.Max(p.X, b.Min.X), b.Max.X)
	p.Y = math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y)
	p.Z = math.Min(math.Max(p.Z, b.Min.Z), b.Max.Z)
	return p
}

// EachFirefly yields the lighting view of every light-emitting firefly in
// store order. A cycling firefly's intensity is scaled by its fade progress.
func (s *Swarm) EachFirefly(fn func(lighting.Firefly)) {
	ecs.Each2(s.Emitters, s.Positions, func(id ecs.EntityID, em *component.LightEmitter, pos *component.Position) {
		f := lighting.Firefly{
			ID:            id,
			Position:      pos.Vec3,
			Color:         em.Color,
			BaseIntensity: em.Intensity,
			Range:         em.Range,
		}
		if cyc, ok := s.Cycling.Get(id); ok {
			f.CyclePhase = cyc.FadeProgress
			f.BaseIntensity *= cyc.FadeProgress
		}
		fn(f)
	})
}

var _ lighting.Source = (*Swarm)(nil)
