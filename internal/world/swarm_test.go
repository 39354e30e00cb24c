package world

import (
	"testing"

	"github.com/megameal/fireflies/internal/component"
	"github.com/megameal/fireflies/internal/core/ecs"
	"github.com/megameal/fireflies/internal/core/event"
	"github.com/megameal/fireflies/internal/data"
	"github.com/megameal/fireflies/internal/geom"
	"github.com/megameal/fireflies/internal/lighting"
)

var testBounds = geom.AABB{Min: geom.V(-100, 0, -100), Max: geom.V(100, 20, 100)}

func entry(n int) data.SwarmEntry {
	return data.SwarmEntry{
		Name:          "test",
		Count:         n,
		Center:        [3]float64{90, 5, 0},
		Spread:        [3]float64{30, 10, 30},
		Palette:       []geom.Color{0x112233, 0x445566},
		Intensity:     [2]float64{1, 2},
		Range:         10,
		CycleDuration: 5,
		MinHeight:     2,
		MaxHeight:     6,
	}
}

func collect(s *Swarm) []lighting.Firefly {
	var out []lighting.Firefly
	s.EachFirefly(func(f lighting.Firefly) { out = append(out, f) })
	return out
}

func TestSpawnEntryRespectsBoundsAndRanges(t *testing.T) {
	s := NewSwarm(testBounds, 42, nil, nil)
	ids := s.SpawnEntry(entry(200))
	if len(ids) != 200 || s.Len() != 200 {
		t.Fatalf("spawned %d, live %d", len(ids), s.Len())
	}
	for _, f := range collect(s) {
		p := f.Position
		if !testBounds.Contains(p) {
			t.Fatalf("%v spawned outside bounds at %v", f.ID, p)
		}
		if p.Y < 2 || p.Y > 6 {
			t.Fatalf("%v height %v outside 2..6", f.ID, p.Y)
		}
		if f.BaseIntensity < 1 || f.BaseIntensity > 2 {
			t.Fatalf("%v intensity %v outside 1..2", f.ID, f.BaseIntensity)
		}
		if f.Color != 0x112233 && f.Color != 0x445566 {
			t.Fatalf("%v colour %06x not from palette", f.ID, uint32(f.Color))
		}
		if f.CyclePhase != 1 {
			t.Fatalf("%v cycle phase %v, want 1 at spawn", f.ID, f.CyclePhase)
		}
	}
}

func TestSpawnIsDeterministicForSeed(t *testing.T) {
	a := collect(spawned(7))
	b := collect(spawned(7))
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("firefly %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func spawned(seed int64) *Swarm {
	s := NewSwarm(testBounds, seed, nil, nil)
	s.SpawnEntry(entry(20))
	return s
}

func TestEachFireflyScalesByCycle(t *testing.T) {
	s := NewSwarm(testBounds, 1, nil, nil)
	id := s.Spawn(geom.V(1, 1, 1),
		component.LightEmitter{Color: 0xffffff, Intensity: 4, Range: 9},
		component.LightCycling{FadeProgress: 0.25},
		component.Floating{})
	f := collect(s)
	if len(f) != 1 || f[0].ID != id {
		t.Fatalf("yielded %+v", f)
	}
	if f[0].BaseIntensity != 1 || f[0].CyclePhase != 0.25 || f[0].Range != 9 {
		t.Errorf("firefly = %+v", f[0])
	}
}

func TestDespawnEmitsAfterFlush(t *testing.T) {
	bus := event.NewBus()
	var gone []ecs.EntityID
	event.Subscribe(bus, func(ev event.FireflyDespawned) { gone = append(gone, ev.EntityID) })

	s := NewSwarm(testBounds, 1, bus, nil)
	ids := s.SpawnEntry(entry(3))
	if !s.Despawn(ids[1]) {
		t.Fatal("Despawn of live firefly returned false")
	}
	s.Despawn(ids[1])
	if n := s.World.FlushDestroyQueue(); n != 1 {
		t.Fatalf("flushed %d, want 1", n)
	}
	if s.Despawn(ids[1]) {
		t.Error("Despawn of dead firefly returned true")
	}
	if s.Len() != 2 || s.Emitters.Has(ids[1]) || s.Positions.Has(ids[1]) {
		t.Error("components survived despawn")
	}

	bus.SwapBuffers()
	bus.DispatchAll()
	if len(gone) != 1 || gone[0] != ids[1] {
		t.Errorf("despawn events = %v", gone)
	}
	if len(collect(s)) != 2 {
		t.Error("despawned firefly still yielded")
	}
}

func TestLifetimeAndRespawn(t *testing.T) {
	s := NewSwarm(testBounds, 9, nil, nil)
	mortal := entry(4)
	mortal.Lifetime = [2]float64{10, 20}
	s.SpawnEntry(entry(2))
	ids := s.SpawnEntry(mortal)

	if s.Lifespans.Len() != 4 {
		t.Fatalf("lifespans = %d, want 4 (immortal swarm has none)", s.Lifespans.Len())
	}
	for _, id := range ids {
		l, ok := s.Lifespans.Get(id)
		if !ok || l.Remaining < 10 || l.Remaining > 20 || l.Swarm != 1 {
			t.Errorf("lifespan of %v = %+v", id, l)
		}
	}

	id, ok := s.Respawn(1)
	if !ok || s.Len() != 7 {
		t.Fatalf("respawn ok=%v len=%d", ok, s.Len())
	}
	if l, ok := s.Lifespans.Get(id); !ok || l.Swarm != 1 {
		t.Errorf("respawned firefly lifespan = %+v", l)
	}
	if _, ok := s.Respawn(5); ok {
		t.Error("respawn from unknown swarm succeeded")
	}
}
