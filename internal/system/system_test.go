package system

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/megameal/fireflies/internal/component"
	"github.com/megameal/fireflies/internal/core/ecs"
	"github.com/megameal/fireflies/internal/core/event"
	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/data"
	"github.com/megameal/fireflies/internal/geom"
	"github.com/megameal/fireflies/internal/lighting"
	"github.com/megameal/fireflies/internal/lightpool"
	"github.com/megameal/fireflies/internal/persist"
	"github.com/megameal/fireflies/internal/spatial"
	"github.com/megameal/fireflies/internal/world"
)

var bounds = geom.AABB{Min: geom.V(-50, 0, -50), Max: geom.V(50, 20, 50)}

func TestReflect(t *testing.T) {
	tests := []struct {
		x, v, wantX, wantV float64
	}{
		{5, 1, 5, 1},
		{-2, -3, 2, 3},
		{12, 4, 8, -4},
		{-30, -1, 10, 1},
	}
	for _, tt := range tests {
		x, v := reflect(tt.x, tt.v, 0, 10)
		if x != tt.wantX || v != tt.wantV {
			t.Errorf("reflect(%v,%v) = %v,%v; want %v,%v", tt.x, tt.v, x, v, tt.wantX, tt.wantV)
		}
	}
}

func TestDriftKeepsFirefliesInBand(t *testing.T) {
	sw := world.NewSwarm(bounds, 1, nil, nil)
	id := sw.Spawn(geom.V(49, 3, 0),
		component.LightEmitter{Intensity: 1},
		component.LightCycling{Active: true, FadeProgress: 1},
		component.Floating{Amplitude: 2, Frequency: 1, WanderRadius: 40, MinHeight: 2, MaxHeight: 4})
	drift := NewDriftSystem(sw)

	for i := 0; i < 600; i++ {
		drift.Update(50 * time.Millisecond)
		p, _ := sw.Positions.Get(id)
		if !bounds.Contains(p.Vec3) {
			t.Fatalf("step %d: left world at %v", i, p.Vec3)
		}
		if p.Y < 2 || p.Y > 4 {
			t.Fatalf("step %d: height %v outside band", i, p.Y)
		}
	}
}

func TestDriftIntegratesPlainVelocity(t *testing.T) {
	sw := world.NewSwarm(bounds, 1, nil, nil)
	id := sw.World.CreateEntity()
	sw.Positions.Set(id, component.Position{Vec3: geom.V(0, 5, 0)})
	sw.Velocity.Set(id, component.Velocity{Vec3: geom.V(2, 0, -1)})

	NewDriftSystem(sw).Update(500 * time.Millisecond)
	p, _ := sw.Positions.Get(id)
	if p.Vec3 != geom.V(1, 5, -0.5) {
		t.Errorf("position = %v", p.Vec3)
	}
}

func TestCyclingFlipsAndFades(t *testing.T) {
	sw := world.NewSwarm(bounds, 1, nil, nil)
	id := sw.Spawn(geom.V(0, 1, 0), component.LightEmitter{Intensity: 1},
		component.LightCycling{Active: true, FadeProgress: 1, MaxCycleTime: 2},
		component.Floating{})
	cyc := NewCyclingSystem(sw)

	cyc.Update(1500 * time.Millisecond)
	c, _ := sw.Cycling.Get(id)
	if !c.Active || c.FadeProgress != 1 {
		t.Fatalf("before flip: %+v", *c)
	}
	cyc.Update(time.Second)
	c, _ = sw.Cycling.Get(id)
	if c.Active {
		t.Fatal("did not flip after MaxCycleTime")
	}
	if math.Abs(c.CycleTime-0.5) > 1e-9 {
		t.Errorf("cycle time = %v, want remainder 0.5", c.CycleTime)
	}
	if want := 1 - 0.3; math.Abs(c.FadeProgress-want) > 1e-9 {
		t.Errorf("fade = %v, want %v", c.FadeProgress, want)
	}
	for i := 0; i < 10; i++ {
		cyc.Update(100 * time.Millisecond)
	}
	c, _ = sw.Cycling.Get(id)
	if c.FadeProgress < 0 || c.FadeProgress >= 0.7 {
		t.Errorf("fade after dimming = %v", c.FadeProgress)
	}
}

func TestCameraViewsModes(t *testing.T) {
	rig := &geom.CameraRig{Radius: 10, Height: 5, Template: geom.Camera{FOV: 60, Aspect: 2, Near: 0.1, Far: 100}}

	if _, err := NewCameraViews("fisheye", rig, 10); err == nil {
		t.Error("unknown mode accepted")
	}
	if _, err := NewCameraViews(ViewOrthographic, rig, 0); err == nil {
		t.Error("orthographic without extent accepted")
	}

	v, _ := NewCameraViews(ViewPerspective, rig, 0)
	if view := v.View(time.Second); view.Camera == nil || view.Camera.Projection != geom.Perspective {
		t.Errorf("perspective view = %+v", view)
	}

	v, _ = NewCameraViews(ViewOrthographic, rig, 30)
	view := v.View(time.Second)
	if view.Camera == nil || view.Camera.Projection != geom.Orthographic ||
		view.Camera.HalfHeight != 30 || view.Camera.HalfWidth != 60 {
		t.Errorf("orthographic view = %+v", view.Camera)
	}

	v, _ = NewCameraViews(ViewRadius, rig, 0)
	view = v.View(0)
	if view.Camera != nil || view.Radius != 0 || view.Center != rig.Camera().Position {
		t.Errorf("radius view = %+v", view)
	}
}

type memSink struct {
	writes [][]persist.TelemetrySample
	err    error
}

func (m *memSink) WriteSamples(_ context.Context, s []persist.TelemetrySample) error {
	if m.err != nil {
		return m.err
	}
	m.writes = append(m.writes, append([]persist.TelemetrySample(nil), s...))
	return nil
}

type staticView struct{ v lighting.View }

func (s staticView) View(time.Duration) lighting.View { return s.v }

type pipeline struct {
	swarm  *world.Swarm
	sched  *lighting.Scheduler
	pool   *lightpool.Pool
	runner *coresys.Runner
	tele   *TelemetrySystem
	sink   *memSink
	lights *LightingSystem
}

func newPipeline(t *testing.T, n int) *pipeline {
	t.Helper()
	bus := event.NewBus()
	sw := world.NewSwarm(bounds, 3, bus, nil)
	for i := 0; i < n; i++ {
		sw.Spawn(geom.V(float64(i), 5, 0),
			component.LightEmitter{Color: 0xffcc66, Intensity: 2, Range: 10},
			component.LightCycling{Active: true, FadeProgress: 1},
			component.Floating{})
	}
	grid, err := spatial.NewGrid[lighting.Firefly](25, bounds, nil)
	if err != nil {
		t.Fatal(err)
	}
	pool, err := lightpool.New(4, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := lighting.DefaultConfig()
	cfg.MaxLights = 3
	cfg.UpdateFrequencyHz = 10
	cfg.FadeDurationSeconds = 0.5
	always := lighting.TwinkleFunc(func(float64, float64, lighting.Firefly) float64 { return 1 })
	sched, err := lighting.New(cfg, lighting.Deps{Grid: grid, Pool: pool, Source: sw, Twinkler: always, Bus: bus})
	if err != nil {
		t.Fatal(err)
	}

	sink := &memSink{}
	p := &pipeline{swarm: sw, sched: sched, pool: pool, sink: sink, runner: coresys.NewRunner()}
	p.tele = NewTelemetrySystem(sched, bus, sink, time.Second, nil)
	p.lights = NewLightingSystem(sched, staticView{lighting.PointView(geom.V(0, 5, 0), 100)})
	// registered out of phase order on purpose
	p.runner.Register(NewCleanupSystem(sw, sched, nil))
	p.runner.Register(p.tele)
	p.runner.Register(p.lights)
	p.runner.Register(NewCyclingSystem(sw))
	p.runner.Register(NewEventSystem(bus))
	return p
}

func TestPipelineLightsAndRecordsTelemetry(t *testing.T) {
	p := newPipeline(t, 5)
	for i := 0; i < 30; i++ {
		p.runner.Tick(50 * time.Millisecond)
	}

	if got := p.pool.Snapshot().Active; got != 3 {
		t.Errorf("pool active = %d, want budget 3", got)
	}
	if p.lights.Ticks() != 15 {
		t.Errorf("lighting ticks = %d, want 15", p.lights.Ticks())
	}
	tot := p.tele.Totals()
	if tot.Acquired != 3 || tot.Released != 0 || tot.Exhausted != 0 {
		t.Errorf("event totals = %+v", tot)
	}
	if len(p.sink.writes) == 0 {
		t.Fatal("nothing flushed after 1.5s with a 1s interval")
	}
	first := p.sink.writes[0]
	if len(first) == 0 || first[0].PoolCapacity != 4 || first[0].LightBudget != 3 {
		t.Errorf("first batch = %+v", first)
	}
	if p.tele.Flushed()+p.tele.Buffered() != 15 {
		t.Errorf("flushed %d + buffered %d, want 15 samples", p.tele.Flushed(), p.tele.Buffered())
	}
}

func TestPipelineDespawnFadesLightOut(t *testing.T) {
	p := newPipeline(t, 1)
	for i := 0; i < 4; i++ {
		p.runner.Tick(100 * time.Millisecond)
	}
	var id ecs.EntityID
	p.swarm.Emitters.Each(func(e ecs.EntityID, _ *component.LightEmitter) { id = e })
	if _, ok := p.sched.Record(id); !ok {
		t.Fatal("firefly not lit")
	}

	p.swarm.Despawn(id)
	p.runner.Tick(100 * time.Millisecond) // cleanup forgets it
	if p.sched.Grid().Len() != 0 {
		t.Fatal("despawned firefly still indexed")
	}
	for i := 0; i < 10; i++ {
		p.runner.Tick(100 * time.Millisecond)
	}
	if _, ok := p.sched.Record(id); ok {
		t.Error("light not released after despawn")
	}
	if p.pool.Snapshot().Active != 0 {
		t.Error("pool still holds a light")
	}
}

func TestLifetimeReplacesExpiredFireflies(t *testing.T) {
	p := newPipeline(t, 0)
	life := NewLifetimeSystem(p.swarm, nil)
	p.runner.Register(life)
	first := p.swarm.SpawnEntry(data.SwarmEntry{
		Name:      "short",
		Count:     2,
		Center:    [3]float64{0, 5, 0},
		Intensity: [2]float64{2, 2},
		Range:     10,
		Lifetime:  [2]float64{1, 1},
	})

	for i := 0; i < 15; i++ {
		p.runner.Tick(100 * time.Millisecond)
	}
	if life.Expired() != 2 {
		t.Fatalf("expired = %d, want 2", life.Expired())
	}
	if p.swarm.Len() != 2 {
		t.Errorf("swarm size = %d, want 2 after replacement", p.swarm.Len())
	}
	for _, id := range first {
		if p.swarm.World.Alive(id) {
			t.Errorf("expired firefly %v still alive", id)
		}
		if _, ok := p.sched.Grid().Get(uint64(id)); ok {
			t.Errorf("expired firefly %v still indexed", id)
		}
	}
	if tot := p.tele.Totals(); tot.Despawned != 2 {
		t.Errorf("despawn events = %d, want 2", tot.Despawned)
	}
}

func TestTelemetryKeepsSamplesWhenSinkFails(t *testing.T) {
	p := newPipeline(t, 2)
	p.sink.err = errors.New("db down")
	for i := 0; i < 30; i++ {
		p.runner.Tick(50 * time.Millisecond)
	}
	if p.tele.Buffered() != 15 || p.tele.Flushed() != 0 {
		t.Errorf("buffered=%d flushed=%d", p.tele.Buffered(), p.tele.Flushed())
	}

	p.sink.err = nil
	if err := p.tele.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.tele.Buffered() != 0 || p.tele.Flushed() != 15 {
		t.Errorf("after recovery buffered=%d flushed=%d", p.tele.Buffered(), p.tele.Flushed())
	}
}
