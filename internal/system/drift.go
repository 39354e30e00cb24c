package system

import (
	"math"
	"time"

	"github.com/megameal/fireflies/internal/component"
	"github.com/megameal/fireflies/internal/core/ecs"
	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/world"
)

// Height correction speeds applied when a floating firefly leaves its band.
const (
	liftSpeed = 0.5
	sinkSpeed = -0.2
)

// DriftSystem moves fireflies: floating ones bob and wander, everything with
// a velocity is integrated and bounced off the world bounds.
// Phase 1 (Simulate).
type DriftSystem struct {
	swarm *world.Swarm
	clock float64
}

func NewDriftSystem(swarm *world.Swarm) *DriftSystem {
	return &DriftSystem{swarm: swarm}
}

func (s *DriftSystem) Phase() coresys.Phase { return coresys.PhaseSimulate }

func (s *DriftSystem) Update(dt time.Duration) {
	secs := dt.Seconds()
	s.clock += secs
	t := s.clock
	sw := s.swarm

	ecs.Each2(sw.Floating, sw.Velocity, func(id ecs.EntityID, fl *component.Floating, v *component.Velocity) {
		slot := float64(id.Index())
		v.Y = math.Sin(fl.Phase+t*fl.Frequency) * fl.Amplitude
		v.X = math.Cos(t*0.1+slot) * fl.WanderRadius * 0.1
		v.Z = math.Sin(t*0.1+slot*1.3) * fl.WanderRadius * 0.1
	})

	b := sw.Bounds()
	ecs.Each2(sw.Velocity, sw.Positions, func(_ ecs.EntityID, v *component.Velocity, p *component.Position) {
		p.Vec3 = p.Add(v.Scale(secs))
		p.X, v.X = reflect(p.X, v.X, b.Min.X, b.Max.X)
		p.Y, v.Y = reflect(p.Y, v.Y, b.Min.Y, b.Max.Y)
		p.Z, v.Z = reflect(p.Z, v.Z, b.Min.Z, b.Max.Z)
	})

	ecs.Each3(sw.Floating, sw.Positions, sw.Velocity, func(_ ecs.EntityID, fl *component.Floating, p *component.Position, v *component.Velocity) {
		if fl.MaxHeight <= fl.MinHeight {
			return
		}
		switch {
		case p.Y < fl.MinHeight:
			p.Y = fl.MinHeight
			v.Y = math.Max(v.Y, liftSpeed)
		case p.Y > fl.MaxHeight:
			p.Y = fl.MaxHeight
			v.Y = math.Min(v.Y, sinkSpeed)
		}
	})
}

// reflect folds x back inside [lo,hi] and flips the velocity if it crossed.
func reflect(x, v, lo, hi float64) (float64, float64) {
	switch {
	case x < lo:
		return math.Min(2*lo-x, hi), math.Abs(v)
	case x > hi:
		return math.Max(2*hi-x, lo), -math.Abs(v)
	}
	return x, v
}
