package component

import "github.com/megameal/fireflies/internal/geom"

// Position is an entity's location in world units.
type Position struct {
	geom.Vec3
}

// Velocity is world units per second.
type Velocity struct {
	geom.Vec3
}

// LightEmitter describes the light a firefly would cast if it held one.
// Pure data, zero methods.
type LightEmitter struct {
	Color     geom.Color
	Intensity float64 // peak intensity
	Range     float64 // falloff distance
	Decay     float64
}

// LightCycling slowly swings a firefly between glowing and dark.
// FadeProgress chases 1 while Active and 0 otherwise; Active flips every
// MaxCycleTime seconds. MaxCycleTime 0 never flips.
type LightCycling struct {
	Active       bool
	FadeProgress float64 // 0..1
	CycleTime    float64 // seconds since last flip
	MaxCycleTime float64
}

// Floating drives the bobbing and wandering motion. Height limits are
// measured from the ground plane at Y=0.
type Floating struct {
	Amplitude    float64 // vertical speed peak
	Frequency    float64 // bob rate, radians per second
	Phase        float64 // radians
	WanderRadius float64
	MinHeight    float64
	MaxHeight    float64
}

// Lifespan counts down a firefly's remaining life. Swarm is the index of the
// swarm entry that replaces it when Remaining runs out.
type Lifespan struct {
	Remaining float64 // seconds
	Swarm     int
}
