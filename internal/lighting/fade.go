package lighting

import (
	"math"
	"time"

	"github.com/megameal/fireflies/internal/core/ecs"
)

// FadeState is where a lit firefly is in its light's life. A firefly with no
// FadeRecord is off.
type FadeState uint8

const (
	FadingIn FadeState = iota
	Active
	FadingOut
)

func (s FadeState) String() string {
	switch s {
	case FadingIn:
		return "fading-in"
	case Active:
		return "active"
	case FadingOut:
		return "fading-out"
	}
	return "unknown"
}

// SmoothingRate is how quickly an Active light chases its target, per second.
const SmoothingRate = 3.0

// FadeRecord is the bookkeeping for one firefly holding a pooled light.
type FadeRecord struct {
	EntityID         ecs.EntityID
	OwnerID          string
	CurrentIntensity float64
	TargetIntensity  float64
	State            FadeState
	FadeTimer        float64 // seconds spent in State
	LastUpdate       time.Time

	// StartIntensity is CurrentIntensity when State was entered; fades ramp
	// from it.
	StartIntensity float64
	// Last known emitter data, used when the firefly drops out of the index.
	Source         Firefly
}

func (r *FadeRecord) beginFadeOut() {
	r.State = FadingOut
	r.FadeTimer = 0
	r.TargetIntensity = 0
	r.StartIntensity = r.CurrentIntensity
}

// resume re-enters FadingIn from the current intensity rather than 0, so a
// light re-selected mid fade-out brightens without dropping to dark first.
func (r *FadeRecord) resume() {
	r.State = FadingIn
	r.FadeTimer = 0
	r.StartIntensity = r.CurrentIntensity
}

// advance moves the record forward by dt seconds and reports whether a
// fade-out has finished, meaning the light should go back to the pool.
func (r *FadeRecord) advance(dt, fadeDuration float64) (done bool) {
	r.FadeTimer += dt
	progress := math.Min(r.FadeTimer/fadeDuration, 1)

	switch r.State {
	case FadingIn:
		r.CurrentIntensity = r.StartIntensity + (r.TargetIntensity-r.StartIntensity)*progress
		if progress >= 1 {
			r.State = Active
			r.FadeTimer = 0
		}
	case FadingOut:
		r.CurrentIntensity = r.StartIntensity * (1 - progress)
		if progress >= 1 {
			r.CurrentIntensity = 0
			return true
		}
	case Active:
		// Clamp so long frames settle on the target instead of overshooting.
		k := math.Min(dt*SmoothingRate, 1)
		r.CurrentIntensity += (r.TargetIntensity - r.CurrentIntensity) * k
	}
	return false
}
