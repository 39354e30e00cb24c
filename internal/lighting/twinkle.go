package lighting

import (
	"math"

	"github.com/megameal/fireflies/internal/core/ecs"
)

const (
	// LightThreshold is the twinkle value a firefly must exceed to want a light.
	LightThreshold = 0.85
	// MinFadeFactor keeps a firefly that has only just crossed the
	// threshold from targeting zero intensity.
	MinFadeFactor = 0.01
)

// Twinkler maps simulated time to a twinkle value in [0,1] for one firefly.
type Twinkler interface {
	Twinkle(t, speed float64, f Firefly) float64
}

// TwinkleFunc adapts a function to Twinkler.
type TwinkleFunc func(t, speed float64, f Firefly) float64

func (fn TwinkleFunc) Twinkle(t, speed float64, f Firefly) float64 { return fn(t, speed, f) }

// SineTwinkle is the stock curve: (sin(t·speed + phase) + 1) / 2.
type SineTwinkle struct{}

func (SineTwinkle) Twinkle(t, speed float64, f Firefly) float64 {
	return SineValue(t, speed, PhaseOffset(f.ID))
}

// SineValue is the stock twinkle curve for an explicit phase.
func SineValue(t, speed, phase float64) float64 {
	return (math.Sin(t*speed+phase) + 1) / 2
}

// PhaseOffset spreads fireflies across the twinkle cycle by entity slot.
func PhaseOffset(id ecs.EntityID) float64 {
	return float64(id.Index()) * 0.1
}

// FadeFactor reports whether a twinkle value makes a firefly a candidate,
// and if so how far above the threshold it sits, renormalised to (0,1].
func FadeFactor(v float64) (float64, bool) {
	if !(v > LightThreshold) {
		return 0, false
	}
	f := (v - LightThreshold) / (1 - LightThreshold)
	return math.Min(math.Max(f, MinFadeFactor), 1), true
}
