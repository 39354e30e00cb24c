package system

import "time"

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseEvents    Phase = iota // 0: swap + dispatch last frame's events
	PhaseSimulate               // 1: move fireflies, advance light cycles
	PhaseLighting               // 2: throttled light allocation
	PhaseTelemetry              // 3: sample + flush diagnostics
	PhaseCleanup                // 4: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseEvents:
		return "events"
	case PhaseSimulate:
		return "simulate"
	case PhaseLighting:
		return "lighting"
	case PhaseTelemetry:
		return "telemetry"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every frame-loop system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
