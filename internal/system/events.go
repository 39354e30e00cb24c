package system

import (
	"time"

	"github.com/megameal/fireflies/internal/core/event"
	coresys "github.com/megameal/fireflies/internal/core/system"
)

// EventSystem delivers the previous frame's events at the start of the
// frame. Phase 0 (Events).
type EventSystem struct {
	bus *event.Bus
}

func NewEventSystem(bus *event.Bus) *EventSystem {
	return &EventSystem{bus: bus}
}

func (s *EventSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
