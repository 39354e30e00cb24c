package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/megameal/fireflies/internal/core/event"
	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/lighting"
	"github.com/megameal/fireflies/internal/persist"
)

// maxBuffered caps samples held while the sink is failing.
const maxBuffered = 4096

// TelemetrySink stores lighting samples. *persist.TelemetryRepo is the
// production sink.
type TelemetrySink interface {
	WriteSamples(ctx context.Context, samples []persist.TelemetrySample) error
}

// EventCounts tallies scheduler events.
type EventCounts struct {
	Acquired  int
	Released  int
	Exhausted int
	Despawned int
}

// TelemetrySystem records one sample per scheduler tick and flushes them to
// the sink every flush interval. Phase 3 (Telemetry).
type TelemetrySystem struct {
	sched    *lighting.Scheduler
	sink     TelemetrySink // nil keeps counting but stores nothing
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time

	lastTick   uint64
	sinceFlush time.Duration
	buf        []persist.TelemetrySample
	window     EventCounts
	totals     EventCounts
	flushed    int
	dropped    int
}

func NewTelemetrySystem(sched *lighting.Scheduler, bus *event.Bus, sink TelemetrySink, flushInterval time.Duration, log *zap.Logger) *TelemetrySystem {
	if log == nil {
		log = zap.NewNop()
	}
	s := &TelemetrySystem{
		sched:    sched,
		sink:     sink,
		log:      log,
		interval: flushInterval,
		now:      time.Now,
		buf:      make([]persist.TelemetrySample, 0, 64),
	}
	event.Subscribe(bus, func(event.LightAcquired) { s.window.Acquired++; s.totals.Acquired++ })
	event.Subscribe(bus, func(event.LightReleased) { s.window.Released++; s.totals.Released++ })
	event.Subscribe(bus, func(event.CapacityExhausted) { s.window.Exhausted++; s.totals.Exhausted++ })
	event.Subscribe(bus, func(event.FireflyDespawned) { s.window.Despawned++; s.totals.Despawned++ })
	return s
}

func (s *TelemetrySystem) Phase() coresys.Phase { return coresys.PhaseTelemetry }

func (s *TelemetrySystem) Update(dt time.Duration) {
	st := s.sched.Stats()
	if st.Ticks != s.lastTick {
		s.lastTick = st.Ticks
		if s.sink != nil {
			s.record(st)
		}
		s.window = EventCounts{}
	}

	if s.interval <= 0 {
		return
	}
	s.sinceFlush += dt
	if s.sinceFlush < s.interval {
		return
	}
	s.sinceFlush = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.log.Warn("telemetry flush failed", zap.Error(err), zap.Int("buffered", len(s.buf)))
	}
}

func (s *TelemetrySystem) record(st lighting.Stats) {
	if len(s.buf) >= maxBuffered {
		s.buf = s.buf[1:]
		s.dropped++
	}
	s.buf = append(s.buf, persist.TelemetrySample{
		SampledAt:       s.now(),
		Tick:            st.Ticks,
		LightsActive:    st.LightsActive,
		LightBudget:     s.sched.Config().MaxLights,
		PoolActive:      st.Pool.Active,
		PoolCapacity:    st.Pool.Capacity,
		Processed:       st.EntitiesProcessed,
		Selected:        st.Selected,
		CellsTouched:    st.CellsTouched,
		EntitiesChecked: st.EntitiesChecked,
		Indexed:         st.Grid.TotalEntities,
		ActiveCells:     st.Grid.ActiveCells,
		TickDuration:    st.LastTickDuration,
		CapacitySkips:   st.CapacitySkips,
		InvalidTotal:    st.InvalidTotal,
		Acquired:        s.window.Acquired,
		Released:        s.window.Released,
		Exhausted:       s.window.Exhausted,
		Despawned:       s.window.Despawned,
	})
}

// Flush writes buffered samples to the sink. Samples stay buffered if the
// write fails.
func (s *TelemetrySystem) Flush(ctx context.Context) error {
	if s.sink == nil || len(s.buf) == 0 {
		return nil
	}
	if err := s.sink.WriteSamples(ctx, s.buf); err != nil {
		return err
	}
	s.flushed += len(s.buf)
	clear(s.buf)
	s.buf = s.buf[:0]
	return nil
}

// Totals returns event counts since start.
func (s *TelemetrySystem) Totals() EventCounts { return s.totals }

// Buffered is the number of samples waiting for the next flush.
func (s *TelemetrySystem) Buffered() int { return len(s.buf) }

// Flushed is the number of samples written so far.
func (s *TelemetrySystem) Flushed() int { return s.flushed }

// Dropped is the number of samples discarded while the sink was failing.
func (s *TelemetrySystem) Dropped() int { return s.dropped }
