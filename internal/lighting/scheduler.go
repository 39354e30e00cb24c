// Package lighting decides which fireflies get one of the scarce pooled point
// lights and fades those lights in and out.
//
// The Scheduler is driven by the caller's frame loop through Update. Work is
// throttled to Config.UpdateFrequencyHz; every other frame is a no-op. Each
// tick pushes the entity source into the spatial grid, asks the grid what is
// visible, picks up to MaxLights twinkling fireflies in grid order, then
// steps every FadeRecord and writes the result into the light pool.
//
// Selection takes the first MaxLights candidates the grid yields. Fireflies
// in cells the grid visits late can lose out repeatedly while the budget is
// contended.
package lighting

import (
	"fmt"
	"math"
	"time"

	"github.com/megameal/fireflies/internal/core/ecs"
	"github.com/megameal/fireflies/internal/core/event"
	"github.com/megameal/fireflies/internal/geom"
	"github.com/megameal/fireflies/internal/lightpool"
	"github.com/megameal/fireflies/internal/spatial"
	"go.uber.org/zap"
)

// Firefly is the read-only view of one light-emitting entity, supplied fresh
// every tick by the entity store.
type Firefly struct {
	ID            ecs.EntityID
	Position      geom.Vec3
	Color         geom.Color
	BaseIntensity float64
	Range         float64
	CyclePhase    float64 // 0..1 light cycle progress; 0 when the store has none
}

// Source yields every firefly currently in the world.
type Source interface {
	EachFirefly(fn func(Firefly))
}

// View says where visibility is judged from. A view with a Camera uses the
// approximate frustum query; otherwise a radius query around Center.
type View struct {
	Camera *geom.Camera
	Center geom.Vec3
	Radius float64 // 0 uses Config.CullingDistance
}

func CameraView(c geom.Camera) View { return View{Camera: &c} }

func PointView(center geom.Vec3, radius float64) View {
	return View{Center: center, Radius: radius}
}

// OwnerID is the pool owner name used for a firefly's light.
func OwnerID(id ecs.EntityID) string {
	return fmt.Sprintf("firefly_%d", uint64(id))
}

// Deps are the collaborators a Scheduler owns or calls.
type Deps struct {
	Grid     *spatial.Grid[Firefly]
	Pool     *lightpool.Pool
	Source   Source
	Twinkler Twinkler   // nil uses SineTwinkle
	Bus      *event.Bus // optional
	Log      *zap.Logger
}

type selection struct {
	f      Firefly
	factor float64
}

// Scheduler allocates pooled lights to fireflies. Frame loop goroutine only.
type Scheduler struct {
	cfg     Config
	pending *Config

	grid    *spatial.Grid[Firefly]
	pool    *lightpool.Pool
	source  Source
	twinkle Twinkler
	bus     *event.Bus
	log     *zap.Logger
	now     func() time.Time

	records []*FadeRecord // creation order
	byID    map[ecs.EntityID]*FadeRecord

	selected map[ecs.EntityID]selection
	selOrder []ecs.EntityID

	accum    time.Duration
	clock    float64 // simulated seconds consumed by ticks
	disposed bool
	stats    Stats
}

// New validates cfg against the pool and builds a Scheduler.
func New(cfg Config, deps Deps) (*Scheduler, error) {
	if deps.Grid == nil || deps.Pool == nil || deps.Source == nil {
		return nil, fmt.Errorf("%w: grid, pool and source are required", ErrInvalidConfig)
	}
	if err := cfg.Validate(deps.Pool.Capacity()); err != nil {
		return nil, err
	}
	if deps.Twinkler == nil {
		deps.Twinkler = SineTwinkle{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	s := &Scheduler{
		cfg:      cfg,
		grid:     deps.Grid,
		pool:     deps.Pool,
		source:   deps.Source,
		twinkle:  deps.Twinkler,
		bus:      deps.Bus,
		log:      deps.Log,
		now:      time.Now,
		records:  make([]*FadeRecord, 0, cfg.MaxLights),
		byID:     make(map[ecs.EntityID]*FadeRecord, cfg.MaxLights),
		selected: make(map[ecs.EntityID]selection, cfg.MaxLights),
		selOrder: make([]ecs.EntityID, 0, cfg.MaxLights),
	}
	s.log.Info("light scheduler initialised",
		zap.Int("max_lights", cfg.MaxLights),
		zap.Float64("update_hz", cfg.UpdateFrequencyHz),
		zap.Float64("fade_s", cfg.FadeDurationSeconds),
		zap.Int("pool_capacity", deps.Pool.Capacity()))
	return s, nil
}

// Config returns the configuration the next tick will run with.
func (s *Scheduler) Config() Config {
	if s.pending != nil {
		return *s.pending
	}
	return s.cfg
}

// Reconfigure merges patch into the configuration. The result is validated
// now and takes effect at the start of the next tick. In-flight fade timers
// are untouched.
func (s *Scheduler) Reconfigure(patch ConfigPatch) error {
	next := patch.apply(s.Config())
	if err := next.Validate(s.pool.Capacity()); err != nil {
		return err
	}
	s.pending = &next
	s.log.Info("light scheduler reconfigured",
		zap.Int("max_lights", next.MaxLights),
		zap.Float64("update_hz", next.UpdateFrequencyHz),
		zap.Float64("twinkle_speed", next.TwinkleSpeed),
		zap.Float64("fade_s", next.FadeDurationSeconds),
		zap.Float64("culling_distance", next.CullingDistance))
	return nil
}

func (s *Scheduler) interval() time.Duration {
	return time.Duration(float64(time.Second) / s.cfg.UpdateFrequencyHz)
}

// Update is called once per frame with the frame's elapsed time. It runs a
// tick, covering all time accumulated since the previous one, once at least
// 1/UpdateFrequencyHz has built up, and reports whether it did.
func (s *Scheduler) Update(dt time.Duration, view View) bool {
	if s.disposed {
		return false
	}
	s.accum += dt
	if s.accum < s.interval() {
		return false
	}
	elapsed := s.accum
	s.accum = 0
	s.Step(elapsed, view)
	return true
}

// Step runs one allocation tick covering elapsed time, bypassing the
// throttle.
func (s *Scheduler) Step(elapsed time.Duration, view View) {
	if s.disposed {
		return
	}
	start := s.now()
	if s.pending != nil {
		s.cfg = *s.pending
		s.pending = nil
	}
	dt := elapsed.Seconds()
	s.clock += dt

	s.index()
	visible := s.query(view)
	s.selectCandidates(visible)
	s.retire()
	s.admit(start)
	s.advance(dt, start)
	s.apply()

	s.stats.Ticks++
	s.stats.EntitiesProcessed = len(visible)
	s.stats.Selected = len(s.selOrder)
	s.stats.LightsActive = len(s.records)
	s.stats.LightsAvailable = max(s.cfg.MaxLights-len(s.records), 0)
	gs := s.grid.Stats()
	s.stats.CellsTouched = gs.LastCellsTouched
	s.stats.EntitiesChecked = gs.LastCullCount
	s.stats.LastTickDuration = s.now().Sub(start)

	if n := s.cfg.StatsLogInterval; n > 0 && s.stats.Ticks%uint64(n) == 0 {
		s.logStats()
	}
}

// index pushes the source into the grid. Fireflies with non-finite
// coordinates are left out and counted.
func (s *Scheduler) index() {
	invalid := 0
	s.source.EachFirefly(func(f Firefly) {
		if !s.grid.Update(uint64(f.ID), f.Position, f) {
			invalid++
		}
	})
	s.stats.InvalidLastTick = invalid
	s.stats.InvalidTotal += uint64(invalid)
}

func (s *Scheduler) query(view View) []spatial.Entry[Firefly] {
	cd := s.cfg.CullingDistance
	if view.Camera == nil {
		r := view.Radius
		if r <= 0 {
			r = cd
		}
		return s.grid.QueryRadius(view.Center, r)
	}
	visible := s.grid.QueryApproximateFrustum(*view.Camera)
	if cd <= 0 {
		return visible
	}
	eye, cd2 := view.Camera.Position, cd*cd
	kept := visible[:0]
	for _, e := range visible {
		if e.Position.DistanceSq(eye) <= cd2 {
			kept = append(kept, e)
		}
	}
	return kept
}

// selectCandidates takes the first MaxLights twinkling fireflies in grid
// order.
func (s *Scheduler) selectCandidates(visible []spatial.Entry[Firefly]) {
	clear(s.selected)
	s.selOrder = s.selOrder[:0]
	for _, e := range visible {
		if len(s.selOrder) >= s.cfg.MaxLights {
			break
		}
		v := s.twinkle.Twinkle(s.clock, s.cfg.TwinkleSpeed, e.Payload)
		factor, ok := FadeFactor(v)
		if !ok {
			continue
		}
		s.selected[e.Payload.ID] = selection{f: e.Payload, factor: factor}
		s.selOrder = append(s.selOrder, e.Payload.ID)
	}
}

// retire starts fading out every light whose firefly was not selected.
func (s *Scheduler) retire() {
	for _, r := range s.records {
		if _, ok := s.selected[r.EntityID]; ok {
			continue
		}
		if r.State == Active || r.State == FadingIn {
			r.beginFadeOut()
		}
	}
}

// admit gives new selections a light if the budget and pool allow, and
// refreshes targets for selections already lit.
func (s *Scheduler) admit(now time.Time) {
	for _, id := range s.selOrder {
		sel := s.selected[id]
		target := sel.f.BaseIntensity * sel.factor

		if r, ok := s.byID[id]; ok {
			r.TargetIntensity = target
			r.Source = sel.f
			if r.State == FadingOut {
				r.resume()
			}
			continue
		}

		if len(s.records) >= s.cfg.MaxLights {
			s.skip(id)
			continue
		}
		owner := OwnerID(id)
		if _, ok := s.pool.Request(owner); !ok {
			s.skip(id)
			continue
		}
		r := &FadeRecord{
			EntityID:        id,
			OwnerID:         owner,
			TargetIntensity: target,
			State:           FadingIn,
			LastUpdate:      now,
			Source:          sel.f,
		}
		s.records = append(s.records, r)
		s.byID[id] = r
		event.Emit(s.bus, event.LightAcquired{EntityID: id, Owner: owner})
	}
}

func (s *Scheduler) skip(id ecs.EntityID) {
	s.stats.CapacitySkips++
	event.Emit(s.bus, event.CapacityExhausted{EntityID: id, Active: len(s.records), Budget: s.cfg.MaxLights})
}

// advance steps every record's fade and returns finished fade-outs to the
// pool.
func (s *Scheduler) advance(dt float64, now time.Time) {
	kept := s.records[:0]
	for _, r := range s.records {
		done := r.advance(dt, s.cfg.FadeDurationSeconds)
		r.LastUpdate = now
		if done {
			s.pool.Release(r.OwnerID)
			delete(s.byID, r.EntityID)
			event.Emit(s.bus, event.LightReleased{EntityID: r.EntityID, Owner: r.OwnerID})
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = nil
	}
	s.records = kept
}

// apply writes each record's light parameters into its pooled handle,
// preferring the firefly's freshest indexed state.
func (s *Scheduler) apply() {
	for _, r := range s.records {
		f := r.Source
		if e, ok := s.grid.Get(uint64(r.EntityID)); ok {
			f = e.Payload
			r.Source = f
		}
		pos, col, in, fall := f.Position, f.Color, r.CurrentIntensity, f.Range
		s.pool.Update(r.OwnerID, lightpool.Patch{
			Position:  &pos,
			Color:     &col,
			Intensity: &in,
			Falloff:   &fall,
		})
	}
}

// Forget drops a firefly from the spatial grid. Its light, if any, fades
// out over the following ticks.
func (s *Scheduler) Forget(id ecs.EntityID) bool {
	return s.grid.Remove(uint64(id))
}

// Dispose releases every light the scheduler holds and clears all state.
// Update and Step are no-ops afterwards.
func (s *Scheduler) Dispose() {
	if s.disposed {
		return
	}
	for _, r := range s.records {
		s.pool.Release(r.OwnerID)
	}
	clear(s.records)
	s.records = s.records[:0]
	clear(s.byID)
	clear(s.selected)
	s.selOrder = s.selOrder[:0]
	s.grid.Clear()
	s.disposed = true
	s.stats.LightsActive = 0
	s.log.Info("light scheduler disposed", zap.Uint64("ticks", s.stats.Ticks))
}

// Record returns a copy of the FadeRecord for a firefly, if it has one.
func (s *Scheduler) Record(id ecs.EntityID) (FadeRecord, bool) {
	r, ok := s.byID[id]
	if !ok {
		return FadeRecord{}, false
	}
	return *r, true
}

// Records returns copies of all FadeRecords in creation order.
func (s *Scheduler) Records() []FadeRecord {
	out := make([]FadeRecord, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// Grid exposes the spatial index for read-only diagnostics.
func (s *Scheduler) Grid() *spatial.Grid[Firefly] { return s.grid }

// Pool exposes the light pool for the renderer's read-back.
func (s *Scheduler) Pool() *lightpool.Pool { return s.pool }

// Clock is the simulated time, in seconds, the twinkle curve last saw.
func (s *Scheduler) Clock() float64 { return s.clock }

// hotCellCount is how many of the most crowded cells the stats line lists.
const hotCellCount = 5

func (s *Scheduler) logStats() {
	occ := s.pool.Snapshot()
	gs := s.grid.Stats()
	fields := []zap.Field{
		zap.Int("lights", len(s.records)),
		zap.Int("budget", s.cfg.MaxLights),
		zap.Int("pool_active", occ.Active),
		zap.Int("pool_capacity", occ.Capacity),
		zap.Duration("tick", s.stats.LastTickDuration),
		zap.Int("processed", s.stats.EntitiesProcessed),
		zap.Int("indexed", gs.TotalEntities),
		zap.Int("cells", gs.ActiveCells),
		zap.Float64("avg_per_cell", math.Round(gs.AverageEntitiesPerCell*10)/10),
		zap.Uint64("capacity_skips", s.stats.CapacitySkips),
		zap.Uint64("invalid_total", s.stats.InvalidTotal),
		zap.Strings("hot_cells", hotCells(s.grid.TopCells(hotCellCount))),
	}
	s.log.Debug("light scheduler stats", fields...)
	if err := s.pool.CheckInvariants(); err != nil {
		s.log.Error("light pool invariant broken", zap.Error(err))
	}
}

// hotCells formats cells as "x,z:count".
func hotCells(cells []spatial.CellInfo) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = fmt.Sprintf("%d,%d:%d", c.Coord.X, c.Coord.Z, c.Count)
	}
	return out
}
