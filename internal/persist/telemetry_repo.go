package persist

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TelemetrySample is one row of lighting diagnostics.
type TelemetrySample struct {
	SampledAt       time.Time
	Tick            uint64
	LightsActive    int
	LightBudget     int
	PoolActive      int
	PoolCapacity    int
	Processed       int
	Selected        int
	CellsTouched    int
	EntitiesChecked int
	Indexed         int
	ActiveCells     int
	TickDuration    time.Duration
	CapacitySkips   uint64
	InvalidTotal    uint64

	// event counts since the previous sample
	Acquired  int
	Released  int
	Exhausted int
	Despawned int
}

const insertTelemetrySQL = `INSERT INTO lighting_telemetry (
	run_id, sampled_at, tick, lights_active, light_budget, pool_active, pool_capacity,
	processed, selected, cells_touched, entities_checked, indexed, active_cells,
	tick_micros, capacity_skips, invalid_total, acquired, released, exhausted, despawned)
 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

// args flattens a sample into insertTelemetrySQL parameter order.
func (s TelemetrySample) args(runID string) []any {
	return []any{
		runID, s.SampledAt, int64(s.Tick), s.LightsActive, s.LightBudget, s.PoolActive, s.PoolCapacity,
		s.Processed, s.Selected, s.CellsTouched, s.EntitiesChecked, s.Indexed, s.ActiveCells,
		s.TickDuration.Microseconds(), int64(s.CapacitySkips), int64(s.InvalidTotal),
		s.Acquired, s.Released, s.Exhausted, s.Despawned,
	}
}

type TelemetryRepo struct {
	db    *DB
	runID string
}

// NewTelemetryRepo writes rows tagged with runID so several runs can share
// one table.
func NewTelemetryRepo(db *DB, runID string) *TelemetryRepo {
	return &TelemetryRepo{db: db, runID: runID}
}

// WriteSamples inserts a batch of samples in a single transaction.
func (r *TelemetryRepo) WriteSamples(ctx context.Context, samples []TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("telemetry begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range samples {
		if _, err := tx.Exec(ctx, insertTelemetrySQL, s.args(r.runID)...); err != nil {
			return fmt.Errorf("telemetry insert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("telemetry commit: %w", err)
	}
	r.db.log.Debug("telemetry flushed", zap.Int("samples", len(samples)))
	return nil
}

// CountRun returns how many samples are stored for this run.
func (r *TelemetryRepo) CountRun(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lighting_telemetry WHERE run_id = $1`, r.runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("telemetry count: %w", err)
	}
	return n, nil
}
