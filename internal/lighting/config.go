package lighting

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig wraps every configuration rejection.
var ErrInvalidConfig = errors.New("lighting: invalid config")

// Config controls allocation. It is decoded straight from the [lighting]
// section of the service config.
type Config struct {
	MaxLights           int     `toml:"max_lights"`            // simultaneous lit fireflies
	UpdateFrequencyHz   float64 `toml:"update_frequency_hz"`   // allocation ticks per second
	TwinkleSpeed        float64 `toml:"twinkle_speed"`         // radians per second of the twinkle wave
	FadeDurationSeconds float64 `toml:"fade_duration_seconds"` // fade-in and fade-out ramp
	CullingDistance     float64 `toml:"culling_distance"`      // 0 disables distance culling
	StatsLogInterval    int     `toml:"stats_log_interval"`    // ticks between debug stats lines, 0 = off
}

// DefaultConfig returns the tuning the scheduler ships with.
func DefaultConfig() Config {
	return Config{
		MaxLights:           25,
		UpdateFrequencyHz:   15,
		TwinkleSpeed:        0.8,
		FadeDurationSeconds: 2.0,
		CullingDistance:     150,
		StatsLogInterval:    75,
	}
}

// Validate checks c against a pool of the given capacity.
func (c Config) Validate(poolCapacity int) error {
	switch {
	case c.MaxLights <= 0:
		return fmt.Errorf("%w: max_lights must be positive, got %d", ErrInvalidConfig, c.MaxLights)
	case c.MaxLights > poolCapacity:
		return fmt.Errorf("%w: max_lights %d exceeds pool capacity %d", ErrInvalidConfig, c.MaxLights, poolCapacity)
	case !positive(c.UpdateFrequencyHz):
		return fmt.Errorf("%w: update_frequency_hz must be positive, got %v", ErrInvalidConfig, c.UpdateFrequencyHz)
	case !positive(c.FadeDurationSeconds):
		return fmt.Errorf("%w: fade_duration_seconds must be positive, got %v", ErrInvalidConfig, c.FadeDurationSeconds)
	case math.IsNaN(c.TwinkleSpeed) || math.IsInf(c.TwinkleSpeed, 0):
		return fmt.Errorf("%w: twinkle_speed must be finite, got %v", ErrInvalidConfig, c.TwinkleSpeed)
	case math.IsNaN(c.CullingDistance) || math.IsInf(c.CullingDistance, 0) || c.CullingDistance < 0:
		return fmt.Errorf("%w: culling_distance must be finite and non-negative, got %v", ErrInvalidConfig, c.CullingDistance)
	case c.StatsLogInterval < 0:
		return fmt.Errorf("%w: stats_log_interval must be non-negative, got %d", ErrInvalidConfig, c.StatsLogInterval)
	}
	return nil
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}

// ConfigPatch is a partial Config for Reconfigure; nil fields keep their
// current value.
type ConfigPatch struct {
	MaxLights           *int
	UpdateFrequencyHz   *float64
	TwinkleSpeed        *float64
	FadeDurationSeconds *float64
	CullingDistance     *float64
	StatsLogInterval    *int
}

func (p ConfigPatch) apply(c Config) Config {
	if p.MaxLights != nil {
		c.MaxLights = *p.MaxLights
	}
	if p.UpdateFrequencyHz != nil {
		c.UpdateFrequencyHz = *p.UpdateFrequencyHz
	}
	if p.TwinkleSpeed != nil {
		c.TwinkleSpeed = *p.TwinkleSpeed
	}
	if p.FadeDurationSeconds != nil {
		c.FadeDurationSeconds = *p.FadeDurationSeconds
	}
	if p.CullingDistance != nil {
		c.CullingDistance = *p.CullingDistance
	}
	if p.StatsLogInterval != nil {
		c.StatsLogInterval = *p.StatsLogInterval
	}
	return c
}
