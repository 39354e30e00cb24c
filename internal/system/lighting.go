package system

import (
	"fmt"
	"time"

	coresys "github.com/megameal/fireflies/internal/core/system"
	"github.com/megameal/fireflies/internal/geom"
	"github.com/megameal/fireflies/internal/lighting"
)

// ViewProvider supplies the viewpoint for each frame.
type ViewProvider interface {
	View(dt time.Duration) lighting.View
}

// View modes accepted by NewCameraViews.
const (
	ViewPerspective  = "perspective"
	ViewOrthographic = "orthographic"
	ViewRadius       = "radius"
)

// CameraViews turns an orbiting camera rig into scheduler views.
type CameraViews struct {
	rig        *geom.CameraRig
	mode       string
	halfExtent float64
}

func NewCameraViews(mode string, rig *geom.CameraRig, orthoHalfExtent float64) (*CameraViews, error) {
	switch mode {
	case ViewPerspective, ViewRadius:
	case ViewOrthographic:
		if orthoHalfExtent <= 0 {
			return nil, fmt.Errorf("orthographic view needs a positive half extent, got %v", orthoHalfExtent)
		}
	default:
		return nil, fmt.Errorf("unknown view mode %q", mode)
	}
	return &CameraViews{rig: rig, mode: mode, halfExtent: orthoHalfExtent}, nil
}

// View advances the rig by dt and returns the view for its new pose.
func (v *CameraViews) View(dt time.Duration) lighting.View {
	cam := v.rig.Advance(dt.Seconds())
	switch v.mode {
	case ViewOrthographic:
		aspect := cam.Aspect
		if aspect <= 0 {
			aspect = 1
		}
		cam.Projection = geom.Orthographic
		cam.HalfHeight = v.halfExtent
		cam.HalfWidth = v.halfExtent * aspect
		return lighting.CameraView(cam)
	case ViewRadius:
		return lighting.PointView(cam.Position, 0)
	}
	return lighting.CameraView(cam)
}

// Camera is the rig's current camera, for display.
func (v *CameraViews) Camera() geom.Camera { return v.rig.Camera() }

// LightingSystem feeds each frame's elapsed time and view to the light
// scheduler, which throttles itself. Phase 2 (Lighting).
type LightingSystem struct {
	sched *lighting.Scheduler
	views ViewProvider
	ticks uint64
}

func NewLightingSystem(sched *lighting.Scheduler, views ViewProvider) *LightingSystem {
	return &LightingSystem{sched: sched, views: views}
}

func (s *LightingSystem) Phase() coresys.Phase { return coresys.PhaseLighting }

func (s *LightingSystem) Update(dt time.Duration) {
	if s.sched.Update(dt, s.views.View(dt)) {
		s.ticks++
	}
}

// Ticks is how many frames ran an allocation tick.
func (s *LightingSystem) Ticks() uint64 { return s.ticks }
