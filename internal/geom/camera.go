package geom

import "math"

// Projection selects how a Camera maps the world onto the screen.
type Projection int

const (
	Perspective Projection = iota
	Orthographic
)

// Camera describes a view into the world. Forward and Up need not be unit
// length or orthogonal; the frustum builder orthonormalises them.
type Camera struct {
	Projection Projection
	Position   Vec3
	Forward    Vec3
	Up         Vec3

	FOV    float64 // vertical, degrees (perspective only)
	Aspect float64 // width / height
	Near   float64
	Far    float64

	// Half extents of the view volume (orthographic only).
	HalfWidth  float64
	HalfHeight float64
}

// basis returns an orthonormal forward/right/up triple.
func (c Camera) basis() (f, r, u Vec3) {
	f = c.Forward.Normalize()
	if f == (Vec3{}) {
		f = Vec3{0, 0, -1}
	}
	up := c.Up
	if up == (Vec3{}) {
		up = Vec3{0, 1, 0}
	}
	r = f.Cross(up).Normalize()
	if r == (Vec3{}) {
		// forward parallel to up: pick any perpendicular axis
		r = f.Cross(Vec3{1, 0, 0}).Normalize()
	}
	u = r.Cross(f)
	return f, r, u
}

// LookAt returns a perspective camera at eye looking toward target.
func LookAt(eye, target Vec3, fov, aspect, near, far float64) Camera {
	return Camera{
		Projection: Perspective,
		Position:   eye,
		Forward:    target.Sub(eye),
		Up:         Vec3{0, 1, 0},
		FOV:        fov,
		Aspect:     aspect,
		Near:       near,
		Far:        far,
	}
}

// CameraRig orbits a perspective camera around a fixed point at a constant
// height, always looking at the point.
type CameraRig struct {
	Center Vec3
	Radius float64
	Height float64
	Speed  float64 // radians per second

	Template Camera
	angle    float64
}

// Advance rotates the rig by Speed*dt and returns the resulting camera.
func (r *CameraRig) Advance(dt float64) Camera {
	r.angle = math.Mod(r.angle+r.Speed*dt, 2*math.Pi)
	return r.Camera()
}

// Camera returns the camera for the rig's current angle.
func (r *CameraRig) Camera() Camera {
	cam := r.Template
	eye := Vec3{
		X: r.Center.X + math.Cos(r.angle)*r.Radius,
		Y: r.Center.Y + r.Height,
		Z: r.Center.Z + math.Sin(r.angle)*r.Radius,
	}
	cam.Position = eye
	cam.Forward = r.Center.Sub(eye)
	if cam.Up == (Vec3{}) {
		cam.Up = Vec3{0, 1, 0}
	}
	return cam
}
