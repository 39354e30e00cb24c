package geom

import "math"

// Plane is n·p + D = 0 with the normal pointing into the kept half-space.
type Plane struct {
	Normal Vec3
	D      float64
}

func planeThrough(normal, point Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// Distance is the signed distance of p from the plane; positive is inside.
func (p Plane) Distance(v Vec3) float64 {
	return p.Normal.Dot(v) + p.D
}

// Frustum holds six inward-facing planes: left, right, bottom, top, near, far.
type Frustum struct {
	Planes [6]Plane
}

// FrustumOf builds the exact view volume of a camera.
func FrustumOf(c Camera) Frustum {
	f, r, u := c.basis()
	p := c.Position
	var fr Frustum

	switch c.Projection {
	case Orthographic:
		fr.Planes[0] = planeThrough(r, p.Sub(r.Scale(c.HalfWidth)))
		fr.Planes[1] = planeThrough(r.Scale(-1), p.Add(r.Scale(c.HalfWidth)))
		fr.Planes[2] = planeThrough(u, p.Sub(u.Scale(c.HalfHeight)))
		fr.Planes[3] = planeThrough(u.Scale(-1), p.Add(u.Scale(c.HalfHeight)))
	default:
		tanH := math.Tan(c.FOV * math.Pi / 360)
		tanW := tanH * c.Aspect
		fr.Planes[0] = planeThrough(r.Add(f.Scale(tanW)), p)
		fr.Planes[1] = planeThrough(r.Scale(-1).Add(f.Scale(tanW)), p)
		fr.Planes[2] = planeThrough(u.Add(f.Scale(tanH)), p)
		fr.Planes[3] = planeThrough(u.Scale(-1).Add(f.Scale(tanH)), p)
	}
	fr.Planes[4] = planeThrough(f, p.Add(f.Scale(c.Near)))
	fr.Planes[5] = planeThrough(f.Scale(-1), p.Add(f.Scale(c.Far)))
	return fr
}

// ContainsPoint reports whether v is on the inner side of all six planes.
func (fr Frustum) ContainsPoint(v Vec3) bool {
	for _, pl := range fr.Planes {
		if pl.Distance(v) < 0 {
			return false
		}
	}
	return true
}

// CullFraction is the share of the far plane kept by ApproxBounds.
const CullFraction = 0.7

// ApproxBounds returns a cheap box standing in for a perspective camera's
// view volume: the view cone is cut at CullFraction of the far plane and
// boxed around the midpoint of the cut. The box ignores the camera's yaw
// for its extents, so it under- or over-covers when the camera
// does not look along -Z. The second result is false for non-perspective
// cameras, which have no meaningful approximation.
func ApproxBounds(c Camera) (AABB, bool) {
	if c.Projection != Perspective {
		return AABB{}, false
	}
	f, _, _ := c.basis()
	dist := c.Far * CullFraction
	halfHeight := math.Tan(c.FOV*math.Pi/360) * dist
	halfWidth := halfHeight * c.Aspect
	center := c.Position.Add(f.Scale(dist * 0.5))
	return AABB{
		Min: Vec3{center.X - halfWidth, center.Y - halfHeight, center.Z - dist*0.5},
		Max: Vec3{center.X + halfWidth, center.Y + halfHeight, center.Z + dist*0.5},
	}, true
}
