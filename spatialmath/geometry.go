package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// parallelTolerance bounds |n·d| below which a ray is treated as parallel to a plane.
const parallelTolerance = 1e-9

// Plane is an infinite plane through Point with unit Normal.
type Plane struct {
	Point  r3.Vector
	Normal r3.Vector
}

// NewPlane creates a plane through point. The normal is normalized.
func NewPlane(point, normal r3.Vector) (Plane, error) {
	if normal.Norm() < epsilon {
		return Plane{}, errors.New("plane normal must be non-zero")
	}
	return Plane{Point: point, Normal: normal.Normalize()}, nil
}

// Ray is a half-line starting at Origin heading along unit Direction.
type Ray struct {
	Origin    r3.Vector
	Direction r3.Vector
}

// NewRay creates a ray. The direction is normalized.
func NewRay(origin, direction r3.Vector) (Ray, error) {
	if direction.Norm() < epsilon {
		return Ray{}, errors.New("ray direction must be non-zero")
	}
	return Ray{Origin: origin, Direction: direction.Normalize()}, nil
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vector {
	return r.Origin.Add(r.Direction.Mul(t))
}

// IntersectPlane returns where the ray crosses the plane. It reports false when the ray is
// parallel to the plane or when the plane lies behind the ray origin.
func (r Ray) IntersectPlane(p Plane) (r3.Vector, bool) {
	denom := p.Normal.Dot(r.Direction)
	if math.Abs(denom) < parallelTolerance {
		return r3.Vector{}, false
	}
	t := p.Normal.Dot(p.Point.Sub(r.Origin)) / denom
	if t < 0 {
		return r3.Vector{}, false
	}
	return r.At(t), true
}

// IntersectSphere returns the distance along the ray to the nearest point of a sphere that is not
// behind the origin.
func (r Ray) IntersectSphere(center r3.Vector, radius float64) (float64, bool) {
	oc := r.Origin.Sub(center)
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return t, true
	}
	if t := -b + sq; t >= 0 {
		// origin is inside the sphere
		return 0, true
	}
	return 0, false
}
