package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}

// ProjectOntoPlane removes the component of v along the unit normal n.
func ProjectOntoPlane(v, n r3.Vector) r3.Vector {
	return v.Sub(n.Mul(v.Dot(n)))
}

// SignedAngleAbout returns the angle in [-pi, pi] that rotates unit vector from onto unit vector
// to about axis. The dot product is clamped so rounding never leaves acos's domain.
func SignedAngleAbout(from, to, axis r3.Vector) float64 {
	dot := math.Max(-1, math.Min(1, from.Dot(to)))
	angle := math.Acos(dot)
	if from.Cross(to).Dot(axis) < 0 {
		return -angle
	}
	return angle
}
