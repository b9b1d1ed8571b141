package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// See here for a thorough explanation: https://en.wikipedia.org/wiki/Axis%E2%80%93angle_representation
// An orientation can be expressed by an axis through the origin, represented by (rx, ry, rz), and a
// rotation around that axis, theta. These four numbers can be used as-is (R4), or they can be
// converted to R3, where theta is multiplied by each of the unit axis components.

// R4AA represents an R4 axis angle.
type R4AA struct {
	Theta float64 `json:"th"`
	RX    float64 `json:"x"`
	RY    float64 `json:"y"`
	RZ    float64 `json:"z"`
}

// NewR4AA creates an empty R4AA struct.
func NewR4AA() *R4AA {
	return &R4AA{Theta: 0, RX: 0, RY: 0, RZ: 1}
}

// ToR3 converts an R4 angle axis to R3.
func (r4 *R4AA) ToR3() r3.Vector {
	return r3.Vector{X: r4.RX * r4.Theta, Y: r4.RY * r4.Theta, Z: r4.RZ * r4.Theta}
}

// Axis returns the rotation axis as a vector.
func (r4 *R4AA) Axis() r3.Vector {
	return r3.Vector{X: r4.RX, Y: r4.RY, Z: r4.RZ}
}

// ToQuat converts an R4 axis angle to a unit quaternion. A zero-length axis yields the identity.
// See: https://www.euclideanspace.com/maths/geometry/rotations/conversions/angleToQuaternion/index.htm
func (r4 *R4AA) ToQuat() quat.Number {
	if !r4.Normalize() {
		return quat.Number{Real: 1}
	}
	sinA := math.Sin(r4.Theta / 2)
	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: r4.RX * sinA,
		Jmag: r4.RY * sinA,
		Kmag: r4.RZ * sinA,
	}
}

// Normalize scales the x, y, and z components of a R4 axis angle to be on the unit sphere. It
// returns false, leaving the axis untouched, when the axis has no length.
func (r4 *R4AA) Normalize() bool {
	norm := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if norm < epsilon {
		return false
	}
	r4.RX /= norm
	r4.RY /= norm
	r4.RZ /= norm
	return true
}

// R3ToR4 converts an R3 angle axis to R4.
func R3ToR4(aa r3.Vector) *R4AA {
	theta := aa.Norm()
	if theta < epsilon {
		return NewR4AA()
	}
	return &R4AA{theta, aa.X / theta, aa.Y / theta, aa.Z / theta}
}

// QuatToR4AA converts a unit quaternion to an R4 axis angle with theta in [0, pi].
func QuatToR4AA(q quat.Number) *R4AA {
	q = Normalize(q)
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	sinHalf := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if sinHalf < epsilon {
		return NewR4AA()
	}
	theta := 2 * math.Atan2(sinHalf, q.Real)
	return &R4AA{theta, q.Imag / sinHalf, q.Jmag / sinHalf, q.Kmag / sinHalf}
}
