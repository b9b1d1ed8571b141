package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const epsilon = 1e-12

// IdentityQuat is the quaternion with no rotation.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// QuatFromAxisAngle returns the unit quaternion rotating theta radians about axis.
func QuatFromAxisAngle(axis r3.Vector, theta float64) quat.Number {
	r4 := &R4AA{Theta: theta, RX: axis.X, RY: axis.Y, RZ: axis.Z}
	return r4.ToQuat()
}

// QuatFromRPY returns the rotation for fixed-axis roll, pitch and yaw, applied in that order.
// This is the URDF convention, R = Rz(yaw) * Ry(pitch) * Rx(roll).
func QuatFromRPY(roll, pitch, yaw float64) quat.Number {
	qx := QuatFromAxisAngle(r3.Vector{X: 1}, roll)
	qy := QuatFromAxisAngle(r3.Vector{Y: 1}, pitch)
	qz := QuatFromAxisAngle(r3.Vector{Z: 1}, yaw)
	return quat.Mul(quat.Mul(qz, qy), qx)
}

// Normalize returns q scaled to unit length. A zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm < epsilon {
		return IdentityQuat()
	}
	return quat.Scale(1/norm, q)
}

// Inverse returns the inverse rotation of the unit quaternion q.
func Inverse(q quat.Number) quat.Number {
	return quat.Conj(Normalize(q))
}

// RotateVector rotates v by the unit quaternion q.
func RotateVector(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// QuaternionAlmostEqual is an equality test that treats q and -q as the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	a, b = Normalize(a), Normalize(b)
	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	return 1-math.Abs(dot) <= tol
}
