package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose is a position and orientation in some frame.
type Pose struct {
	Point       r3.Vector
	Orientation quat.Number
}

// NewZeroPose returns a pose at the origin with no rotation.
func NewZeroPose() Pose {
	return Pose{Orientation: IdentityQuat()}
}

// NewPose builds a pose from a point and an orientation.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{Point: point, Orientation: Normalize(orientation)}
}

// Compose returns the pose b expressed in a's parent frame, i.e. a followed by b.
func Compose(a, b Pose) Pose {
	return Pose{
		Point:       a.Point.Add(RotateVector(a.Orientation, b.Point)),
		Orientation: Normalize(quat.Mul(a.Orientation, b.Orientation)),
	}
}

// Transform maps a point in the pose's local frame into its parent frame.
func (p Pose) Transform(point r3.Vector) r3.Vector {
	return p.Point.Add(RotateVector(p.Orientation, point))
}

func (p Pose) String() string {
	aa := QuatToR4AA(p.Orientation)
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f OX:%.3f OY:%.3f OZ:%.3f Theta:%.3f}",
		p.Point.X, p.Point.Y, p.Point.Z, aa.RX, aa.RY, aa.RZ, aa.Theta)
}

// PoseAlmostEqual returns whether two poses share a position and rotation within tol.
func PoseAlmostEqual(a, b Pose, tol float64) bool {
	return R3VectorAlmostEqual(a.Point, b.Point, tol) && QuaternionAlmostEqual(a.Orientation, b.Orientation, tol)
}
