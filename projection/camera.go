// Package projection turns pointer positions on a viewport into world-space drag targets.
package projection

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/armsim/spatialmath"
	"go.viam.com/armsim/utils"
)

// Camera is a perspective camera looking from Eye at Center. Pointer coordinates are pixels with
// the origin at the top left of a Width by Height viewport.
type Camera struct {
	Eye        r3.Vector
	Center     r3.Vector
	Up         r3.Vector
	FovDegrees float64
	Near       float64
	Far        float64
	Width      int
	Height     int
}

// NewDefaultCamera returns a camera looking down at the arm base from the front right.
func NewDefaultCamera() *Camera {
	return &Camera{
		Eye:        r3.Vector{X: 3, Y: 3, Z: 2.5},
		Center:     r3.Vector{Z: 0.5},
		Up:         r3.Vector{Z: 1},
		FovDegrees: 50,
		Near:       0.1,
		Far:        100,
		Width:      1280,
		Height:     720,
	}
}

// Validate returns every reason the camera cannot produce rays.
func (c *Camera) Validate() error {
	var errs error
	dir := c.Center.Sub(c.Eye)
	if dir.Norm() == 0 {
		errs = multierr.Append(errs, errors.New("camera eye and center must differ"))
	} else if dir.Cross(c.Up).Norm() < 1e-9 {
		errs = multierr.Append(errs, errors.New("camera up must not be parallel to the view direction"))
	}
	if !(c.FovDegrees > 0 && c.FovDegrees < 180) {
		errs = multierr.Append(errs, utils.NewOutOfRangeError("fov_degrees", c.FovDegrees, 0, 180))
	}
	if !(c.Near > 0) {
		errs = multierr.Append(errs, utils.NewNonPositiveError("near", c.Near))
	}
	if !(c.Far > c.Near) {
		errs = multierr.Append(errs, errors.Errorf("far (%v) must be beyond near (%v)", c.Far, c.Near))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = multierr.Append(errs, errors.Errorf("viewport must be positive, got %dx%d", c.Width, c.Height))
	}
	return errs
}

// Direction is the unit world-space view direction.
func (c *Camera) Direction() r3.Vector {
	return c.Center.Sub(c.Eye).Normalize()
}

// ViewMatrix returns the world to eye transform.
func (c *Camera) ViewMatrix() mgl64.Mat4 {
	return mgl64.LookAtV(toVec3(c.Eye), toVec3(c.Center), toVec3(c.Up))
}

// ProjectionMatrix returns the perspective projection.
func (c *Camera) ProjectionMatrix() mgl64.Mat4 {
	aspect := float64(c.Width) / float64(c.Height)
	return mgl64.Perspective(mgl64.DegToRad(c.FovDegrees), aspect, c.Near, c.Far)
}

// RayFromPointer casts a ray from the eye through pixel (px, py).
func (c *Camera) RayFromPointer(px, py float64) (spatialmath.Ray, error) {
	view, proj := c.ViewMatrix(), c.ProjectionMatrix()
	// window coordinates have y pointing up
	wy := float64(c.Height) - py
	near, err := mgl64.UnProject(mgl64.Vec3{px, wy, 0}, view, proj, 0, 0, c.Width, c.Height)
	if err != nil {
		return spatialmath.Ray{}, errors.Wrap(err, "cannot unproject pointer")
	}
	far, err := mgl64.UnProject(mgl64.Vec3{px, wy, 1}, view, proj, 0, 0, c.Width, c.Height)
	if err != nil {
		return spatialmath.Ray{}, errors.Wrap(err, "cannot unproject pointer")
	}
	return spatialmath.NewRay(c.Eye, fromVec3(far.Sub(near)))
}

// PointerFromWorld returns the pixel a world point projects to, and false if the point is behind
// the camera.
func (c *Camera) PointerFromWorld(pt r3.Vector) (float64, float64, bool) {
	if pt.Sub(c.Eye).Dot(c.Direction()) <= 0 {
		return 0, 0, false
	}
	win := mgl64.Project(toVec3(pt), c.ViewMatrix(), c.ProjectionMatrix(), 0, 0, c.Width, c.Height)
	if math.IsNaN(win[0]) || math.IsNaN(win[1]) {
		return 0, 0, false
	}
	return win[0], float64(c.Height) - win[1], true
}

func toVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromVec3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}
