package projection

import (
	"github.com/golang/geo/r3"

	"go.viam.com/armsim/spatialmath"
)

// Projector maps pointer rays onto the plane through a fixed anchor facing the camera. The anchor
// is the end effector position when a drag starts and does not change for that drag.
type Projector struct {
	anchor r3.Vector
}

// NewProjector returns a projector anchored at anchor.
func NewProjector(anchor r3.Vector) *Projector {
	return &Projector{anchor: anchor}
}

// Anchor returns the point the drag plane passes through.
func (p *Projector) Anchor() r3.Vector {
	return p.anchor
}

// Target intersects ray with the plane through the anchor whose normal is the camera's view
// direction. It returns false when the ray is parallel to the plane or the plane is behind it.
func (p *Projector) Target(cam *Camera, ray spatialmath.Ray) (r3.Vector, bool) {
	plane, err := spatialmath.NewPlane(p.anchor, cam.Direction())
	if err != nil {
		return r3.Vector{}, false
	}
	return ray.IntersectPlane(plane)
}
