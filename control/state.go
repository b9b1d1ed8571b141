package control

import (
	"github.com/golang/geo/r3"

	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/utils"
)

// JointReadout is what the UI shows for one joint.
type JointReadout struct {
	Name     string
	Angle    float64
	AngleDeg float64
	Limit    referenceframe.Limit
	// Normalized is the angle's position within its limits, 0 at Min and 1 at Max.
	Normalized float64
	Status     referenceframe.JointStatus
}

// State is an immutable snapshot of the arbiter taken after a frame's writes have settled.
type State struct {
	Mode          Mode
	Angles        []float64
	AnglesDeg     []float64
	Limits        []referenceframe.Limit
	Joints        []JointReadout
	SelectedJoint int
	Dragging      bool
	DragKind      DragKind
	DragTarget    *r3.Vector
	Hover         Hit
	LastSolve     *SolveReport

	TargetMarkerOpacity float64

	// EndEffector is nil while the model cannot report it.
	EndEffector *r3.Vector
	Stats       Stats
}

// State returns a snapshot of the current state.
func (a *Arbiter) State() State {
	angles := a.chain.Angles()
	limits := a.chain.Limits()
	names := a.chain.Names()

	st := State{
		Mode:                a.mode,
		Angles:              angles,
		AnglesDeg:           make([]float64, len(angles)),
		Limits:              limits,
		Joints:              make([]JointReadout, len(angles)),
		SelectedJoint:       a.selected,
		Hover:               a.hover,
		TargetMarkerOpacity: a.TargetMarkerOpacity(),
		Stats:               a.stats,
	}
	for i, v := range angles {
		st.AnglesDeg[i] = utils.RadToDeg(v)
		st.Joints[i] = JointReadout{
			Name:       names[i],
			Angle:      v,
			AngleDeg:   st.AnglesDeg[i],
			Limit:      limits[i],
			Normalized: limits[i].Normalize(v),
			Status:     limits[i].Status(v),
		}
	}
	if a.drag != nil {
		st.Dragging = a.drag.Active
		st.DragKind = a.drag.Kind
		if target, ok := a.drag.Target(); ok {
			st.DragTarget = &target
		}
	}
	if a.lastSolve != nil {
		report := *a.lastSolve
		st.LastSolve = &report
	}
	if pos, err := a.ee.EndEffectorPosition(); err == nil {
		st.EndEffector = &pos
	}
	return st
}
