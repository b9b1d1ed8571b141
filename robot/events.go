package robot

import (
	"github.com/golang/geo/r3"

	"go.viam.com/armsim/control"
)

// An Event is operator input queued for the frame loop. Events are applied in arrival order, each
// to completion, between frames.
type Event interface {
	apply(r *Robot)
}

// PointerDown starts a drag.
type PointerDown struct {
	control.PointerEvent
}

// PointerMove moves the pointer, updating a drag or the hover state.
type PointerMove struct {
	control.PointerEvent
}

// PointerUp ends a drag.
type PointerUp struct{}

// PointerCancel ends a drag that the platform abandoned.
type PointerCancel struct{}

// SetManualMode turns manual control on or off.
type SetManualMode struct {
	On bool
}

// SetIKAssist turns IK assist on or off.
type SetIKAssist struct {
	On bool
}

// ToggleIKAssist flips IK assist.
type ToggleIKAssist struct{}

// SelectJoint selects a joint for editing. Index -1 clears the selection.
type SelectJoint struct {
	Index int
}

// SetJointAngle sets one joint, in radians.
type SetJointAngle struct {
	Index int
	Angle float64
}

// MoveTo solves toward a target once.
type MoveTo struct {
	Target r3.Vector
}

// Reset zeroes the arm and rewinds the motion source.
type Reset struct{}

// SetMotionRunning pauses or resumes the motion source.
type SetMotionRunning struct {
	Running bool
}

func (e PointerDown) apply(r *Robot)   { r.arbiter.PointerDown(e.PointerEvent) }
func (e PointerMove) apply(r *Robot)   { r.arbiter.PointerMove(e.PointerEvent) }
func (PointerUp) apply(r *Robot)       { r.arbiter.PointerUp() }
func (PointerCancel) apply(r *Robot)   { r.arbiter.PointerCancel() }
func (e SetManualMode) apply(r *Robot) { r.arbiter.SetManualMode(e.On) }
func (e SetIKAssist) apply(r *Robot)   { r.arbiter.SetIKAssist(e.On) }
func (ToggleIKAssist) apply(r *Robot)  { r.arbiter.ToggleIKAssist() }
func (Reset) apply(r *Robot)           { r.arbiter.Reset() }

func (e SelectJoint) apply(r *Robot) {
	if e.Index < 0 {
		r.arbiter.ClearSelection()
		return
	}
	if !r.arbiter.SelectJoint(e.Index) {
		r.logger.Debugw("ignoring selection of unknown joint", "index", e.Index)
	}
}

func (e SetJointAngle) apply(r *Robot) {
	if !r.arbiter.SetJointAngle(e.Index, e.Angle) {
		r.logger.Debugw("ignoring angle for unknown joint", "index", e.Index)
	}
}

func (e MoveTo) apply(r *Robot) {
	res, err := r.arbiter.MoveTo(e.Target)
	if err != nil {
		r.logger.Debugw("move to target skipped", "target", e.Target, "error", err)
		return
	}
	r.logger.Debugw("move to target", "target", e.Target, "converged", res.Converged, "iterations", res.Iterations)
}

func (e SetMotionRunning) apply(r *Robot) {
	if e.Running {
		r.source.Start()
	} else {
		r.source.Stop()
	}
}
