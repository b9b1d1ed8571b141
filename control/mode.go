// Package control decides which producer may write joint angles: the autonomous motion source,
// the operator's direct joint input, or the IK solver driven by pointer drags.
package control

import (
	"github.com/golang/geo/r3"

	"go.viam.com/armsim/projection"
)

// Mode is the arbiter's control mode. Exactly one is active at a time.
type Mode int

// The control modes.
const (
	// Simulated lets the motion source drive the arm.
	Simulated Mode = iota
	// Manual lets the operator set joints directly.
	Manual
	// ManualIK is Manual with IK assist on, making the end effector grabbable.
	ManualIK
)

func (m Mode) String() string {
	switch m {
	case Simulated:
		return "simulated"
	case Manual:
		return "manual"
	case ManualIK:
		return "manual_ik"
	default:
		return "unknown"
	}
}

// producer identifies a writer of joint angles.
type producer int

const (
	producerMotion producer = iota
	producerManual
	producerIK
)

func (p producer) String() string {
	switch p {
	case producerMotion:
		return "motion"
	case producerManual:
		return "manual"
	case producerIK:
		return "ik"
	default:
		return "unknown"
	}
}

// Hit is the result of hit testing the markers under a pointer: JointHit, EndEffectorHit or NoHit.
type Hit interface {
	isHit()
	String() string
}

// JointHit is a hit on the marker of the joint at Index.
type JointHit struct {
	Index int
}

// EndEffectorHit is a hit on the end effector marker.
type EndEffectorHit struct{}

// NoHit means the pointer is over no marker.
type NoHit struct{}

func (JointHit) isHit()       {}
func (EndEffectorHit) isHit() {}
func (NoHit) isHit()          {}

func (JointHit) String() string       { return "joint" }
func (EndEffectorHit) String() string { return "end_effector" }
func (NoHit) String() string          { return "none" }

// PointerEvent is a pointer position in viewport pixels. Modifier is set for the gesture that
// grabs the end effector from anywhere, such as shift-click or a two finger touch.
type PointerEvent struct {
	X        float64
	Y        float64
	Modifier bool
}

// DragKind tells what a drag session moves.
type DragKind int

// The kinds of drag.
const (
	// JointDrag turns the selected joint with horizontal pointer motion.
	JointDrag DragKind = iota + 1
	// TargetDrag moves an IK target on the plane facing the camera.
	TargetDrag
)

func (k DragKind) String() string {
	switch k {
	case JointDrag:
		return "joint"
	case TargetDrag:
		return "target"
	default:
		return "none"
	}
}

// DragSession lives from pointer down to pointer up or cancel.
type DragSession struct {
	Kind   DragKind
	Anchor r3.Vector
	Active bool

	joint      int
	startX     float64
	startAngle float64

	projector *projection.Projector
	target    r3.Vector
	hasTarget bool
}

// Joint returns the joint a JointDrag turns.
func (d *DragSession) Joint() int {
	return d.joint
}

// Target returns the last target a TargetDrag projected, held when a pointer ray misses the plane.
func (d *DragSession) Target() (r3.Vector, bool) {
	return d.target, d.hasTarget
}
