package control

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/motionsource"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/robots/ur10"
	"go.viam.com/armsim/ros"
	"go.viam.com/armsim/spatialmath"
)

type fixture struct {
	arbiter *Arbiter
	model   *referenceframe.SerialModel
	chain   *referenceframe.Chain
	ee      referenceframe.EndEffector
	source  *motionsource.Source
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.NewTestLogger(t)
	m, err := ur10.MakeModel("")
	test.That(t, err, test.ShouldBeNil)
	chain, err := m.Chain()
	test.That(t, err, test.ShouldBeNil)
	ee := m.EndEffector(referenceframe.DefaultEndEffectorNames...)

	src, err := motionsource.NewSource(logger, clock.NewMock(), motionsource.Config{
		Increment:  motionsource.DefaultIncrement,
		Waypoints:  motionsource.DefaultWaypoints(),
		JointNames: chain.Names(),
	})
	test.That(t, err, test.ShouldBeNil)
	src.Start()

	a, err := NewArbiter(logger, chain, ee, src, NewDefaultOptions())
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(a.Close)
	return &fixture{arbiter: a, model: m, chain: chain, ee: ee, source: src}
}

func assertWithinLimits(t *testing.T, chain *referenceframe.Chain) {
	t.Helper()
	for i, limit := range chain.Limits() {
		angle, _ := chain.Angle(i)
		test.That(t, math.IsNaN(angle), test.ShouldBeFalse)
		test.That(t, angle, test.ShouldBeBetweenOrEqual, limit.Min, limit.Max)
	}
}

// pixelOf returns the pointer position over a world point.
func pixelOf(t *testing.T, a *Arbiter, pt r3.Vector) PointerEvent {
	t.Helper()
	px, py, ok := a.opts.Camera.PointerFromWorld(pt)
	test.That(t, ok, test.ShouldBeTrue)
	return PointerEvent{X: px, Y: py}
}

func TestNewArbiter(t *testing.T) {
	logger := logging.NewTestLogger(t)
	f := newFixture(t)

	_, err := NewArbiter(logger, nil, f.ee, nil, NewDefaultOptions())
	test.That(t, err, test.ShouldNotBeNil)

	opts := NewDefaultOptions()
	opts.JointDragSensitivity = 0
	opts.DragOptions = nil
	_, err = NewArbiter(logger, f.chain, f.ee, nil, opts)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "joint drag sensitivity")
	test.That(t, err.Error(), test.ShouldContainSubstring, "drag solver")

	a, err := NewArbiter(logger, f.chain, f.ee, nil, NewDefaultOptions())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, a.Mode(), test.ShouldEqual, Simulated)
	// no source: ticking does nothing
	a.Tick()
	test.That(t, a.Stats(), test.ShouldResemble, Stats{})
}

func TestModeTransitions(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	test.That(t, a.Mode(), test.ShouldEqual, Simulated)
	test.That(t, a.Mode().String(), test.ShouldEqual, "simulated")

	a.SetIKAssist(false)
	test.That(t, a.Mode(), test.ShouldEqual, Simulated)

	a.SetIKAssist(true)
	test.That(t, a.Mode(), test.ShouldEqual, ManualIK)
	a.ToggleIKAssist()
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	a.ToggleIKAssist()
	test.That(t, a.Mode(), test.ShouldEqual, ManualIK)

	a.SetManualMode(false)
	test.That(t, a.Mode(), test.ShouldEqual, Simulated)

	test.That(t, a.SelectJoint(2), test.ShouldBeTrue)
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	test.That(t, a.State().SelectedJoint, test.ShouldEqual, 2)
	a.SetManualMode(true)
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	a.SetManualMode(false)
	test.That(t, a.Mode(), test.ShouldEqual, Simulated)
	test.That(t, a.State().SelectedJoint, test.ShouldEqual, -1)

	// invalid indices are no-ops and do not change mode
	test.That(t, a.SelectJoint(-1), test.ShouldBeFalse)
	test.That(t, a.SelectJoint(6), test.ShouldBeFalse)
	test.That(t, a.SetJointAngle(99, 1), test.ShouldBeFalse)
	test.That(t, a.Mode(), test.ShouldEqual, Simulated)

	// out of range input is clamped
	test.That(t, a.SetJointAngle(2, 100), test.ShouldBeTrue)
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	angle, _ := f.chain.Angle(2)
	test.That(t, angle, test.ShouldEqual, f.chain.Limits()[2].Max)
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter
	for _, tc := range []struct {
		mode    Mode
		allowed map[producer]bool
	}{
		{Simulated, map[producer]bool{producerMotion: true}},
		{Manual, map[producer]bool{producerManual: true, producerIK: true}},
		{ManualIK, map[producer]bool{producerManual: true, producerIK: true}},
	} {
		a.mode = tc.mode
		for _, p := range []producer{producerMotion, producerManual, producerIK} {
			test.That(t, a.authorize(p), test.ShouldEqual, tc.allowed[p])
		}
	}

	a.mode = Simulated
	test.That(t, a.write(producerManual, 0, 1), test.ShouldBeFalse)
	angle, _ := f.chain.Angle(0)
	test.That(t, angle, test.ShouldEqual, 0)
	_, err := a.solve(r3.Vector{X: 1}, NewDefaultOptions().SolveOptions)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSingleWriter(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	for i := 0; i < 10; i++ {
		a.Tick()
		test.That(t, f.chain.Angles(), test.ShouldResemble, f.source.Current())
	}
	test.That(t, a.Stats().MotionApplied, test.ShouldEqual, 10)
	test.That(t, a.Stats().MotionDiscarded, test.ShouldEqual, 0)

	a.SetManualMode(true)
	before := f.chain.Angles()
	for i := 0; i < 50; i++ {
		a.Tick()
		test.That(t, f.chain.Angles(), test.ShouldResemble, before)
	}
	test.That(t, a.Stats().MotionApplied, test.ShouldEqual, 10)
	test.That(t, a.Stats().MotionDiscarded, test.ShouldEqual, 50)
	test.That(t, f.source.Progress(), test.ShouldAlmostEqual, 60*motionsource.DefaultIncrement)

	a.SetIKAssist(true)
	a.OnMotionUpdate(ros.JointState{Position: []float64{1, 1, 1, 1, 1, 1}})
	test.That(t, f.chain.Angles(), test.ShouldResemble, before)
	test.That(t, a.Stats().MotionDiscarded, test.ShouldEqual, 51)

	a.SetManualMode(false)
	a.Tick()
	test.That(t, f.chain.Angles(), test.ShouldResemble, f.source.Current())
}

func TestMotionUpdateMapping(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter
	a.SetSource(nil)
	names := f.chain.Names()

	// by name, in any order
	a.OnMotionUpdate(ros.JointState{
		Name:     []string{names[5], names[4], names[3], names[2], names[1], names[0]},
		Position: []float64{0.6, 0.5, 0.4, 0.3, 0.2, 0.1},
	})
	test.That(t, f.chain.Angles(), test.ShouldResemble, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})

	// unknown names fall back to position
	a.OnMotionUpdate(ros.JointState{
		Name:     []string{"a", "b", "c", "d", "e", "f"},
		Position: []float64{1, 2, 4, 4, 5, 6},
	})
	test.That(t, f.chain.Angles()[0], test.ShouldEqual, 1)
	test.That(t, f.chain.Angles()[1], test.ShouldEqual, 2)
	// the elbow is limited to ±π
	test.That(t, f.chain.Angles()[2], test.ShouldEqual, f.chain.Limits()[2].Max)

	// wrong length is ignored
	a.OnMotionUpdate(ros.JointState{Position: []float64{0, 0}})
	test.That(t, f.chain.Angles()[0], test.ShouldEqual, 1)
	test.That(t, a.Stats().MotionApplied, test.ShouldEqual, 2)
}

func TestJointDrag(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	accessor := f.chain.Accessor()
	var ev PointerEvent
	var joint int
	found := false
	for i := 0; i < f.chain.Len() && !found; i++ {
		pos, err := accessor.WorldPosition(i)
		test.That(t, err, test.ShouldBeNil)
		ev = pixelOf(t, a, pos)
		if h, ok := a.HitTest(ev.X, ev.Y).(JointHit); ok {
			joint, found = h.Index, true
		}
	}
	test.That(t, found, test.ShouldBeTrue)

	a.PointerDown(ev)
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	test.That(t, a.Drag(), test.ShouldNotBeNil)
	test.That(t, a.Drag().Kind, test.ShouldEqual, JointDrag)
	test.That(t, a.Drag().Joint(), test.ShouldEqual, joint)
	st := a.State()
	test.That(t, st.SelectedJoint, test.ShouldEqual, joint)
	test.That(t, st.Dragging, test.ShouldBeTrue)
	test.That(t, st.TargetMarkerOpacity, test.ShouldEqual, 0)

	start, _ := f.chain.Angle(joint)
	a.PointerMove(PointerEvent{X: ev.X + 50, Y: ev.Y + 30})
	angle, _ := f.chain.Angle(joint)
	test.That(t, angle, test.ShouldAlmostEqual, start+50*defaultJointDragSensitivity)

	a.PointerMove(PointerEvent{X: ev.X + 1e6, Y: ev.Y})
	angle, _ = f.chain.Angle(joint)
	test.That(t, angle, test.ShouldEqual, f.chain.Limits()[joint].Max)

	a.PointerUp()
	test.That(t, a.Drag(), test.ShouldBeNil)
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	test.That(t, a.State().SelectedJoint, test.ShouldEqual, joint)
}

func TestTargetDrag(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	eePos, err := f.ee.EndEffectorPosition()
	test.That(t, err, test.ShouldBeNil)
	ev := pixelOf(t, a, eePos)

	// the end effector is not grabbable without ik assist
	_, isEE := a.HitTest(ev.X, ev.Y).(EndEffectorHit)
	test.That(t, isEE, test.ShouldBeFalse)

	a.SetIKAssist(true)
	test.That(t, a.HitTest(ev.X, ev.Y), test.ShouldResemble, EndEffectorHit{})

	a.PointerMove(ev)
	test.That(t, a.State().Hover, test.ShouldResemble, EndEffectorHit{})

	a.PointerDown(ev)
	drag := a.Drag()
	test.That(t, drag, test.ShouldNotBeNil)
	test.That(t, drag.Kind, test.ShouldEqual, TargetDrag)
	test.That(t, drag.Anchor, test.ShouldResemble, eePos)
	test.That(t, a.TargetMarkerOpacity(), test.ShouldEqual, 0)

	a.PointerMove(PointerEvent{X: ev.X + 5, Y: ev.Y - 10})
	st := a.State()
	test.That(t, st.LastSolve, test.ShouldNotBeNil)
	test.That(t, st.DragTarget, test.ShouldNotBeNil)
	test.That(t, st.LastSolve.Target, test.ShouldResemble, *st.DragTarget)
	// the target stays on the plane through the anchor facing the camera
	test.That(t, st.DragTarget.Sub(eePos).Dot(a.opts.Camera.Direction()), test.ShouldAlmostEqual, 0, 1e-9)
	if st.LastSolve.Converged {
		test.That(t, st.TargetMarkerOpacity, test.ShouldEqual, 0.8)
	} else {
		test.That(t, st.TargetMarkerOpacity, test.ShouldEqual, 0.4)
	}
	test.That(t, st.LastSolve.Iterations, test.ShouldBeBetweenOrEqual, 1, a.opts.DragOptions.MaxIterations)
	assertWithinLimits(t, f.chain)
	test.That(t, a.Stats().Solves, test.ShouldEqual, 1)

	a.PointerCancel()
	test.That(t, a.Drag(), test.ShouldBeNil)
	test.That(t, a.Mode(), test.ShouldEqual, ManualIK)
	test.That(t, a.TargetMarkerOpacity(), test.ShouldEqual, 0)
	test.That(t, a.State().Dragging, test.ShouldBeFalse)
}

func TestModifierDrag(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	a.PointerDown(PointerEvent{X: 3, Y: 4, Modifier: true})
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	test.That(t, a.Drag(), test.ShouldNotBeNil)
	test.That(t, a.Drag().Kind, test.ShouldEqual, TargetDrag)

	// a second pointer down does not replace the session
	first := a.Drag()
	a.PointerDown(PointerEvent{X: 10, Y: 10, Modifier: true})
	test.That(t, a.Drag(), test.ShouldEqual, first)

	// leaving manual control ends the drag
	a.SetManualMode(false)
	test.That(t, a.Mode(), test.ShouldEqual, Simulated)
	test.That(t, a.Drag(), test.ShouldBeNil)
	test.That(t, first.Active, test.ShouldBeFalse)
}

func TestUnavailableModel(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	f.model.Unload()
	test.That(t, a.HitTest(640, 360), test.ShouldResemble, NoHit{})

	// no drag can start, so the mode is left alone
	a.PointerDown(PointerEvent{Modifier: true})
	test.That(t, a.Mode(), test.ShouldEqual, Simulated)
	test.That(t, a.Drag(), test.ShouldBeNil)
	test.That(t, a.State().EndEffector, test.ShouldBeNil)

	_, err := a.MoveTo(r3.Vector{X: 1})
	test.That(t, errors.Is(err, referenceframe.ErrNodeUnavailable), test.ShouldBeTrue)

	f.model.Load()
	a.PointerDown(PointerEvent{X: 640, Y: 360, Modifier: true})
	test.That(t, a.Drag(), test.ShouldNotBeNil)
	f.model.Unload()
	a.PointerMove(PointerEvent{X: 600, Y: 300})
	test.That(t, a.Stats().Unavailable, test.ShouldEqual, 2)
	test.That(t, a.State().LastSolve, test.ShouldBeNil)

	// manual writes are still stored and reach the model once it is back
	test.That(t, a.SetJointAngle(0, 0.5), test.ShouldBeTrue)
	f.model.Load()
	before, err := f.model.WorldOrientation(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.chain.Push(), test.ShouldBeNil)
	after, err := f.model.WorldOrientation(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.QuaternionAlmostEqual(before, after, 1e-9), test.ShouldBeFalse)
	assertWithinLimits(t, f.chain)
}

func TestMoveTo(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	for i, v := range []float64{0, -1.57, 0, -1.57, 0, 0} {
		test.That(t, a.SetJointAngle(i, v), test.ShouldBeTrue)
	}
	start, err := f.ee.EndEffectorPosition()
	test.That(t, err, test.ShouldBeNil)

	res, err := a.MoveTo(start.Add(r3.Vector{X: 0.01}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)
	test.That(t, a.Mode(), test.ShouldEqual, Manual)
	test.That(t, a.State().LastSolve.Converged, test.ShouldBeTrue)
	test.That(t, a.Stats().Converged, test.ShouldEqual, 1)
	// the marker only shows during a drag
	test.That(t, a.TargetMarkerOpacity(), test.ShouldEqual, 0)
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	a.Tick()
	a.SetIKAssist(true)
	a.SelectJoint(1)
	a.SetJointAngle(1, -1)
	a.PointerDown(PointerEvent{Modifier: true})

	a.Reset()
	st := a.State()
	test.That(t, st.Mode, test.ShouldEqual, Simulated)
	test.That(t, st.SelectedJoint, test.ShouldEqual, -1)
	test.That(t, st.Dragging, test.ShouldBeFalse)
	test.That(t, st.LastSolve, test.ShouldBeNil)
	test.That(t, st.Angles, test.ShouldResemble, []float64{0, 0, 0, 0, 0, 0})
	test.That(t, f.source.Progress(), test.ShouldEqual, 0)
}

func TestStateReadouts(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	limit := f.chain.Limits()[2]
	a.SetJointAngle(2, limit.Max)
	a.SetJointAngle(0, math.Pi/2)

	st := a.State()
	test.That(t, st.Mode, test.ShouldEqual, Manual)
	test.That(t, st.AnglesDeg[0], test.ShouldAlmostEqual, 90)
	test.That(t, st.Joints, test.ShouldHaveLength, 6)
	test.That(t, st.Joints[2].Status, test.ShouldEqual, referenceframe.StatusNearLimit)
	test.That(t, st.Joints[2].Normalized, test.ShouldAlmostEqual, 1)
	test.That(t, st.Joints[1].Status, test.ShouldEqual, referenceframe.StatusOK)
	test.That(t, st.Joints[1].Normalized, test.ShouldAlmostEqual, 0.5)
	test.That(t, st.Joints[0].Name, test.ShouldEqual, f.chain.Names()[0])
	test.That(t, st.EndEffector, test.ShouldNotBeNil)
	test.That(t, st.Hover, test.ShouldResemble, NoHit{})

	// snapshots do not alias arbiter state
	st.Angles[0] = 42
	angle, _ := f.chain.Angle(0)
	test.That(t, angle, test.ShouldAlmostEqual, math.Pi/2)
}

func TestLimitInvariant(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter
	//nolint:gosec
	rnd := rand.New(rand.NewSource(7))
	cam := a.opts.Camera

	for i := 0; i < 400; i++ {
		switch rnd.Intn(9) {
		case 0:
			a.Tick()
		case 1:
			a.SetManualMode(rnd.Intn(2) == 0)
		case 2:
			a.ToggleIKAssist()
		case 3:
			a.SetJointAngle(rnd.Intn(8)-1, (rnd.Float64()-0.5)*40)
		case 4:
			a.PointerDown(PointerEvent{
				X:        rnd.Float64() * float64(cam.Width),
				Y:        rnd.Float64() * float64(cam.Height),
				Modifier: rnd.Intn(3) == 0,
			})
		case 5, 6:
			a.PointerMove(PointerEvent{
				X: rnd.Float64() * float64(cam.Width),
				Y: rnd.Float64() * float64(cam.Height),
			})
		case 7:
			a.PointerUp()
		case 8:
			a.SelectJoint(rnd.Intn(8) - 1)
		}
		assertWithinLimits(t, f.chain)
		if a.Mode() == Simulated {
			test.That(t, a.Drag(), test.ShouldBeNil)
		}
	}
}

func TestSetOptions(t *testing.T) {
	f := newFixture(t)
	a := f.arbiter

	opts := NewDefaultOptions()
	opts.JointDragSensitivity = -1
	test.That(t, a.SetOptions(opts), test.ShouldNotBeNil)
	test.That(t, a.Options().JointDragSensitivity, test.ShouldEqual, defaultJointDragSensitivity)

	opts.JointDragSensitivity = 0.02
	opts.Camera.Width = 640
	test.That(t, a.SetOptions(opts), test.ShouldBeNil)
	test.That(t, a.Options().JointDragSensitivity, test.ShouldEqual, 0.02)
	test.That(t, a.Options().Camera.Width, test.ShouldEqual, 640)
}
