package control

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/motionplan/ik"
	"go.viam.com/armsim/motionsource"
	"go.viam.com/armsim/projection"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/ros"
	"go.viam.com/armsim/utils"
)

// default values for pointer interaction.
const (
	// radians per horizontal pixel while dragging a joint marker
	defaultJointDragSensitivity = 0.008
	// meters; joint markers are rings of radius 0.06 and tube 0.012
	defaultJointMarkerRadius = 0.072
	// meters; the end effector sphere is enlarged while IK assist is on
	defaultEndEffectorMarkerRadius = 0.06
)

// target marker opacities.
const (
	convergedMarkerOpacity   = 0.8
	unconvergedMarkerOpacity = 0.4
)

// Options configures an Arbiter.
type Options struct {
	Camera *projection.Camera
	// SolveOptions are used by MoveTo.
	SolveOptions *ik.Options
	// DragOptions are used for every pointer move of a target drag.
	DragOptions             *ik.Options
	JointDragSensitivity    float64
	JointMarkerRadius       float64
	EndEffectorMarkerRadius float64
}

// NewDefaultOptions returns the interaction defaults.
func NewDefaultOptions() Options {
	return Options{
		Camera:                  projection.NewDefaultCamera(),
		SolveOptions:            ik.NewDefaultOptions(),
		DragOptions:             ik.NewDragOptions(),
		JointDragSensitivity:    defaultJointDragSensitivity,
		JointMarkerRadius:       defaultJointMarkerRadius,
		EndEffectorMarkerRadius: defaultEndEffectorMarkerRadius,
	}
}

// Validate ensures all parts of the options are valid.
func (opts *Options) Validate() error {
	var errs error
	if opts.Camera == nil {
		errs = multierr.Append(errs, errors.New("camera is required"))
	} else {
		errs = multierr.Append(errs, opts.Camera.Validate())
	}
	errs = multierr.Append(errs, errors.Wrap(opts.SolveOptions.Validate(), "solver"))
	errs = multierr.Append(errs, errors.Wrap(opts.DragOptions.Validate(), "drag solver"))
	if !(opts.JointDragSensitivity > 0) {
		errs = multierr.Append(errs, utils.NewNonPositiveError("joint drag sensitivity", opts.JointDragSensitivity))
	}
	if !(opts.JointMarkerRadius > 0) {
		errs = multierr.Append(errs, utils.NewNonPositiveError("joint marker radius", opts.JointMarkerRadius))
	}
	if !(opts.EndEffectorMarkerRadius > 0) {
		errs = multierr.Append(errs, utils.NewNonPositiveError("end effector marker radius", opts.EndEffectorMarkerRadius))
	}
	return errs
}

// SolveReport summarizes the most recent IK solve.
type SolveReport struct {
	Converged  bool
	Distance   float64
	Iterations int
	Target     r3.Vector
}

// Stats counts what happened to angle updates.
type Stats struct {
	MotionApplied   int
	MotionDiscarded int
	ManualWrites    int
	Solves          int
	Converged       int
	Unavailable     int
}

// Arbiter owns the control mode and is the only path through which joint angles change. In
// Simulated mode only the motion source may write; in Manual and ManualIK only the operator and
// the IK solver may. An Arbiter is not safe for concurrent use; it is meant to be driven from a
// single frame loop.
type Arbiter struct {
	logger logging.Logger
	opts   Options

	chain  *referenceframe.Chain
	ee     referenceframe.EndEffector
	solver *ik.CCDSolver

	source      *motionsource.Source
	unsubscribe func()

	mode      Mode
	selected  int
	drag      *DragSession
	hover     Hit
	lastSolve *SolveReport
	stats     Stats
}

// NewArbiter returns an arbiter in Simulated mode driving chain. If source is non-nil the arbiter
// subscribes to its joint states.
func NewArbiter(
	logger logging.Logger,
	chain *referenceframe.Chain,
	ee referenceframe.EndEffector,
	source *motionsource.Source,
	opts Options,
) (*Arbiter, error) {
	if chain == nil || ee == nil {
		return nil, errors.New("arbiter needs a chain and an end effector")
	}
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid control options")
	}
	a := &Arbiter{
		logger:   logger,
		opts:     opts,
		chain:    chain,
		ee:       ee,
		solver:   ik.NewCCDSolver(logger.Sublogger("ik")),
		mode:     Simulated,
		selected: -1,
		hover:    NoHit{},
	}
	a.SetSource(source)
	return a, nil
}

// Close unsubscribes from the motion source.
func (a *Arbiter) Close() {
	a.SetSource(nil)
}

// SetSource replaces the motion source.
func (a *Arbiter) SetSource(source *motionsource.Source) {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	a.source = source
	if source != nil {
		a.unsubscribe = source.Subscribe(ros.JointStatesTopic, a.OnMotionUpdate)
	}
}

// Rebind points the arbiter at a reloaded model. Any drag ends and a selection beyond the new
// chain is cleared.
func (a *Arbiter) Rebind(chain *referenceframe.Chain, ee referenceframe.EndEffector) error {
	if chain == nil || ee == nil {
		return errors.New("arbiter needs a chain and an end effector")
	}
	a.endDrag()
	a.chain = chain
	a.ee = ee
	if a.selected >= chain.Len() {
		a.selected = -1
	}
	a.hover = NoHit{}
	return nil
}

// SetOptions replaces the camera, solver and interaction settings. An active drag keeps going with
// the new settings.
func (a *Arbiter) SetOptions(opts Options) error {
	if err := opts.Validate(); err != nil {
		return errors.Wrap(err, "invalid control options")
	}
	a.opts = opts
	return nil
}

// Options returns the current settings.
func (a *Arbiter) Options() Options {
	return a.opts
}

// Mode returns the active control mode.
func (a *Arbiter) Mode() Mode {
	return a.mode
}

// Chain returns the chain being driven.
func (a *Arbiter) Chain() *referenceframe.Chain {
	return a.chain
}

// Tick advances the motion source by one step. Its joint state arrives through OnMotionUpdate
// and is only applied in Simulated mode.
func (a *Arbiter) Tick() {
	if a.source != nil {
		a.source.Tick()
	}
}

// authorize reports whether p may write angles in the current mode.
func (a *Arbiter) authorize(p producer) bool {
	switch a.mode {
	case Simulated:
		return p == producerMotion
	case Manual, ManualIK:
		return p == producerManual || p == producerIK
	default:
		return false
	}
}

func (a *Arbiter) setMode(m Mode, reason string) {
	if a.mode == m {
		return
	}
	a.logger.Debugw("control mode changed", "from", a.mode, "to", m, "reason", reason)
	a.mode = m
}

// enterManual leaves Simulated for Manual. Manual and ManualIK are kept.
func (a *Arbiter) enterManual(reason string) {
	if a.mode == Simulated {
		a.setMode(Manual, reason)
	}
}

// OnMotionUpdate applies a joint state from the motion source. Outside Simulated mode the update
// is discarded. Positions are matched to joints by name, or by position when the names do not
// match the chain.
func (a *Arbiter) OnMotionUpdate(js ros.JointState) {
	if !a.authorize(producerMotion) {
		a.stats.MotionDiscarded++
		return
	}
	angles, ok := a.motionAngles(js)
	if !ok {
		a.logger.Debugw("ignoring joint state that does not fit the chain",
			"names", js.Name, "positions", len(js.Position), "joints", a.chain.Len())
		return
	}
	for i, v := range angles {
		a.chain.SetAngle(i, v)
	}
	a.stats.MotionApplied++
}

func (a *Arbiter) motionAngles(js ros.JointState) ([]float64, bool) {
	names := a.chain.Names()
	if len(js.Name) == len(js.Position) && len(js.Name) > 0 {
		index := make(map[string]int, len(js.Name))
		for i, n := range js.Name {
			index[n] = i
		}
		out := make([]float64, len(names))
		matched := true
		for i, n := range names {
			k, ok := index[n]
			if !ok {
				matched = false
				break
			}
			out[i] = js.Position[k]
		}
		if matched {
			return out, true
		}
	}
	if len(js.Position) != len(names) {
		return nil, false
	}
	return append([]float64(nil), js.Position...), true
}

// SetManualMode turns manual control on or off. Turning it off returns to Simulated, ending any
// drag, clearing the selection and turning IK assist off.
func (a *Arbiter) SetManualMode(on bool) {
	if on {
		a.enterManual("manual mode enabled")
		return
	}
	a.endDrag()
	a.selected = -1
	a.setMode(Simulated, "manual mode disabled")
}

// SetIKAssist turns IK assist on or off. Turning it on from Simulated passes through Manual.
func (a *Arbiter) SetIKAssist(on bool) {
	if on {
		a.enterManual("ik assist enabled")
		a.setMode(ManualIK, "ik assist enabled")
		return
	}
	if a.mode == ManualIK {
		if a.drag != nil && a.drag.Kind == TargetDrag {
			a.endDrag()
		}
		a.setMode(Manual, "ik assist disabled")
	}
}

// ToggleIKAssist flips IK assist.
func (a *Arbiter) ToggleIKAssist() {
	a.SetIKAssist(a.mode != ManualIK)
}

// SelectJoint selects joint i for editing and switches to manual control. An invalid index is a
// no-op and returns false.
func (a *Arbiter) SelectJoint(i int) bool {
	if i < 0 || i >= a.chain.Len() {
		return false
	}
	a.enterManual("joint selected")
	a.selected = i
	return true
}

// ClearSelection deselects any joint.
func (a *Arbiter) ClearSelection() {
	a.selected = -1
}

// SetJointAngle sets joint i to v radians, clamped into its limits, and switches to manual
// control. An invalid index is a no-op and returns false.
func (a *Arbiter) SetJointAngle(i int, v float64) bool {
	if i < 0 || i >= a.chain.Len() {
		return false
	}
	a.enterManual("joint edited")
	return a.write(producerManual, i, v)
}

func (a *Arbiter) write(p producer, i int, v float64) bool {
	if !a.authorize(p) {
		a.logger.Debugw("write rejected", "producer", p, "mode", a.mode)
		return false
	}
	if !a.chain.SetAngle(i, v) {
		return false
	}
	a.stats.ManualWrites++
	return true
}

// MoveTo runs one IK solve toward target with the solve options, switching to manual control.
// ErrNodeUnavailable is returned when the model is reloading.
func (a *Arbiter) MoveTo(target r3.Vector) (*ik.Result, error) {
	a.enterManual("move to target")
	return a.solve(target, a.opts.SolveOptions)
}

func (a *Arbiter) solve(target r3.Vector, opts *ik.Options) (*ik.Result, error) {
	if !a.authorize(producerIK) {
		return nil, errors.Errorf("ik writes are not allowed in %s mode", a.mode)
	}
	res, err := a.solver.Solve(a.chain, a.ee, target, opts)
	if err != nil {
		if errors.Is(err, referenceframe.ErrNodeUnavailable) {
			a.stats.Unavailable++
		}
		return res, err
	}
	a.stats.Solves++
	if res.Converged {
		a.stats.Converged++
	}
	a.lastSolve = &SolveReport{
		Converged:  res.Converged,
		Distance:   res.Distance,
		Iterations: res.Iterations,
		Target:     target,
	}
	return res, nil
}

// HitTest returns the marker under pixel (px, py). The end effector marker can only be hit while
// IK assist is on, and takes priority over joints.
func (a *Arbiter) HitTest(px, py float64) Hit {
	ray, err := a.opts.Camera.RayFromPointer(px, py)
	if err != nil {
		return NoHit{}
	}
	if a.mode == ManualIK {
		if pos, err := a.ee.EndEffectorPosition(); err == nil {
			if _, ok := ray.IntersectSphere(pos, a.opts.EndEffectorMarkerRadius); ok {
				return EndEffectorHit{}
			}
		}
	}
	accessor := a.chain.Accessor()
	if accessor == nil {
		return NoHit{}
	}
	best, bestT := -1, math.Inf(1)
	for i := 0; i < a.chain.Len(); i++ {
		pos, err := accessor.WorldPosition(i)
		if err != nil {
			continue
		}
		if t, ok := ray.IntersectSphere(pos, a.opts.JointMarkerRadius); ok && t < bestT {
			best, bestT = i, t
		}
	}
	if best < 0 {
		return NoHit{}
	}
	return JointHit{Index: best}
}

// PointerDown starts a drag. The modifier gesture grabs the end effector from anywhere; otherwise
// the marker under the pointer decides. Any drag switches to manual control. A pointer down while
// a drag is active is ignored.
func (a *Arbiter) PointerDown(ev PointerEvent) {
	if a.drag != nil {
		return
	}
	var hit Hit = EndEffectorHit{}
	if !ev.Modifier {
		hit = a.HitTest(ev.X, ev.Y)
	}
	switch h := hit.(type) {
	case EndEffectorHit:
		a.startTargetDrag()
	case JointHit:
		a.startJointDrag(h.Index, ev.X)
	case NoHit:
	}
}

func (a *Arbiter) startTargetDrag() {
	anchor, err := a.ee.EndEffectorPosition()
	if err != nil {
		a.logger.Debugw("cannot start target drag", "error", err)
		return
	}
	a.enterManual("target drag started")
	a.lastSolve = nil
	a.drag = &DragSession{
		Kind:      TargetDrag,
		Anchor:    anchor,
		Active:    true,
		joint:     -1,
		projector: projection.NewProjector(anchor),
	}
}

func (a *Arbiter) startJointDrag(i int, x float64) {
	if !a.SelectJoint(i) {
		return
	}
	angle, _ := a.chain.Angle(i)
	a.drag = &DragSession{
		Kind:       JointDrag,
		Active:     true,
		joint:      i,
		startX:     x,
		startAngle: angle,
	}
}

// PointerMove routes the pointer to the active drag, or updates the hover state when there is
// none. A target drag projects the pointer onto its plane and solves toward it; if the pointer ray
// misses the plane the previous target is held and nothing is solved.
func (a *Arbiter) PointerMove(ev PointerEvent) {
	if a.drag == nil {
		a.hover = a.HitTest(ev.X, ev.Y)
		return
	}
	switch a.drag.Kind {
	case JointDrag:
		delta := (ev.X - a.drag.startX) * a.opts.JointDragSensitivity
		a.write(producerManual, a.drag.joint, a.drag.startAngle+delta)
	case TargetDrag:
		ray, err := a.opts.Camera.RayFromPointer(ev.X, ev.Y)
		if err != nil {
			return
		}
		target, ok := a.drag.projector.Target(a.opts.Camera, ray)
		if !ok {
			return
		}
		a.drag.target, a.drag.hasTarget = target, true
		if _, err := a.solve(target, a.opts.DragOptions); err != nil {
			a.logger.Debugw("drag solve skipped", "error", err)
		}
	}
}

// PointerUp ends the active drag. The mode is unchanged.
func (a *Arbiter) PointerUp() {
	a.endDrag()
}

// PointerCancel ends the active drag the same way PointerUp does.
func (a *Arbiter) PointerCancel() {
	a.endDrag()
}

func (a *Arbiter) endDrag() {
	if a.drag == nil {
		return
	}
	a.drag.Active = false
	a.drag = nil
}

// Drag returns the active drag session, or nil.
func (a *Arbiter) Drag() *DragSession {
	return a.drag
}

// TargetMarkerOpacity is how visible the IK target marker should be: brighter when the last drag
// solve converged, hidden when no target drag is running.
func (a *Arbiter) TargetMarkerOpacity() float64 {
	if a.drag == nil || a.drag.Kind != TargetDrag || a.lastSolve == nil {
		return 0
	}
	if a.lastSolve.Converged {
		return convergedMarkerOpacity
	}
	return unconvergedMarkerOpacity
}

// Reset zeroes the joints, returns to Simulated mode and rewinds the motion source.
func (a *Arbiter) Reset() {
	a.endDrag()
	a.selected = -1
	a.hover = NoHit{}
	a.lastSolve = nil
	a.setMode(Simulated, "reset")
	a.chain.Reset()
	if a.source != nil {
		a.source.Reset()
	}
}

// Stats returns the update counters.
func (a *Arbiter) Stats() Stats {
	return a.stats
}
