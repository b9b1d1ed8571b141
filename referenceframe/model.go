package referenceframe

import (
	"sync"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/armsim/spatialmath"
)

// World is the name of the root frame a model is attached to.
const World = "world"

// DefaultEndEffectorNames are tried, in order, when resolving a model's end effector.
var DefaultEndEffectorNames = []string{"ee_link", "ee_fixed_joint"}

// frame is one element of a serial model: either a static transform (a link) or a revolute
// joint rotating about its axis.
type frame struct {
	name  string
	pose  spatialmath.Pose
	joint *JointSpec
}

// SerialModel is a serial kinematic chain computed with forward kinematics. It stands in for a
// scene graph: it implements NodeAccessor and, through EndEffector, the tip pose. While
// unloaded every query returns ErrNodeUnavailable.
type SerialModel struct {
	mu     sync.RWMutex
	name   string
	frames []frame
	// byName maps a frame name to its index in frames.
	byName map[string]int
	// jointFrames maps a joint order to its index in frames.
	jointFrames []int
	angles      []float64
	loaded      bool
}

// newSerialModel returns a loaded model with all angles at zero. Joint orders are assigned in
// frame order.
func newSerialModel(name string, frames []frame) *SerialModel {
	m := &SerialModel{name: name, frames: frames, byName: map[string]int{}, loaded: true}
	for i, f := range frames {
		m.byName[f.name] = i
		if f.joint != nil {
			f.joint.Order = len(m.jointFrames)
			m.jointFrames = append(m.jointFrames, i)
		}
	}
	m.angles = make([]float64, len(m.jointFrames))
	return m
}

// Name returns the model's name.
func (m *SerialModel) Name() string {
	return m.name
}

// JointSpecs returns the revolute joints of the model, base to tip.
func (m *SerialModel) JointSpecs() []JointSpec {
	specs := make([]JointSpec, 0, len(m.jointFrames))
	for _, idx := range m.jointFrames {
		specs = append(specs, *m.frames[idx].joint)
	}
	return specs
}

// FrameNames returns the name of every frame, base to tip.
func (m *SerialModel) FrameNames() []string {
	names := make([]string, 0, len(m.frames))
	for _, f := range m.frames {
		names = append(names, f.name)
	}
	return names
}

// Load makes the model's nodes available.
func (m *SerialModel) Load() {
	m.mu.Lock()
	m.loaded = true
	m.mu.Unlock()
}

// Unload makes every query fail with ErrNodeUnavailable until Load is called.
func (m *SerialModel) Unload() {
	m.mu.Lock()
	m.loaded = false
	m.mu.Unlock()
}

// Loaded reports whether the model's nodes are available.
func (m *SerialModel) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// framePose returns the world pose at the end of frames[idx], including the joint's own rotation.
// The caller holds mu.
func (m *SerialModel) framePose(idx int) spatialmath.Pose {
	pose := spatialmath.NewZeroPose()
	joint := 0
	for i := 0; i <= idx; i++ {
		f := m.frames[i]
		if f.joint == nil {
			pose = spatialmath.Compose(pose, f.pose)
			continue
		}
		rot := spatialmath.QuatFromAxisAngle(f.joint.Axis, m.angles[joint])
		pose = spatialmath.Compose(pose, spatialmath.Pose{Orientation: rot})
		joint++
	}
	return pose
}

func (m *SerialModel) jointPose(order int) (spatialmath.Pose, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded || order < 0 || order >= len(m.jointFrames) {
		return spatialmath.Pose{}, ErrNodeUnavailable
	}
	return m.framePose(m.jointFrames[order]), nil
}

// WorldPosition returns the world position of joint order.
func (m *SerialModel) WorldPosition(order int) (r3.Vector, error) {
	pose, err := m.jointPose(order)
	return pose.Point, err
}

// WorldOrientation returns the world orientation of joint order.
func (m *SerialModel) WorldOrientation(order int) (quat.Number, error) {
	pose, err := m.jointPose(order)
	return pose.Orientation, err
}

// AxisLocal returns the rotation axis of joint order.
func (m *SerialModel) AxisLocal(order int) (r3.Vector, bool) {
	if order < 0 || order >= len(m.jointFrames) {
		return r3.Vector{}, false
	}
	return m.frames[m.jointFrames[order]].joint.Axis, true
}

// SetAngle sets joint order's angle.
func (m *SerialModel) SetAngle(order int, radians float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded || order < 0 || order >= len(m.angles) {
		return ErrNodeUnavailable
	}
	m.angles[order] = radians
	return nil
}

// FramePose returns the world pose of the named frame.
func (m *SerialModel) FramePose(name string) (spatialmath.Pose, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.byName[name]
	if !m.loaded || !ok {
		return spatialmath.Pose{}, ErrNodeUnavailable
	}
	return m.framePose(idx), nil
}

// EndEffector resolves the tip of the model by the first matching frame name, falling back to the
// last joint. The result is bound to this model instance.
func (m *SerialModel) EndEffector(names ...string) EndEffector {
	for _, name := range names {
		if idx, ok := m.byName[name]; ok {
			return &endEffector{model: m, name: name, frameIdx: idx}
		}
	}
	if len(m.jointFrames) == 0 {
		return &endEffector{model: m, frameIdx: len(m.frames) - 1}
	}
	last := m.jointFrames[len(m.jointFrames)-1]
	return &endEffector{model: m, name: m.frames[last].name, frameIdx: last}
}

type endEffector struct {
	model    *SerialModel
	name     string
	frameIdx int
}

func (ee *endEffector) pose() (spatialmath.Pose, error) {
	ee.model.mu.RLock()
	defer ee.model.mu.RUnlock()
	if !ee.model.loaded || ee.frameIdx < 0 {
		return spatialmath.Pose{}, ErrNodeUnavailable
	}
	return ee.model.framePose(ee.frameIdx), nil
}

// Name returns the resolved frame name.
func (ee *endEffector) Name() string {
	return ee.name
}

func (ee *endEffector) EndEffectorPosition() (r3.Vector, error) {
	pose, err := ee.pose()
	return pose.Point, err
}

func (ee *endEffector) EndEffectorOrientation() (quat.Number, error) {
	pose, err := ee.pose()
	return pose.Orientation, err
}

// Reach returns an upper bound on the distance from the base to the end effector: the sum of
// every link offset.
func (m *SerialModel) Reach() float64 {
	var reach float64
	for _, f := range m.frames {
		if f.joint == nil {
			reach += f.pose.Point.Norm()
		}
	}
	return reach
}
