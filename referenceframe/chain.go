package referenceframe

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/num/quat"
)

// JointSpec is the immutable description of one revolute joint in a serial chain.
type JointSpec struct {
	Name string
	// Order is the joint's position in the chain, 0 at the base.
	Order int
	// Axis is the unit rotation axis in the joint's local frame.
	Axis  r3.Vector
	Limit Limit
}

// NodeAccessor is the capability a chain uses to read live joint transforms and push angles to
// whatever owns the kinematic nodes. Implementations return ErrNodeUnavailable while the nodes
// cannot be resolved.
type NodeAccessor interface {
	WorldPosition(order int) (r3.Vector, error)
	WorldOrientation(order int) (quat.Number, error)
	// AxisLocal reports the joint's local rotation axis, or false if the model provides none.
	AxisLocal(order int) (r3.Vector, bool)
	SetAngle(order int, radians float64) error
}

// EndEffector reports the live pose of the chain's tip.
type EndEffector interface {
	EndEffectorPosition() (r3.Vector, error)
	EndEffectorOrientation() (quat.Number, error)
}

// Chain is an ordered list of joints, base to tip, with the current angle of each. Angles are
// always within their joint's limits. The chain does not own the nodes it drives; writes are
// forwarded to the bound NodeAccessor and skipped when it is unavailable.
type Chain struct {
	joints   []JointSpec
	angles   []float64
	accessor NodeAccessor
}

// NewChain validates joints and returns a chain with every angle at zero, clamped into limits.
// The joints may be given in any order; orders must be unique and contiguous from 0.
func NewChain(joints []JointSpec, accessor NodeAccessor) (*Chain, error) {
	sorted := make([]JointSpec, len(joints))
	copy(sorted, joints)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	var errs error
	for i, j := range sorted {
		if j.Order != i {
			errs = multierr.Append(errs, NewJointOrderError(j.Name, j.Order, len(sorted)))
		}
		if j.Limit.Min > j.Limit.Max || math.IsNaN(j.Limit.Min) || math.IsNaN(j.Limit.Max) {
			errs = multierr.Append(errs, NewLimitError(j.Name, j.Limit))
		}
		if j.Axis.Norm() < 1e-12 {
			sorted[i].Axis = r3.Vector{Z: 1}
		} else {
			sorted[i].Axis = j.Axis.Normalize()
		}
	}
	if errs != nil {
		return nil, errs
	}

	c := &Chain{joints: sorted, angles: make([]float64, len(sorted)), accessor: accessor}
	for i, j := range sorted {
		c.angles[i] = j.Limit.Clamp(0)
	}
	return c, nil
}

// Len returns the number of joints.
func (c *Chain) Len() int {
	return len(c.joints)
}

// Joint returns the spec of the joint at index i.
func (c *Chain) Joint(i int) (JointSpec, bool) {
	if i < 0 || i >= len(c.joints) {
		return JointSpec{}, false
	}
	return c.joints[i], true
}

// Joints returns a copy of every joint spec, base to tip.
func (c *Chain) Joints() []JointSpec {
	out := make([]JointSpec, len(c.joints))
	copy(out, c.joints)
	return out
}

// Names returns the joint names, base to tip.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.joints))
	for _, j := range c.joints {
		names = append(names, j.Name)
	}
	return names
}

// Limits returns every joint's limit, base to tip.
func (c *Chain) Limits() []Limit {
	limits := make([]Limit, 0, len(c.joints))
	for _, j := range c.joints {
		limits = append(limits, j.Limit)
	}
	return limits
}

// Angles returns a copy of the current angle vector.
func (c *Chain) Angles() []float64 {
	out := make([]float64, len(c.angles))
	copy(out, c.angles)
	return out
}

// Angle returns the angle of joint i.
func (c *Chain) Angle(i int) (float64, bool) {
	if i < 0 || i >= len(c.angles) {
		return 0, false
	}
	return c.angles[i], true
}

// AxisLocal returns the rotation axis of joint i, preferring the one reported by the accessor.
func (c *Chain) AxisLocal(i int) r3.Vector {
	if c.accessor != nil {
		if axis, ok := c.accessor.AxisLocal(i); ok && axis.Norm() > 1e-12 {
			return axis.Normalize()
		}
	}
	if j, ok := c.Joint(i); ok {
		return j.Axis
	}
	return r3.Vector{Z: 1}
}

// SetAngle clamps v into joint i's limit, stores it and forwards it to the accessor. An invalid
// index or a NaN value is a no-op and returns false. An unavailable accessor is not an error; the
// stored angle is pushed again on the next Bind or Push.
func (c *Chain) SetAngle(i int, v float64) bool {
	if i < 0 || i >= len(c.angles) || math.IsNaN(v) {
		return false
	}
	c.angles[i] = c.joints[i].Limit.Clamp(v)
	if c.accessor != nil {
		//nolint:errcheck
		c.accessor.SetAngle(i, c.angles[i])
	}
	return true
}

// SetAngles sets every joint angle, clamping each into its limit.
func (c *Chain) SetAngles(values []float64) error {
	if len(values) != len(c.angles) {
		return NewIncorrectDoFError(len(values), len(c.angles))
	}
	for i, v := range values {
		c.SetAngle(i, v)
	}
	return nil
}

// Accessor returns the bound accessor, which may be nil.
func (c *Chain) Accessor() NodeAccessor {
	return c.accessor
}

// Bind replaces the accessor, e.g. after a model reload, and pushes the current angles to it.
func (c *Chain) Bind(accessor NodeAccessor) {
	c.accessor = accessor
	//nolint:errcheck
	c.Push()
}

// Push forwards every stored angle to the accessor, returning the combined write errors.
func (c *Chain) Push() error {
	if c.accessor == nil {
		return nil
	}
	var errs error
	for i, v := range c.angles {
		errs = multierr.Append(errs, c.accessor.SetAngle(i, v))
	}
	return errs
}

// Reset puts every joint back to zero, clamped into its limit.
func (c *Chain) Reset() {
	for i, j := range c.joints {
		c.SetAngle(i, j.Limit.Clamp(0))
	}
}

// AnglesL2Distance returns the euclidean distance between two equal length angle vectors.
func AnglesL2Distance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return floats.Distance(a, b, 2)
}
