package referenceframe

import (
	"github.com/pkg/errors"
)

// ErrNodeUnavailable is returned by accessors when a joint or end effector cannot currently be
// resolved, e.g. while the model is being reloaded. Callers skip the operation and retry on the
// next tick.
var ErrNodeUnavailable = errors.New("kinematic node unavailable")

// ErrNoModelInformation is used when there is no model information.
var ErrNoModelInformation = errors.New("no model information")

// ErrCircularReference is returned when a model's parent relationships form a cycle.
var ErrCircularReference = errors.New("infinite loop finding path from end effector to world")

// ErrNeedOneEndEffector is returned when a model does not form a single serial chain.
var ErrNeedOneEndEffector = errors.New("need exactly one end effector")

// NewIncorrectDoFError returns an error indicating that the length of an angle vector does not
// match the number of joints.
func NewIncorrectDoFError(actual, expected int) error {
	return errors.Errorf("number of inputs does not match frame DoF, expected %d but got %d", expected, actual)
}

// NewJointOrderError returns an error indicating that joint orders are not unique and contiguous.
func NewJointOrderError(name string, order, count int) error {
	return errors.Errorf("joint %q has order %d, orders must be unique and in [0, %d)", name, order, count)
}

// NewLimitError returns an error indicating that a joint's lower limit exceeds its upper limit.
func NewLimitError(name string, limit Limit) error {
	return errors.Errorf("joint %q has lower limit %f greater than upper limit %f", name, limit.Min, limit.Max)
}

// NewUnsupportedJointTypeError returns an error indicating that a given joint type is not supported.
func NewUnsupportedJointTypeError(jType string) error {
	return errors.Errorf("unsupported joint type detected: %q", jType)
}

// NewFrameNotInListOfTransformsError returns an error indicating that a frame of the given name
// is missing from the provided list of transforms.
func NewFrameNotInListOfTransformsError(frameName string) error {
	return errors.Errorf("frame named '%s' not in the list of transforms", frameName)
}

// NewParentFrameNotInMapOfParentsError returns an error indicating that a parent of the given
// frame is missing from the provided map of parents.
func NewParentFrameNotInMapOfParentsError(frameName string) error {
	return errors.Errorf("parent frame for frame named '%s' not found in map of parents", frameName)
}

// NewReservedWordError returns an error indicating that a reserved name was used for a link or joint.
func NewReservedWordError(configType, reservedWord string) error {
	return errors.Errorf("reserved word: cannot name a %s '%s'", configType, reservedWord)
}
