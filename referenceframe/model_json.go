package referenceframe

import (
	"encoding/json"
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"

	"go.viam.com/armsim/spatialmath"
	"go.viam.com/armsim/utils"
)

// Supported joint types.
const (
	RevoluteJoint   = "revolute"
	ContinuousJoint = "continuous"
	FixedJoint      = "fixed"
	PrismaticJoint  = "prismatic"
)

// ModelConfigJSON represents all supported fields in a kinematics JSON file. Translations are in
// millimeters and joint limits in degrees.
type ModelConfigJSON struct {
	Name         string        `json:"name"`
	KinParamType string        `json:"kinematic_param_type,omitempty"`
	Links        []LinkConfig  `json:"links,omitempty"`
	Joints       []JointConfig `json:"joints,omitempty"`
}

// LinkConfig is a static transform with a parent.
type LinkConfig struct {
	ID          string                         `json:"id"`
	Translation spatialmath.TranslationConfig  `json:"translation"`
	Orientation *spatialmath.OrientationConfig `json:"orientation,omitempty"`
	Parent      string                         `json:"parent"`
}

// JointConfig is a revolute joint with a parent.
type JointConfig struct {
	ID     string                 `json:"id"`
	Type   string                 `json:"type"`
	Parent string                 `json:"parent"`
	Axis   spatialmath.AxisConfig `json:"axis"`
	Max    float64                `json:"max"` // in degs
	Min    float64                `json:"min"` // in degs
}

// UnmarshalModelJSON will parse the given JSON data into a kinematics model. modelName sets the name of the model,
// will use the name from the JSON if string is empty.
func UnmarshalModelJSON(jsonData []byte, modelName string) (*SerialModel, error) {
	// empty data probably means that the component has no model information
	if len(jsonData) == 0 {
		return nil, ErrNoModelInformation
	}

	m := &ModelConfigJSON{}
	if err := json.Unmarshal(jsonData, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}

	return m.ParseConfig(modelName)
}

// ParseModelJSONFile will read a given file and then parse the contained JSON data.
func ParseModelJSONFile(filename, modelName string) (*SerialModel, error) {
	//nolint:gosec
	jsonData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read json file")
	}
	return UnmarshalModelJSON(jsonData, modelName)
}

// ParseConfig converts the ModelConfigJSON struct into a SerialModel with the name modelName.
func (cfg *ModelConfigJSON) ParseConfig(modelName string) (*SerialModel, error) {
	if modelName == "" {
		modelName = cfg.Name
	}
	if cfg.KinParamType != "" && !strings.EqualFold(cfg.KinParamType, "SVA") {
		return nil, errors.Errorf("unsupported param type: %s, supported params are SVA", cfg.KinParamType)
	}

	transforms := map[string]frame{}
	// Make a map of parents for each element for post-process, to allow items to be processed out of order
	parentMap := map[string]string{}

	for _, link := range cfg.Links {
		if link.ID == World {
			return nil, NewReservedWordError("link", World)
		}
		orientation, err := link.Orientation.ParseConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "link %q", link.ID)
		}
		pt := link.Translation.ParseConfig()
		parentMap[link.ID] = link.Parent
		transforms[link.ID] = frame{
			name: link.ID,
			pose: spatialmath.NewPose(pt.Mul(utils.MMToMeters(1)), orientation),
		}
	}

	for _, joint := range cfg.Joints {
		if joint.ID == World {
			return nil, NewReservedWordError("joint", World)
		}
		spec := &JointSpec{Name: joint.ID, Axis: joint.Axis.ParseConfig()}
		switch joint.Type {
		case RevoluteJoint, "":
			spec.Limit = Limit{Min: utils.DegToRad(joint.Min), Max: utils.DegToRad(joint.Max)}
		case ContinuousJoint:
			spec.Limit = Limit{Min: math.Inf(-1), Max: math.Inf(1)}
		default:
			return nil, NewUnsupportedJointTypeError(joint.Type)
		}
		if spec.Limit.Min > spec.Limit.Max {
			return nil, NewLimitError(joint.ID, spec.Limit)
		}
		parentMap[joint.ID] = joint.Parent
		transforms[joint.ID] = frame{name: joint.ID, joint: spec}
	}

	ordered, err := sortTransforms(transforms, parentMap)
	if err != nil {
		return nil, err
	}
	return newSerialModel(modelName, ordered), nil
}

// Create an ordered list of transforms given a mapping of child to parent frames.
func sortTransforms(transforms map[string]frame, parents map[string]string) ([]frame, error) {
	if len(transforms) == 0 {
		return nil, ErrNoModelInformation
	}
	// find the end effector first - determine which transforms have no children
	ees := map[string]bool{}
	for child := range parents {
		ees[child] = true
	}
	for _, parent := range parents {
		delete(ees, parent)
	}
	if len(ees) != 1 {
		leaves := make([]string, 0, len(ees))
		for name := range ees {
			leaves = append(leaves, name)
		}
		return nil, errors.Wrapf(ErrNeedOneEndEffector, "have %v", leaves)
	}

	var curr string
	for name := range ees {
		curr = name
	}
	seen := map[string]bool{curr: true}
	ordered := make([]frame, 0, len(transforms))
	for curr != World && curr != "" {
		f, ok := transforms[curr]
		if !ok {
			return nil, NewFrameNotInListOfTransformsError(curr)
		}
		ordered = append(ordered, f)

		parent, ok := parents[curr]
		if !ok {
			return nil, NewParentFrameNotInMapOfParentsError(curr)
		}
		if seen[parent] {
			return nil, ErrCircularReference
		}
		seen[parent] = true
		curr = parent
	}
	if len(ordered) != len(transforms) {
		return nil, errors.Errorf("model is not a single serial chain: %d of %d frames reachable from the end effector",
			len(ordered), len(transforms))
	}

	// The transforms are in tip to base order, so we reverse the list.
	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered, nil
}

// Chain builds a joint chain over the model's joints bound to the model as its accessor.
func (m *SerialModel) Chain() (*Chain, error) {
	return NewChain(m.JointSpecs(), m)
}
