package spatialmath

import (
	"encoding/json"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
)

// Orientation config types understood by OrientationConfig.ParseConfig.
const (
	NoOrientationType  = ""
	EulerAnglesType    = "euler_angles"
	AxisAnglesType     = "axis_angles"
	QuaternionType     = "quaternion"
	defaultOrientation = "no_orientation"
)

// TranslationConfig stores the parameters of a translation in millimeters.
type TranslationConfig struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewTranslationConfig constructs a config from a point.
func NewTranslationConfig(pt r3.Vector) *TranslationConfig {
	return &TranslationConfig{X: pt.X, Y: pt.Y, Z: pt.Z}
}

// ParseConfig converts a TranslationConfig into a point.
func (cfg *TranslationConfig) ParseConfig() r3.Vector {
	return r3.Vector{X: cfg.X, Y: cfg.Y, Z: cfg.Z}
}

// AxisConfig represents the configuration format for a rotation axis.
type AxisConfig TranslationConfig

// ParseConfig converts an AxisConfig into a unit vector. An empty axis falls back to +z.
func (cfg AxisConfig) ParseConfig() r3.Vector {
	v := r3.Vector{X: cfg.X, Y: cfg.Y, Z: cfg.Z}
	if v.Norm() < epsilon {
		return r3.Vector{Z: 1}
	}
	return v.Normalize()
}

// EulerAngles are fixed-axis roll, pitch and yaw in radians.
type EulerAngles struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// OrientationConfig holds the underlying type of orientation, and the value.
type OrientationConfig struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewOrientationConfig builds an euler angle orientation config.
func NewOrientationConfig(ea *EulerAngles) (*OrientationConfig, error) {
	bytes, err := json.Marshal(ea)
	if err != nil {
		return nil, err
	}
	return &OrientationConfig{Type: EulerAnglesType, Value: bytes}, nil
}

// ParseConfig will use the Type in OrientationConfig and convert into the correct quaternion.
// A nil config is the identity.
func (config *OrientationConfig) ParseConfig() (quat.Number, error) {
	if config == nil {
		return IdentityQuat(), nil
	}
	switch config.Type {
	case NoOrientationType, defaultOrientation:
		return IdentityQuat(), nil
	case EulerAnglesType:
		var ea EulerAngles
		if err := json.Unmarshal(config.Value, &ea); err != nil {
			return quat.Number{}, errors.Wrap(err, "invalid euler_angles orientation")
		}
		return QuatFromRPY(ea.Roll, ea.Pitch, ea.Yaw), nil
	case AxisAnglesType:
		var aa R4AA
		if err := json.Unmarshal(config.Value, &aa); err != nil {
			return quat.Number{}, errors.Wrap(err, "invalid axis_angles orientation")
		}
		return aa.ToQuat(), nil
	case QuaternionType:
		var q struct {
			W float64 `json:"w"`
			X float64 `json:"x"`
			Y float64 `json:"y"`
			Z float64 `json:"z"`
		}
		if err := json.Unmarshal(config.Value, &q); err != nil {
			return quat.Number{}, errors.Wrap(err, "invalid quaternion orientation")
		}
		return Normalize(quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}), nil
	default:
		return quat.Number{}, errors.Errorf("orientation type %q not recognized", config.Type)
	}
}
