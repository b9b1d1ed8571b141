// Package ur10 contains the kinematic model of a Universal Robots UR10 arm.
package ur10

import (
	// for embedding model file.
	_ "embed"

	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/referenceframe/urdf"
)

// ModelName is the name of the built-in model.
const ModelName = "ur10"

//go:embed ur10.urdf
var ur10modelurdf []byte

// MakeModel returns the kinematics model of the UR10 with every joint at zero.
func MakeModel(name string) (*referenceframe.SerialModel, error) {
	if name == "" {
		name = ModelName
	}
	return urdf.ParseModelXML(ur10modelurdf, name)
}

// URDF returns the embedded description.
func URDF() []byte {
	out := make([]byte, len(ur10modelurdf))
	copy(out, ur10modelurdf)
	return out
}
