// Package urdf provides functions which enable *.urdf files to be used as kinematic models.
package urdf

import (
	"encoding/xml"
	"math"
	"os"

	"github.com/pkg/errors"

	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/utils"
)

// Extension is the file extension associated with URDF files.
const Extension string = "urdf"

// ModelConfig represents all supported fields in a Universal Robot Description Format (URDF) file.
type ModelConfig struct {
	XMLName xml.Name `xml:"robot"`
	Name    string   `xml:"name,attr"`
	Links   []link   `xml:"link"`
	Joints  []joint  `xml:"joint"`
}

// link is a struct which details the XML used in a URDF link element. Visual and collision
// geometry is ignored.
type link struct {
	XMLName xml.Name `xml:"link"`
	Name    string   `xml:"name,attr"`
}

// joint is a struct which details the XML used in a URDF joint element.
type joint struct {
	XMLName xml.Name `xml:"joint"`
	Name    string   `xml:"name,attr"`
	Type    string   `xml:"type,attr"`
	Parent  frame    `xml:"parent"`
	Child   frame    `xml:"child"`
	Origin  *pose    `xml:"origin,omitempty"`
	Axis    *axis    `xml:"axis,omitempty"`
	Limit   *limit   `xml:"limit,omitempty"`
}

// UnmarshalModelXML will transfer the given URDF XML data into an equivalent ModelConfigJSON. Direct
// unmarshaling is not possible, as in a URDF a joint carries the offset of its child link while
// in the JSON format the parent link carries it.
func UnmarshalModelXML(xmlData []byte, modelName string) (*referenceframe.ModelConfigJSON, error) {
	urdf := &ModelConfig{}
	if err := xml.Unmarshal(xmlData, urdf); err != nil {
		return nil, errors.Wrap(err, "Failed to convert URDF data to equivalent URDFConfig struct")
	}

	// Use default name if none is provided
	if modelName == "" {
		modelName = urdf.Name
	}

	// Read all links first. Links no joint points at hang off the world frame.
	links := make(map[string]*referenceframe.LinkConfig, len(urdf.Links))
	linkOrder := make([]string, 0, len(urdf.Links))
	for _, linkElem := range urdf.Links {
		if linkElem.Name == referenceframe.World {
			continue
		}
		links[linkElem.Name] = &referenceframe.LinkConfig{ID: linkElem.Name, Parent: referenceframe.World}
		linkOrder = append(linkOrder, linkElem.Name)
	}

	joints := make([]referenceframe.JointConfig, 0, len(urdf.Joints))
	for _, jointElem := range urdf.Joints {
		translation, orientation, err := jointElem.Origin.Parse()
		if err != nil {
			return nil, err
		}
		parent := jointElem.Parent.Link

		switch jointElem.Type {
		case referenceframe.ContinuousJoint, referenceframe.RevoluteJoint:
			thisJoint := referenceframe.JointConfig{
				ID:     jointElem.Name,
				Type:   jointElem.Type,
				Parent: parent,
				Axis:   jointElem.Axis.Parse(),
			}
			switch {
			case jointElem.Type == referenceframe.ContinuousJoint:
				thisJoint.Min, thisJoint.Max = math.Inf(-1), math.Inf(1)
			case jointElem.Limit != nil:
				thisJoint.Min, thisJoint.Max = utils.RadToDeg(jointElem.Limit.Lower), utils.RadToDeg(jointElem.Limit.Upper)
			default:
				return nil, errors.Errorf("revolute joint %q has no limit", jointElem.Name)
			}
			joints = append(joints, thisJoint)

			// The joint origin is held by the parent link.
			if parent != referenceframe.World {
				parentLink, ok := links[parent]
				if !ok {
					return nil, referenceframe.NewFrameNotInListOfTransformsError(parent)
				}
				parentLink.Translation = translation
				parentLink.Orientation = orientation
			}

		case referenceframe.FixedJoint:
			// Handle fixed joints by converting them to links rather than a joint
			links[jointElem.Name] = &referenceframe.LinkConfig{
				ID:          jointElem.Name,
				Translation: translation,
				Orientation: orientation,
				Parent:      parent,
			}
			linkOrder = append(linkOrder, jointElem.Name)

		default:
			return nil, referenceframe.NewUnsupportedJointTypeError(jointElem.Type)
		}

		// Point the child link to this joint
		childLink, ok := links[jointElem.Child.Link]
		if !ok {
			return nil, referenceframe.NewFrameNotInListOfTransformsError(jointElem.Child.Link)
		}
		childLink.Parent = jointElem.Name
	}

	linkSlice := make([]referenceframe.LinkConfig, 0, len(links))
	for _, name := range linkOrder {
		linkSlice = append(linkSlice, *links[name])
	}
	return &referenceframe.ModelConfigJSON{
		Name:         modelName,
		KinParamType: "SVA",
		Links:        linkSlice,
		Joints:       joints,
	}, nil
}

// ParseModelXML parses URDF XML data into a model.
func ParseModelXML(xmlData []byte, modelName string) (*referenceframe.SerialModel, error) {
	mc, err := UnmarshalModelXML(xmlData, modelName)
	if err != nil {
		return nil, err
	}
	return mc.ParseConfig(modelName)
}

// ParseModelXMLFile will read a given file and parse the contained URDF XML data into an equivalent Model.
func ParseModelXMLFile(filename, modelName string) (*referenceframe.SerialModel, error) {
	//nolint:gosec
	xmlData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read URDF file")
	}
	return ParseModelXML(xmlData, modelName)
}
