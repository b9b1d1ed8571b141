package urdf

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"go.viam.com/armsim/spatialmath"
	"go.viam.com/armsim/utils"
)

type frame struct {
	Link string `xml:"link,attr"`
}

type limit struct {
	XMLName xml.Name `xml:"limit"`
	Lower   float64  `xml:"lower,attr"` // revolute limits are in radians
	Upper   float64  `xml:"upper,attr"` // revolute limits are in radians
}

type axis struct {
	XMLName xml.Name `xml:"axis"`
	XYZ     string   `xml:"xyz,attr"` // "x y z" format
}

func (a *axis) Parse() spatialmath.AxisConfig {
	if a == nil {
		// URDF default axis
		return spatialmath.AxisConfig{X: 1}
	}
	xyz := spaceDelimitedStringToFloatSlice(a.XYZ, 3)
	return spatialmath.AxisConfig{X: xyz[0], Y: xyz[1], Z: xyz[2]}
}

type pose struct {
	XMLName xml.Name `xml:"origin"`
	RPY     string   `xml:"rpy,attr"` // Fixed frame angle "r p y" format, in radians
	XYZ     string   `xml:"xyz,attr"` // "x y z" format, in meters
}

// Parse returns the origin as a millimeter translation and an euler angle orientation.
func (p *pose) Parse() (spatialmath.TranslationConfig, *spatialmath.OrientationConfig, error) {
	if p == nil {
		return spatialmath.TranslationConfig{}, nil, nil
	}
	xyz := spaceDelimitedStringToFloatSlice(p.XYZ, 3)
	rpy := spaceDelimitedStringToFloatSlice(p.RPY, 3)
	orientation, err := spatialmath.NewOrientationConfig(&spatialmath.EulerAngles{
		Roll:  rpy[0],
		Pitch: rpy[1],
		Yaw:   rpy[2],
	})
	if err != nil {
		return spatialmath.TranslationConfig{}, nil, err
	}
	translation := spatialmath.TranslationConfig{
		X: utils.MetersToMM(xyz[0]),
		Y: utils.MetersToMM(xyz[1]),
		Z: utils.MetersToMM(xyz[2]),
	}
	return translation, orientation, nil
}

// spaceDelimitedStringToFloatSlice splits space-delimited fields in URDFs, such as xyz or rpy
// attributes, padding with zeros to n values. Unparseable fields become NaN.
func spaceDelimitedStringToFloatSlice(s string, n int) []float64 {
	converted := make([]float64, 0, n)
	for _, field := range strings.Fields(s) {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			value = math.NaN()
		}
		converted = append(converted, value)
	}
	for len(converted) < n {
		converted = append(converted, 0)
	}
	return converted
}
