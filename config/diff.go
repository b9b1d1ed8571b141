package config

import (
	"encoding/json"
	"reflect"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// A Diff is the difference between two configs, left and right
// where left is usually old and right is new. So the diff is the
// changes from left to right.
type Diff struct {
	Left, Right *Config
	// ModelEqual is false when the kinematic model must be reloaded.
	ModelEqual bool
	// MotionEqual is false when the motion source must be rebuilt.
	MotionEqual bool
	// ControlEqual covers the solver, camera and interaction settings.
	ControlEqual   bool
	FrameRateEqual bool
	LoggingEqual   bool
	PrettyDiff     string
}

// DiffConfigs returns the difference between the two given configs
// from left to right.
func DiffConfigs(left, right Config) (*Diff, error) {
	pretty, err := prettyDiff(left, right)
	if err != nil {
		return nil, err
	}
	diff := Diff{
		Left:           &left,
		Right:          &right,
		ModelEqual:     left.Model == right.Model,
		MotionEqual:    reflect.DeepEqual(left.Motion, right.Motion),
		FrameRateEqual: left.FrameRate() == right.FrameRate(),
		LoggingEqual: left.Level() == right.Level() && left.LogFile == right.LogFile &&
			reflect.DeepEqual(left.Log, right.Log),
		PrettyDiff:     pretty,
	}
	diff.ControlEqual = reflect.DeepEqual(left.Solver, right.Solver) &&
		reflect.DeepEqual(left.DragSolver, right.DragSolver) &&
		reflect.DeepEqual(left.CameraConfig(), right.CameraConfig()) &&
		left.Interaction == right.Interaction
	return &diff, nil
}

// Equal reports whether nothing changed.
func (diff *Diff) Equal() bool {
	return diff.ModelEqual && diff.MotionEqual && diff.ControlEqual && diff.FrameRateEqual && diff.LoggingEqual
}

// String returns a pretty version of the diff.
func (diff *Diff) String() string {
	return diff.PrettyDiff
}

func prettyDiff(left, right Config) (string, error) {
	leftMd, err := json.MarshalIndent(left, "", " ")
	if err != nil {
		return "", err
	}
	rightMd, err := json.MarshalIndent(right, "", " ")
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(leftMd), string(rightMd), true)
	filteredDiffs := make([]diffmatchpatch.Diff, 0, len(diffs))
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			continue
		}
		filteredDiffs = append(filteredDiffs, d)
	}
	return dmp.DiffPrettyText(filteredDiffs), nil
}
