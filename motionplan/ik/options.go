package ik

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// default values for inverse kinematics.
const (
	defaultMaxIterations = 20
	// meters
	defaultTolerance = 0.002
	// radians per joint per iteration
	defaultMaxStepAngle = 0.25
	defaultDamping      = 0.7

	// Interactive drags trade a few more iterations for smaller, smoother steps.
	defaultDragMaxIterations = 25
	defaultDragMaxStepAngle  = 0.2
	defaultDragDamping       = 0.65
)

// Options bound a single CCD solve.
type Options struct {
	// Outer iterations before giving up.
	MaxIterations int `json:"max_iterations"`

	// End effector distance to the target, in meters, below which the solve has converged.
	Tolerance float64 `json:"tolerance"`

	// Largest rotation applied to one joint in one iteration, in radians.
	MaxStepAngle float64 `json:"max_step_angle"`

	// Scale in [0, 1] applied to each correction before it is clamped to MaxStepAngle.
	Damping float64 `json:"damping"`
}

// NewDefaultOptions returns the options used for one-shot solves.
func NewDefaultOptions() *Options {
	return &Options{
		MaxIterations: defaultMaxIterations,
		Tolerance:     defaultTolerance,
		MaxStepAngle:  defaultMaxStepAngle,
		Damping:       defaultDamping,
	}
}

// NewDragOptions returns the options used while dragging the end effector interactively.
func NewDragOptions() *Options {
	return &Options{
		MaxIterations: defaultDragMaxIterations,
		Tolerance:     defaultTolerance,
		MaxStepAngle:  defaultDragMaxStepAngle,
		Damping:       defaultDragDamping,
	}
}

// Validate returns every out-of-domain field.
func (opts *Options) Validate() error {
	if opts == nil {
		return errors.New("nil ik options")
	}
	var errs error
	if opts.MaxIterations < 1 {
		errs = multierr.Append(errs, errors.Errorf("max_iterations must be at least 1, got %d", opts.MaxIterations))
	}
	if !(opts.Tolerance > 0) {
		errs = multierr.Append(errs, errors.Errorf("tolerance must be positive, got %v", opts.Tolerance))
	}
	if !(opts.MaxStepAngle > 0) {
		errs = multierr.Append(errs, errors.Errorf("max_step_angle must be positive, got %v", opts.MaxStepAngle))
	}
	if !(opts.Damping >= 0 && opts.Damping <= 1) {
		errs = multierr.Append(errs, errors.Errorf("damping must be in [0, 1], got %v", opts.Damping))
	}
	return errs
}

// OptionsFromAttributes overlays a free-form attribute map, as found in a config file, onto base.
// Unknown keys are rejected.
func OptionsFromAttributes(base *Options, attrs map[string]interface{}) (*Options, error) {
	opts := *base
	if len(attrs) == 0 {
		return &opts, opts.Validate()
	}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &opts,
		Metadata:         &md,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "invalid ik options")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}
