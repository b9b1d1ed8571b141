// Package config defines the structures to configure the arm simulator: which model it drives,
// how the solver and motion source behave, and the camera pointer input is projected through.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/armsim/control"
	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/motionplan/ik"
	"go.viam.com/armsim/motionsource"
	"go.viam.com/armsim/projection"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/referenceframe/urdf"
	"go.viam.com/armsim/robots/ur10"
	"go.viam.com/armsim/ros"
	rutils "go.viam.com/armsim/utils"
)

// Model file formats.
const (
	FormatJSON = "json"
	FormatURDF = urdf.Extension
)

// DefaultFrameRateHz is how often the frame loop runs when unset.
const DefaultFrameRateHz = 60.0

// maxFrameRateHz bounds the frame loop rate.
const maxFrameRateHz = 200.0

// Config describes a simulator.
type Config struct {
	ConfigFilePath string `json:"-"`

	Model       ModelConfig            `json:"model"`
	Solver      map[string]interface{} `json:"solver,omitempty"`
	DragSolver  map[string]interface{} `json:"drag_solver,omitempty"`
	Motion      MotionConfig           `json:"motion"`
	Camera      *CameraConfig          `json:"camera,omitempty"`
	Interaction InteractionConfig      `json:"interaction"`
	FrameRateHz float64                `json:"frame_rate_hz,omitempty"`
	LogLevel    string                 `json:"log_level,omitempty"`
	LogFile     string                 `json:"log_file,omitempty"`
	// Log sets the level of loggers by name pattern, overriding LogLevel.
	Log []logging.LoggerPatternConfig `json:"log,omitempty"`
}

// ModelConfig selects the kinematic model. With no path the built-in UR10 is used.
type ModelConfig struct {
	Path string `json:"path,omitempty"`
	// Format is json or urdf. It is inferred from the path's extension when empty.
	Format      string `json:"format,omitempty"`
	Name        string `json:"name,omitempty"`
	EndEffector string `json:"end_effector,omitempty"`
}

// MotionConfig describes the simulated motion feed.
type MotionConfig struct {
	Increment float64     `json:"increment,omitempty"`
	Waypoints [][]float64 `json:"waypoints,omitempty"`
	// Bag is a rosbag whose /joint_states positions are used as waypoints.
	Bag     string `json:"bag,omitempty"`
	FrameID string `json:"frame_id,omitempty"`
	// Paused leaves the source stopped at startup.
	Paused bool `json:"paused,omitempty"`
}

// CameraConfig overrides parts of the default camera. Points are in meters.
type CameraConfig struct {
	Eye        *r3.Vector `json:"eye,omitempty"`
	Center     *r3.Vector `json:"center,omitempty"`
	Up         *r3.Vector `json:"up,omitempty"`
	FovDegrees float64    `json:"fov_degrees,omitempty"`
	Near       float64    `json:"near,omitempty"`
	Far        float64    `json:"far,omitempty"`
	Width      int        `json:"width,omitempty"`
	Height     int        `json:"height,omitempty"`
}

// InteractionConfig tunes pointer interaction. Zero values keep the defaults.
type InteractionConfig struct {
	JointDragSensitivity    float64 `json:"joint_drag_sensitivity,omitempty"`
	JointMarkerRadius       float64 `json:"joint_marker_radius,omitempty"`
	EndEffectorMarkerRadius float64 `json:"end_effector_marker_radius,omitempty"`
}

// Validate returns every problem with the config.
func (c *Config) Validate() error {
	var errs error
	errs = multierr.Append(errs, c.Model.Validate("model"))
	if _, err := c.SolverOptions(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError("solver", err))
	}
	if _, err := c.DragSolverOptions(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError("drag_solver", err))
	}
	errs = multierr.Append(errs, c.Motion.Validate("motion"))
	errs = multierr.Append(errs, c.Interaction.Validate("interaction"))
	if err := c.CameraConfig().Validate(); err != nil {
		errs = multierr.Append(errs, utils.NewConfigValidationError("camera", err))
	}
	if c.FrameRateHz < 0 || c.FrameRateHz > maxFrameRateHz {
		errs = multierr.Append(errs, utils.NewConfigValidationError("frame_rate_hz",
			errors.Errorf("must be in (0, %v], got %v", maxFrameRateHz, c.FrameRateHz)))
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError("log_level", err))
		}
	}
	for i, lpc := range c.Log {
		if err := lpc.Validate(); err != nil {
			errs = multierr.Append(errs, utils.NewConfigValidationError(fmt.Sprintf("log.%d", i), err))
		}
	}
	return errs
}

// Validate ensures the model config is well formed.
func (mc *ModelConfig) Validate(path string) error {
	if mc.Path == "" {
		if mc.Format != "" {
			return utils.NewConfigValidationFieldRequiredError(path, "path")
		}
		return nil
	}
	switch mc.ResolvedFormat() {
	case FormatJSON, FormatURDF:
		return nil
	default:
		return utils.NewConfigValidationError(path,
			errors.Errorf("unsupported model format %q, expected %q or %q", mc.ResolvedFormat(), FormatJSON, FormatURDF))
	}
}

// ResolvedFormat returns the configured format or the one implied by the path's extension.
func (mc *ModelConfig) ResolvedFormat() string {
	if mc.Format != "" {
		return strings.ToLower(mc.Format)
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(mc.Path), "."))
}

// EndEffectorNames returns the frame names searched for the end effector.
func (mc *ModelConfig) EndEffectorNames() []string {
	if mc.EndEffector != "" {
		return []string{mc.EndEffector}
	}
	return referenceframe.DefaultEndEffectorNames
}

// Load builds the configured model.
func (mc *ModelConfig) Load() (*referenceframe.SerialModel, error) {
	if mc.Path == "" {
		return ur10.MakeModel(mc.Name)
	}
	switch mc.ResolvedFormat() {
	case FormatJSON:
		return referenceframe.ParseModelJSONFile(mc.Path, mc.Name)
	case FormatURDF:
		return urdf.ParseModelXMLFile(mc.Path, mc.Name)
	default:
		return nil, errors.Errorf("unsupported model format %q", mc.ResolvedFormat())
	}
}

// Validate ensures the motion config is well formed. Waypoint lengths are checked against the
// chain when the source is built.
func (mc *MotionConfig) Validate(path string) error {
	var errs error
	if mc.Increment < 0 || mc.Increment > 1 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			rutils.NewOutOfRangeError("increment", mc.Increment, 0, 1)))
	}
	if mc.Bag != "" && len(mc.Waypoints) > 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.New("only one of waypoints and bag may be set")))
	}
	return errs
}

// Validate rejects negative settings. Zero means the default.
func (ic *InteractionConfig) Validate(path string) error {
	var errs error
	for name, v := range map[string]float64{
		"joint_drag_sensitivity":     ic.JointDragSensitivity,
		"joint_marker_radius":        ic.JointMarkerRadius,
		"end_effector_marker_radius": ic.EndEffectorMarkerRadius,
	} {
		if v < 0 {
			errs = multierr.Append(errs, utils.NewConfigValidationError(path, rutils.NewNonPositiveError(name, v)))
		}
	}
	return errs
}

// SourceConfig builds the motion source config for a chain with the given joint names.
func (mc *MotionConfig) SourceConfig(jointNames []string) (motionsource.Config, error) {
	cfg := motionsource.Config{
		Increment:  mc.Increment,
		JointNames: jointNames,
		FrameID:    mc.FrameID,
	}
	if cfg.Increment == 0 {
		cfg.Increment = motionsource.DefaultIncrement
	}
	switch {
	case mc.Bag != "":
		states, err := ros.JointStatesFromBag(mc.Bag)
		if err != nil {
			return cfg, err
		}
		waypoints, err := ros.Waypoints(states, jointNames)
		if err != nil {
			return cfg, errors.Wrapf(err, "bag %s", mc.Bag)
		}
		cfg.Waypoints = waypoints
	case len(mc.Waypoints) > 0:
		cfg.Waypoints = mc.Waypoints
	case len(jointNames) == len(motionsource.DefaultWaypoints()[0]):
		cfg.Waypoints = motionsource.DefaultWaypoints()
	default:
		// hold the zero pose
		cfg.Waypoints = [][]float64{make([]float64, len(jointNames))}
	}
	for i, wp := range cfg.Waypoints {
		if len(wp) != len(jointNames) {
			return cfg, errors.Wrapf(referenceframe.NewIncorrectDoFError(len(wp), len(jointNames)), "waypoint %d", i)
		}
	}
	return cfg, nil
}

// SolverOptions returns the options for one-shot solves.
func (c *Config) SolverOptions() (*ik.Options, error) {
	return ik.OptionsFromAttributes(ik.NewDefaultOptions(), c.Solver)
}

// DragSolverOptions returns the options for interactive drags.
func (c *Config) DragSolverOptions() (*ik.Options, error) {
	return ik.OptionsFromAttributes(ik.NewDragOptions(), c.DragSolver)
}

// CameraConfig returns the default camera with the configured overrides applied.
func (c *Config) CameraConfig() *projection.Camera {
	cam := projection.NewDefaultCamera()
	cc := c.Camera
	if cc == nil {
		return cam
	}
	if cc.Eye != nil {
		cam.Eye = *cc.Eye
	}
	if cc.Center != nil {
		cam.Center = *cc.Center
	}
	if cc.Up != nil {
		cam.Up = *cc.Up
	}
	if cc.FovDegrees != 0 {
		cam.FovDegrees = cc.FovDegrees
	}
	if cc.Near != 0 {
		cam.Near = cc.Near
	}
	if cc.Far != 0 {
		cam.Far = cc.Far
	}
	if cc.Width != 0 {
		cam.Width = cc.Width
	}
	if cc.Height != 0 {
		cam.Height = cc.Height
	}
	return cam
}

// ArbiterOptions builds the control options.
func (c *Config) ArbiterOptions() (control.Options, error) {
	opts := control.NewDefaultOptions()
	solve, err := c.SolverOptions()
	if err != nil {
		return opts, err
	}
	drag, err := c.DragSolverOptions()
	if err != nil {
		return opts, err
	}
	opts.SolveOptions = solve
	opts.DragOptions = drag
	opts.Camera = c.CameraConfig()
	if v := c.Interaction.JointDragSensitivity; v != 0 {
		opts.JointDragSensitivity = v
	}
	if v := c.Interaction.JointMarkerRadius; v != 0 {
		opts.JointMarkerRadius = v
	}
	if v := c.Interaction.EndEffectorMarkerRadius; v != 0 {
		opts.EndEffectorMarkerRadius = v
	}
	return opts, opts.Validate()
}

// FrameRate returns the frame loop rate in Hz.
func (c *Config) FrameRate() float64 {
	if c.FrameRateHz == 0 {
		return DefaultFrameRateHz
	}
	return c.FrameRateHz
}

// Level returns the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	if c.LogLevel == "" {
		return logging.INFO
	}
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// String names the config by its file.
func (c *Config) String() string {
	return fmt.Sprintf("config(%s)", c.ConfigFilePath)
}
