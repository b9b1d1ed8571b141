package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/armsim/config"
	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/referenceframe"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	color.New(color.Bold, color.FgYellow).Fprint(w, "Warning: ")
	printf(w, format, a...)
}

// env is what every command needs: a logger and the config it runs with.
type env struct {
	logger   logging.Logger
	registry *logging.Registry
	debug    bool
	cfg      *config.Config
	closer   func()
}

func (e *env) close() {
	if e.closer != nil {
		e.closer()
	}
}

// setup reads the config named by the global flag, or uses the defaults, and builds a logger
// writing to the app's error writer and the configured log file. Subloggers of the returned
// logger are registered so their levels follow config changes.
func setup(c *cli.Context) (*env, error) {
	registry := logging.NewRegistry(logging.INFO)
	logger := registry.Register(logging.NewBlankLogger("armsim"))
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	cfg := &config.Config{}
	if path := c.String(generalFlagConfig); path != "" {
		var err error
		cfg, err = config.Read(c.Context, path, logger)
		if err != nil {
			return nil, err
		}
	} else if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &env{logger: logger, registry: registry, debug: c.Bool(generalFlagDebug), cfg: cfg}
	if err := e.applyLogConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.LogFile != "" {
		fileAppender := logging.NewFileAppender(cfg.LogFile)
		logger.AddAppender(fileAppender)
		e.closer = func() {
			if err := fileAppender.Close(); err != nil {
				warningf(c.App.ErrWriter, "failed to close log file: %v", err)
			}
		}
	}
	return e, nil
}

// applyLogConfig levels every registered logger from cfg. --debug overrides the config.
func (e *env) applyLogConfig(cfg *config.Config) error {
	if e.debug {
		return e.registry.Update(logging.DEBUG, nil, e.logger)
	}
	return e.registry.Update(cfg.Level(), cfg.Log, e.logger)
}

// parseFloats parses a comma separated list of numbers.
func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid number %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseVector parses "x,y,z".
func parseVector(s string) (r3.Vector, error) {
	v, err := parseFloats(s)
	if err != nil {
		return r3.Vector{}, err
	}
	if len(v) != 3 {
		return r3.Vector{}, errors.Errorf("expected x,y,z but got %d values", len(v))
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}, nil
}

// statusString renders a joint status, colored when it needs attention.
func statusString(s referenceframe.JointStatus) string {
	switch s {
	case referenceframe.StatusNearLimit:
		return color.YellowString(s.String())
	case referenceframe.StatusOutOfRange:
		return color.RedString(s.String())
	default:
		return s.String()
	}
}

func formatVector(v r3.Vector) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
