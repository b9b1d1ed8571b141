// Package robot assembles a simulated arm from a config: its kinematic model, the motion source
// that animates it and the arbiter deciding who may move it. A Loop drives a Robot frame by frame.
package robot

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/armsim/config"
	"go.viam.com/armsim/control"
	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/motionsource"
	"go.viam.com/armsim/referenceframe"
)

// A Robot is the set of parts built from one config. It is not safe for concurrent use.
type Robot struct {
	logger logging.Logger
	clock  clock.Clock
	cfg    *config.Config

	model   *referenceframe.SerialModel
	chain   *referenceframe.Chain
	ee      referenceframe.EndEffector
	source  *motionsource.Source
	arbiter *control.Arbiter
}

// New loads the configured model and builds a robot around it.
func New(cfg *config.Config, clk clock.Clock, logger logging.Logger) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	model, err := cfg.Model.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load model")
	}
	return FromModel(cfg, model, clk, logger)
}

// FromModel builds a robot around an already loaded model.
func FromModel(
	cfg *config.Config,
	model *referenceframe.SerialModel,
	clk clock.Clock,
	logger logging.Logger,
) (*Robot, error) {
	if clk == nil {
		clk = clock.New()
	}
	r := &Robot{logger: logger, clock: clk, cfg: cfg, model: model}

	chain, ee, err := bindModel(cfg, model)
	if err != nil {
		return nil, err
	}
	source, err := r.newSource(cfg, chain.Names())
	if err != nil {
		return nil, err
	}
	opts, err := cfg.ArbiterOptions()
	if err != nil {
		return nil, err
	}
	arbiter, err := control.NewArbiter(logger.Sublogger("control"), chain, ee, source, opts)
	if err != nil {
		return nil, err
	}
	r.chain, r.ee, r.source, r.arbiter = chain, ee, source, arbiter
	logger.Infow("robot ready", "model", model.Name(), "joints", chain.Len())
	return r, nil
}

func bindModel(
	cfg *config.Config,
	model *referenceframe.SerialModel,
) (*referenceframe.Chain, referenceframe.EndEffector, error) {
	chain, err := model.Chain()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "model %s", model.Name())
	}
	if chain.Len() == 0 {
		return nil, nil, errors.Errorf("model %s has no joints", model.Name())
	}
	return chain, model.EndEffector(cfg.Model.EndEffectorNames()...), nil
}

func (r *Robot) newSource(cfg *config.Config, jointNames []string) (*motionsource.Source, error) {
	srcCfg, err := cfg.Motion.SourceConfig(jointNames)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build motion source config")
	}
	source, err := motionsource.NewSource(r.logger.Sublogger("motion"), r.clock, srcCfg)
	if err != nil {
		return nil, err
	}
	if !cfg.Motion.Paused {
		source.Start()
	}
	return source, nil
}

// Config returns the config the robot was last built or reconfigured from.
func (r *Robot) Config() *config.Config {
	return r.cfg
}

// Model returns the kinematic model.
func (r *Robot) Model() *referenceframe.SerialModel {
	return r.model
}

// Chain returns the joint chain.
func (r *Robot) Chain() *referenceframe.Chain {
	return r.chain
}

// EndEffector returns the end effector the arbiter solves for.
func (r *Robot) EndEffector() referenceframe.EndEffector {
	return r.ee
}

// Source returns the motion source.
func (r *Robot) Source() *motionsource.Source {
	return r.source
}

// Arbiter returns the arbiter.
func (r *Robot) Arbiter() *control.Arbiter {
	return r.arbiter
}

// Reconfigure applies the parts of diff that do not need a new model: control settings and the
// motion source. Both are built before either is applied, so on error the robot is unchanged.
func (r *Robot) Reconfigure(cfg *config.Config, diff *config.Diff) error {
	var (
		errs   error
		opts   control.Options
		source *motionsource.Source
	)
	if !diff.ControlEqual {
		var err error
		if opts, err = cfg.ArbiterOptions(); err == nil {
			err = opts.Validate()
		}
		errs = multierr.Append(errs, errors.Wrap(err, "failed to apply control settings"))
	}
	if !diff.MotionEqual {
		var err error
		source, err = r.newSource(cfg, r.chain.Names())
		errs = multierr.Append(errs, errors.Wrap(err, "failed to rebuild motion source"))
	}
	if errs != nil {
		return errs
	}
	if !diff.ControlEqual {
		if err := r.arbiter.SetOptions(opts); err != nil {
			return errors.Wrap(err, "failed to apply control settings")
		}
	}
	if source != nil {
		r.replaceSource(source)
	}
	r.cfg = cfg
	return nil
}

// ReplaceModel rebinds the robot to a newly loaded model, rebuilding the motion source for its
// joints. On error the robot is unchanged.
func (r *Robot) ReplaceModel(cfg *config.Config, model *referenceframe.SerialModel) error {
	chain, ee, err := bindModel(cfg, model)
	if err != nil {
		return err
	}
	source, err := r.newSource(cfg, chain.Names())
	if err != nil {
		return err
	}
	if err := r.arbiter.Rebind(chain, ee); err != nil {
		return err
	}
	r.replaceSource(source)
	r.model, r.chain, r.ee = model, chain, ee
	r.logger.Infow("model replaced", "model", model.Name(), "joints", chain.Len())
	return nil
}

func (r *Robot) replaceSource(source *motionsource.Source) {
	r.arbiter.SetSource(source)
	r.source = source
}

// Close detaches the arbiter from the motion source.
func (r *Robot) Close() {
	r.arbiter.Close()
}
