// Package ik contains a cyclic coordinate descent inverse kinematics solver for serial chains.
package ik

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/spatialmath"
	"go.viam.com/armsim/utils"
)

// degenerateEpsilon is the projected length, in meters, below which a joint cannot turn the end
// effector toward the target and is skipped for the iteration.
const degenerateEpsilon = 1e-6

// Result describes the outcome of one solve.
type Result struct {
	Converged bool
	// Iterations counts outer iterations started.
	Iterations int
	// Distance from the end effector to the target, in meters, when the solve stopped.
	Distance float64
	// Angles is the chain's angle vector when the solve stopped.
	Angles []float64
	// Skipped counts joint updates skipped because the joint was degenerate or unavailable.
	Skipped int
	// JointTravel is the L2 distance in joint space, in radians, from the starting angles to Angles.
	JointTravel float64
}

// CCDSolver adjusts one joint at a time, tip to base, to swing the end effector toward a target.
// A solve is bounded by MaxIterations times the chain length joint updates.
type CCDSolver struct {
	logger logging.Logger
}

// NewCCDSolver returns a solver.
func NewCCDSolver(logger logging.Logger) *CCDSolver {
	return &CCDSolver{logger: logger}
}

// Solve moves chain so that ee approaches target. Angles are written through the chain, so they
// reach the chain's accessor as they change. Running out of iterations is not an error; the chain
// keeps the best-effort angles and Converged is false. If the end effector cannot be resolved the
// solve stops with referenceframe.ErrNodeUnavailable and whatever angles it had reached.
func (s *CCDSolver) Solve(
	chain *referenceframe.Chain,
	ee referenceframe.EndEffector,
	target r3.Vector,
	opts *Options,
) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if chain == nil || ee == nil {
		return nil, errors.New("ik solve needs a chain and an end effector")
	}
	accessor := chain.Accessor()
	if accessor == nil {
		return nil, errors.New("chain has no node accessor")
	}

	res := &Result{}
	start := chain.Angles()
	defer func() {
		res.Angles = chain.Angles()
		res.JointTravel = referenceframe.AnglesL2Distance(start, res.Angles)
	}()

	eePos, err := ee.EndEffectorPosition()
	if err != nil {
		return res, err
	}
	res.Distance = eePos.Distance(target)

	for iter := 0; iter < opts.MaxIterations; iter++ {
		res.Iterations = iter + 1
		for j := chain.Len() - 1; j >= 0; j-- {
			eePos, err = ee.EndEffectorPosition()
			if err != nil {
				return res, err
			}
			res.Distance = eePos.Distance(target)
			if res.Distance < opts.Tolerance {
				res.Converged = true
				s.logResult(res)
				return res, nil
			}
			if !s.step(chain, accessor, j, eePos, target, opts) {
				res.Skipped++
			}
		}

		eePos, err = ee.EndEffectorPosition()
		if err != nil {
			return res, err
		}
		res.Distance = eePos.Distance(target)
		if res.Distance < opts.Tolerance {
			res.Converged = true
			break
		}
	}
	s.logResult(res)
	return res, nil
}

// step rotates joint j so the end effector swings toward target. It returns false, leaving the
// joint untouched, when the joint's pose is unavailable or either vector is nearly parallel to
// the joint's axis.
func (s *CCDSolver) step(
	chain *referenceframe.Chain,
	accessor referenceframe.NodeAccessor,
	j int,
	eePos, target r3.Vector,
	opts *Options,
) bool {
	jointPos, err := accessor.WorldPosition(j)
	if err != nil {
		return false
	}
	jointRot, err := accessor.WorldOrientation(j)
	if err != nil {
		return false
	}

	toLocal := spatialmath.Inverse(jointRot)
	toEE := spatialmath.RotateVector(toLocal, eePos.Sub(jointPos))
	toTarget := spatialmath.RotateVector(toLocal, target.Sub(jointPos))

	axis := chain.AxisLocal(j)
	toEE = spatialmath.ProjectOntoPlane(toEE, axis)
	toTarget = spatialmath.ProjectOntoPlane(toTarget, axis)
	if toEE.Norm() < degenerateEpsilon || toTarget.Norm() < degenerateEpsilon {
		return false
	}

	angle := spatialmath.SignedAngleAbout(toEE.Normalize(), toTarget.Normalize(), axis)
	// damp, then clamp
	angle *= opts.Damping
	angle = utils.Clamp(angle, -opts.MaxStepAngle, opts.MaxStepAngle)

	current, _ := chain.Angle(j)
	return chain.SetAngle(j, current+angle)
}

func (s *CCDSolver) logResult(res *Result) {
	if s.logger == nil {
		return
	}
	s.logger.Debugw("ik solve finished",
		"converged", res.Converged,
		"iterations", res.Iterations,
		"distance", res.Distance,
		"skipped", res.Skipped,
	)
}
