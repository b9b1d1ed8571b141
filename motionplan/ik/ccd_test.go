package ik

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/robots/ur10"
)

func loadUR10(t *testing.T) (*referenceframe.SerialModel, *referenceframe.Chain, referenceframe.EndEffector) {
	t.Helper()
	m, err := ur10.MakeModel("")
	test.That(t, err, test.ShouldBeNil)
	chain, err := m.Chain()
	test.That(t, err, test.ShouldBeNil)
	return m, chain, m.EndEffector(referenceframe.DefaultEndEffectorNames...)
}

func loadJSON(t *testing.T, data string) (*referenceframe.SerialModel, *referenceframe.Chain) {
	t.Helper()
	m, err := referenceframe.UnmarshalModelJSON([]byte(data), "")
	test.That(t, err, test.ShouldBeNil)
	chain, err := m.Chain()
	test.That(t, err, test.ShouldBeNil)
	return m, chain
}

func assertWithinLimits(t *testing.T, chain *referenceframe.Chain) {
	t.Helper()
	for i, limit := range chain.Limits() {
		angle, _ := chain.Angle(i)
		test.That(t, math.IsNaN(angle), test.ShouldBeFalse)
		test.That(t, angle, test.ShouldBeBetweenOrEqual, limit.Min, limit.Max)
	}
}

func TestSolveAlreadyAtTarget(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, chain, ee := loadUR10(t)
	before := chain.Angles()

	target, err := ee.EndEffectorPosition()
	test.That(t, err, test.ShouldBeNil)

	res, err := NewCCDSolver(logger).Solve(chain, ee, target, NewDefaultOptions())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeTrue)
	test.That(t, res.Iterations, test.ShouldBeLessThanOrEqualTo, 1)
	test.That(t, res.Distance, test.ShouldAlmostEqual, 0)
	test.That(t, res.Angles, test.ShouldResemble, before)
	test.That(t, res.JointTravel, test.ShouldAlmostEqual, 0)
}

func TestSolveReachableTarget(t *testing.T) {
	logger := logging.NewTestLogger(t)
	for _, tc := range []struct {
		name   string
		pose   []float64
		offset r3.Vector
	}{
		{"home x", []float64{0, -1.57, 0, -1.57, 0, 0}, r3.Vector{X: 0.01}},
		{"picking y", []float64{0.5, -1.0, 1.2, -1.0, 1.57, 0}, r3.Vector{Y: 0.01}},
		{"scanning z", []float64{0, -1.3, 0.5, -0.5, 0.8, 0.5}, r3.Vector{Z: -0.01}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, chain, ee := loadUR10(t)
			test.That(t, chain.SetAngles(tc.pose), test.ShouldBeNil)

			start, err := ee.EndEffectorPosition()
			test.That(t, err, test.ShouldBeNil)
			target := start.Add(tc.offset)

			opts := &Options{MaxIterations: 20, Tolerance: 0.002, MaxStepAngle: 0.25, Damping: 0.7}
			res, err := NewCCDSolver(logger).Solve(chain, ee, target, opts)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, res.Converged, test.ShouldBeTrue)
			test.That(t, res.Iterations, test.ShouldBeLessThan, opts.MaxIterations)
			test.That(t, res.Distance, test.ShouldBeLessThan, opts.Tolerance)

			// the reported angles are the chain's and they drive the model
			test.That(t, res.Angles, test.ShouldResemble, chain.Angles())
			test.That(t, res.JointTravel, test.ShouldBeGreaterThan, 0)
			test.That(t, res.JointTravel, test.ShouldAlmostEqual, referenceframe.AnglesL2Distance(tc.pose, res.Angles))
			end, err := ee.EndEffectorPosition()
			test.That(t, err, test.ShouldBeNil)
			test.That(t, end.Distance(target), test.ShouldAlmostEqual, res.Distance)
			assertWithinLimits(t, chain)
		})
	}
}

const limitedPlanar = `{
	"name": "limited",
	"links": [
		{"id": "base", "parent": "world"},
		{"id": "l1", "parent": "j1", "translation": {"x": 1000}},
		{"id": "l2", "parent": "j2", "translation": {"x": 1000}}
	],
	"joints": [
		{"id": "j1", "type": "revolute", "parent": "base", "axis": {"z": 1}, "min": -17.188733853924695, "max": 17.188733853924695},
		{"id": "j2", "type": "revolute", "parent": "l1", "axis": {"z": 1}, "min": -28.64788975654116, "max": 28.64788975654116}
	]
}`

func TestSolveUnreachableTarget(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("ur10", func(t *testing.T) {
		_, chain, ee := loadUR10(t)
		opts := NewDefaultOptions()
		res, err := NewCCDSolver(logger).Solve(chain, ee, r3.Vector{X: 100, Y: 5, Z: 3}, opts)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Converged, test.ShouldBeFalse)
		test.That(t, res.Iterations, test.ShouldEqual, opts.MaxIterations)
		test.That(t, res.Distance, test.ShouldBeGreaterThan, 90)
		assertWithinLimits(t, chain)
	})

	t.Run("joints pinned at limits", func(t *testing.T) {
		m, chain := loadJSON(t, limitedPlanar)
		ee := m.EndEffector("l2")
		opts := NewDefaultOptions()
		res, err := NewCCDSolver(logger).Solve(chain, ee, r3.Vector{Y: 100}, opts)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Converged, test.ShouldBeFalse)
		test.That(t, res.Iterations, test.ShouldEqual, opts.MaxIterations)

		limits := chain.Limits()
		test.That(t, res.Angles[0], test.ShouldEqual, limits[0].Max)
		test.That(t, res.Angles[1], test.ShouldEqual, limits[1].Max)
	})
}

func TestSolveDegenerateAxis(t *testing.T) {
	logger := logging.NewTestLogger(t)

	// one joint turning about z with its link along x; a target on the z axis projects to nothing
	m, chain := loadJSON(t, `{
		"links": [
			{"id": "base", "parent": "world"},
			{"id": "tip", "parent": "spin", "translation": {"x": 500}}
		],
		"joints": [{"id": "spin", "parent": "base", "axis": {"z": 1}, "min": -180, "max": 180}]
	}`)
	test.That(t, chain.SetAngle(0, 0.3), test.ShouldBeTrue)
	ee := m.EndEffector("tip")

	opts := NewDefaultOptions()
	res, err := NewCCDSolver(logger).Solve(chain, ee, r3.Vector{Z: 2}, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeFalse)
	test.That(t, res.Iterations, test.ShouldEqual, opts.MaxIterations)
	test.That(t, res.Skipped, test.ShouldEqual, opts.MaxIterations)
	test.That(t, res.Angles, test.ShouldResemble, []float64{0.3})

	// end effector on the axis: the same joint cannot move it either
	m, chain = loadJSON(t, `{
		"links": [
			{"id": "base", "parent": "world"},
			{"id": "tip", "parent": "spin", "translation": {"z": 500}}
		],
		"joints": [{"id": "spin", "parent": "base", "axis": {"z": 1}, "min": -180, "max": 180}]
	}`)
	res, err = NewCCDSolver(logger).Solve(chain, m.EndEffector("tip"), r3.Vector{X: 1}, opts)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Converged, test.ShouldBeFalse)
	test.That(t, res.Angles, test.ShouldResemble, []float64{0})
}

func TestSolveLimitInvariant(t *testing.T) {
	logger := logging.NewTestLogger(t)
	//nolint:gosec
	rnd := rand.New(rand.NewSource(42))
	_, chain, ee := loadUR10(t)
	solver := NewCCDSolver(logger)

	for i := 0; i < 50; i++ {
		target := r3.Vector{
			X: rnd.Float64()*4 - 2,
			Y: rnd.Float64()*4 - 2,
			Z: rnd.Float64()*4 - 1,
		}
		res, err := solver.Solve(chain, ee, target, NewDragOptions())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Iterations, test.ShouldBeBetweenOrEqual, 1, NewDragOptions().MaxIterations)
		assertWithinLimits(t, chain)
	}
}

func TestSolveUnavailableEndEffector(t *testing.T) {
	logger := logging.NewTestLogger(t)
	m, chain, ee := loadUR10(t)
	before := chain.Angles()
	m.Unload()

	res, err := NewCCDSolver(logger).Solve(chain, ee, r3.Vector{X: 1}, NewDefaultOptions())
	test.That(t, errors.Is(err, referenceframe.ErrNodeUnavailable), test.ShouldBeTrue)
	test.That(t, res.Converged, test.ShouldBeFalse)
	test.That(t, res.Angles, test.ShouldResemble, before)
}

func TestSolveBadInput(t *testing.T) {
	solver := NewCCDSolver(nil)
	_, chain, ee := loadUR10(t)

	_, err := solver.Solve(chain, ee, r3.Vector{}, &Options{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = solver.Solve(nil, ee, r3.Vector{}, NewDefaultOptions())
	test.That(t, err, test.ShouldNotBeNil)

	detached, err := referenceframe.NewChain(chain.Joints(), nil)
	test.That(t, err, test.ShouldBeNil)
	_, err = solver.Solve(detached, ee, r3.Vector{}, NewDefaultOptions())
	test.That(t, err.Error(), test.ShouldContainSubstring, "accessor")
}
