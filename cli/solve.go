package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/armsim/config"
	"go.viam.com/armsim/motionplan/ik"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/utils"
)

// SolveAction runs one IK solve against the configured model and prints the result.
func SolveAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	target, err := parseVector(c.String(solveFlagTarget))
	if err != nil {
		return errors.Wrapf(err, "invalid --%s", solveFlagTarget)
	}
	chain, ee, err := loadChain(e.cfg)
	if err != nil {
		return err
	}
	if s := c.String(solveFlagStart); s != "" {
		start, err := parseFloats(s)
		if err != nil {
			return errors.Wrapf(err, "invalid --%s", solveFlagStart)
		}
		if err := chain.SetAngles(start); err != nil {
			return err
		}
	}
	opts, err := solverOptions(e.cfg, c.Bool(solveFlagDrag))
	if err != nil {
		return err
	}

	res, err := ik.NewCCDSolver(e.logger.Sublogger("ik")).Solve(chain, ee, target, opts)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "target %s", formatVector(target))
	printSolveResult(c.App.Writer, res)
	printf(c.App.Writer, "%s", anglesTable(chain))
	if pos, err := ee.EndEffectorPosition(); err == nil {
		printf(c.App.Writer, "end effector %s", formatVector(pos))
	}
	if !res.Converged {
		warningf(c.App.Writer, "did not converge within %d iterations", opts.MaxIterations)
	}
	return nil
}

func loadChain(cfg *config.Config) (*referenceframe.Chain, referenceframe.EndEffector, error) {
	model, err := cfg.Model.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load model")
	}
	chain, err := model.Chain()
	if err != nil {
		return nil, nil, err
	}
	return chain, model.EndEffector(cfg.Model.EndEffectorNames()...), nil
}

func solverOptions(cfg *config.Config, drag bool) (*ik.Options, error) {
	if drag {
		return cfg.DragSolverOptions()
	}
	return cfg.SolverOptions()
}

func printSolveResult(w io.Writer, res *ik.Result) {
	printf(w, "converged=%t iterations=%d distance=%.6fm skipped=%d travel=%.4frad",
		res.Converged, res.Iterations, res.Distance, res.Skipped, res.JointTravel)
}

func anglesTable(chain *referenceframe.Chain) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Joint", "Angle (rad)", "Angle (deg)", "Status"})
	for i, j := range chain.Joints() {
		angle, _ := chain.Angle(i)
		t.AppendRow(table.Row{
			j.Name,
			fmt.Sprintf("%.4f", angle),
			fmt.Sprintf("%.2f", utils.RadToDeg(angle)),
			statusString(j.Limit.Status(angle)),
		})
	}
	return t.Render()
}
