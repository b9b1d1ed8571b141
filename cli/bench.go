package cli

import (
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/golang/geo/r3"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"go.viam.com/armsim/motionplan/ik"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/utils"
)

const (
	defaultBenchCount = 100
	histogramBins     = 10
	histogramWidth    = 40
)

// BenchAction solves toward random reachable targets from the zero pose and summarizes how the
// solver did. Targets are the end effector positions of random poses within the joint limits.
// Targets are drawn up front from the seed so results do not depend on the worker count.
func BenchAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	count := c.Int(benchFlagCount)
	if count <= 0 {
		return errors.Errorf("--%s must be positive, got %d", benchFlagCount, count)
	}
	workers := c.Int(benchFlagWorkers)
	if workers <= 0 {
		return errors.Errorf("--%s must be positive, got %d", benchFlagWorkers, workers)
	}
	workers = min(workers, count)
	chain, ee, err := loadChain(e.cfg)
	if err != nil {
		return err
	}
	opts, err := solverOptions(e.cfg, c.Bool(benchFlagDrag))
	if err != nil {
		return err
	}
	//nolint:gosec
	rnd := rand.New(rand.NewSource(c.Int64(benchFlagSeed)))
	targets := make([]r3.Vector, 0, count)
	for range count {
		target, err := randomTarget(chain, ee, rnd)
		if err != nil {
			return err
		}
		targets = append(targets, target)
	}

	solver := ik.NewCCDSolver(e.logger.Sublogger("ik"))
	results := make([]*ik.Result, count)
	g, ctx := errgroup.WithContext(c.Context)
	for w := range workers {
		g.Go(func() error {
			chain, ee, err := loadChain(e.cfg)
			if err != nil {
				return err
			}
			for i := w; i < count; i += workers {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				chain.Reset()
				res, err := solver.Solve(chain, ee, targets[i], opts)
				if err != nil {
					return errors.Wrapf(err, "target %d", i)
				}
				results[i] = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	converged := lo.CountBy(results, func(res *ik.Result) bool { return res.Converged })
	iterations := lo.Map(results, func(res *ik.Result, _ int) float64 { return float64(res.Iterations) })
	distances := lo.Map(results, func(res *ik.Result, _ int) float64 { return res.Distance })
	travel := lo.Map(results, func(res *ik.Result, _ int) float64 { return res.JointTravel })

	t := table.NewWriter()
	t.AppendHeader(table.Row{"", "Mean", "P95", "Max"})
	for _, row := range []struct {
		name   string
		data   []float64
		format string
	}{
		{"iterations", iterations, "%.1f"},
		{"distance (m)", distances, "%.6f"},
		{"joint travel (rad)", travel, "%.4f"},
	} {
		summary, err := summarize(row.data)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			row.name,
			fmt.Sprintf(row.format, summary[0]),
			fmt.Sprintf(row.format, summary[1]),
			fmt.Sprintf(row.format, summary[2]),
		})
	}
	printf(c.App.Writer, "%d/%d converged (tolerance %gm, max %d iterations)",
		converged, count, opts.Tolerance, opts.MaxIterations)
	printf(c.App.Writer, "%s", t.Render())
	if c.Bool(benchFlagHistogram) {
		if err := printHistogram(c.App.Writer, "iterations", iterations); err != nil {
			return err
		}
	}
	if converged < count {
		warningf(c.App.Writer, "%d targets did not converge", count-converged)
	}
	return nil
}

// randomTarget picks a random pose within the limits and returns where it puts the end
// effector. The chain is left at the zero pose.
func randomTarget(chain *referenceframe.Chain, ee referenceframe.EndEffector, rnd *rand.Rand) (r3.Vector, error) {
	defer chain.Reset()
	for i, l := range chain.Limits() {
		lower, upper := l.Min, l.Max
		if math.IsInf(lower, 0) {
			lower = -math.Pi
		}
		if math.IsInf(upper, 0) {
			upper = math.Pi
		}
		chain.SetAngle(i, utils.SampleRandomFloat(lower, upper, rnd.Float64))
	}
	return ee.EndEffectorPosition()
}

// printHistogram prints data bucketed into at most histogramBins bars.
func printHistogram(w io.Writer, name string, data []float64) error {
	lower, err := stats.Min(data)
	if err != nil {
		return err
	}
	upper, err := stats.Max(data)
	if err != nil {
		return err
	}
	printf(w, "%s histogram", name)
	if lower == upper {
		printf(w, "all %d at %g", len(data), lower)
		return nil
	}
	return histogram.Fprint(w, histogram.Hist(min(histogramBins, len(data)), data), histogram.Linear(histogramWidth))
}

// summarize returns the mean, 95th percentile and max of data.
func summarize(data []float64) ([3]float64, error) {
	var out [3]float64
	var err error
	if out[0], err = stats.Mean(data); err != nil {
		return out, err
	}
	if out[1], err = stats.Percentile(data, 95); err != nil {
		return out, err
	}
	if out[2], err = stats.Max(data); err != nil {
		return out, err
	}
	return out, nil
}
