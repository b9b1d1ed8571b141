package cli

import (
	"fmt"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/armsim/utils"
)

// InspectAction prints the configured model's joints, reach and end effector at the zero pose.
func InspectAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()

	model, err := e.cfg.Model.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load model")
	}
	chain, err := model.Chain()
	if err != nil {
		return err
	}
	ee := model.EndEffector(e.cfg.Model.EndEffectorNames()...)

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Joint", "Min (deg)", "Max (deg)", "Axis", "World Position"})
	for i, j := range chain.Joints() {
		pos := "unavailable"
		if p, err := model.WorldPosition(i); err == nil {
			pos = formatVector(p)
		}
		t.AppendRow(table.Row{
			i,
			j.Name,
			formatDegrees(j.Limit.Min),
			formatDegrees(j.Limit.Max),
			fmt.Sprintf("(%g, %g, %g)", j.Axis.X, j.Axis.Y, j.Axis.Z),
			pos,
		})
	}

	printf(c.App.Writer, "model %q: %d joints, %d frames, reach %.4fm",
		model.Name(), chain.Len(), len(model.FrameNames()), model.Reach())
	printf(c.App.Writer, "%s", t.Render())
	eePos, err := ee.EndEffectorPosition()
	if err != nil {
		warningf(c.App.Writer, "end effector unavailable: %v", err)
		return nil
	}
	printf(c.App.Writer, "end effector %s", formatVector(eePos))
	return nil
}

func formatDegrees(rad float64) string {
	if math.IsInf(rad, 0) {
		return "unbounded"
	}
	return fmt.Sprintf("%.1f", utils.RadToDeg(rad))
}
