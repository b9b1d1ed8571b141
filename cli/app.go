// Package cli contains the armsim command line: running the simulator headless, one-off solves,
// solver benchmarks and model inspection.
package cli

import (
	"io"
	"runtime"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	generalFlagConfig = "config"
	generalFlagDebug  = "debug"

	runFlagDuration = "duration"
	runFlagInterval = "interval"
	runFlagPaused   = "paused"
	runFlagTarget   = "target"
	runFlagManual   = "manual"

	solveFlagTarget = "target"
	solveFlagStart  = "start"
	solveFlagDrag   = "drag"

	benchFlagCount     = "count"
	benchFlagSeed      = "seed"
	benchFlagDrag      = "drag"
	benchFlagWorkers   = "workers"
	benchFlagHistogram = "histogram"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "armsim",
		Usage:           "simulate and control a serial robot arm",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    generalFlagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the frame loop headless, printing the arm state",
				Action: RunAction,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  runFlagDuration,
						Usage: "stop after this long; zero runs until interrupted",
					},
					&cli.DurationFlag{
						Name:  runFlagInterval,
						Value: defaultPrintInterval,
						Usage: "how often to print the state",
					},
					&cli.BoolFlag{
						Name:  runFlagPaused,
						Usage: "start with the motion source paused",
					},
					&cli.BoolFlag{
						Name:  runFlagManual,
						Usage: "start in manual mode",
					},
					&cli.StringFlag{
						Name:  runFlagTarget,
						Usage: "solve toward `X,Y,Z` (meters) once the loop starts",
					},
				},
			},
			{
				Name:      "solve",
				Usage:     "run one IK solve and print the result",
				UsageText: "armsim solve --target X,Y,Z [--start A1,...,AN] [--drag]",
				Action:    SolveAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     solveFlagTarget,
						Required: true,
						Usage:    "target end effector position `X,Y,Z` in meters",
					},
					&cli.StringFlag{
						Name:  solveFlagStart,
						Usage: "starting joint angles `A1,...,AN` in radians; zero when unset",
					},
					&cli.BoolFlag{
						Name:  solveFlagDrag,
						Usage: "use the interactive drag solver settings",
					},
				},
			},
			{
				Name:   "bench",
				Usage:  "solve random reachable targets and summarize convergence",
				Action: BenchAction,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  benchFlagCount,
						Value: defaultBenchCount,
						Usage: "number of targets",
					},
					&cli.Int64Flag{
						Name:  benchFlagSeed,
						Value: 1,
						Usage: "random seed",
					},
					&cli.BoolFlag{
						Name:  benchFlagDrag,
						Usage: "use the interactive drag solver settings",
					},
					&cli.IntFlag{
						Name:  benchFlagWorkers,
						Value: runtime.NumCPU(),
						Usage: "number of targets solved concurrently",
					},
					&cli.BoolFlag{
						Name:  benchFlagHistogram,
						Usage: "print a histogram of iterations per solve",
					},
				},
			},
			{
				Name:   "inspect",
				Usage:  "print the model's joints and end effector",
				Action: InspectAction,
			},
		},
	}
}
