package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/armsim/config"
	"go.viam.com/armsim/control"
	"go.viam.com/armsim/robot"
)

const defaultPrintInterval = time.Second

// RunAction runs the frame loop headless until the duration passes or the process is
// interrupted, printing the arm state periodically. When a config file is given it is watched
// and changes are applied to the running robot.
func RunAction(c *cli.Context) (err error) {
	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
	defer cancel()

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.close()
	logger := e.logger

	cfg := *e.cfg
	if c.Bool(runFlagPaused) {
		cfg.Motion.Paused = true
	}
	clk := clock.New()
	r, err := robot.New(&cfg, clk, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	loop, err := robot.NewLoop(logger.Sublogger("loop"), r, clk, cfg.FrameRate())
	if err != nil {
		return err
	}
	loop.Start(ctx)
	defer loop.Close()

	if c.Bool(runFlagManual) {
		if err := loop.Submit(ctx, robot.SetManualMode{On: true}); err != nil {
			return err
		}
	}
	if s := c.String(runFlagTarget); s != "" {
		target, err := parseVector(s)
		if err != nil {
			return err
		}
		if err := loop.Submit(ctx, robot.MoveTo{Target: target}); err != nil {
			return err
		}
	}

	if cfg.ConfigFilePath != "" {
		// watch for and deliver changes to the robot
		watcher, watchErr := config.NewWatcher(ctx, &cfg, logger)
		if watchErr != nil {
			return watchErr
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
		onWatchDone := make(chan struct{})
		goutils.ManagedGo(func() {
			watchConfig(ctx, e, watcher, loop, c.Bool(runFlagPaused))
		}, func() { close(onWatchDone) })
		defer func() {
			cancel()
			<-onWatchDone
		}()
	}

	var deadline <-chan time.Time
	if d := c.Duration(runFlagDuration); d > 0 {
		deadline = clk.After(d)
	}
	interval := c.Duration(runFlagInterval)
	if interval <= 0 {
		interval = defaultPrintInterval
	}
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			printState(c.App.Writer, loop)
			return nil
		case <-deadline:
			printState(c.App.Writer, loop)
			return nil
		case <-ticker.C:
			printState(c.App.Writer, loop)
		}
	}
}

// watchConfig applies each changed config to the loop and the logger levels. A config the robot
// rejects leaves the loggers as they were.
func watchConfig(ctx context.Context, e *env, watcher config.Watcher, loop *robot.Loop, paused bool) {
	logger := e.logger
	last := e.cfg
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-watcher.Config():
			if paused {
				cfg.Motion.Paused = true
			}
			if err := loop.Reconfigure(ctx, cfg); err != nil {
				logger.Errorw("error reconfiguring robot", "error", err)
				continue
			}
			diff, err := config.DiffConfigs(*last, *cfg)
			if err != nil {
				logger.Errorw("error diffing configs", "error", err)
			} else if !diff.LoggingEqual {
				if err := e.applyLogConfig(cfg); err != nil {
					logger.Errorw("error applying log config", "error", err)
				}
				if cfg.LogFile != last.LogFile {
					logger.Warnw("log_file changes apply on restart", "log_file", cfg.LogFile)
				}
			}
			last = cfg
			logger.Infow("applied config change", "config", cfg.ConfigFilePath)
		}
	}
}

func printState(w io.Writer, loop *robot.Loop) {
	st := loop.State()
	printf(w, "frame %d, mode %s", loop.Frames(), st.Mode)
	printf(w, "%s", stateTable(st))
	if st.EndEffector != nil {
		printf(w, "end effector %s", formatVector(*st.EndEffector))
	} else {
		warningf(w, "end effector unavailable")
	}
	if st.LastSolve != nil {
		printf(w, "last solve: converged=%t iterations=%d distance=%.4fm",
			st.LastSolve.Converged, st.LastSolve.Iterations, st.LastSolve.Distance)
	}
	printf(w, "motion applied=%d discarded=%d, manual writes=%d, solves=%d (%d converged)",
		st.Stats.MotionApplied, st.Stats.MotionDiscarded, st.Stats.ManualWrites, st.Stats.Solves, st.Stats.Converged)
}

func stateTable(st control.State) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Joint", "Angle (deg)", "Position", "Status"})
	for i, j := range st.Joints {
		marker := ""
		if i == st.SelectedJoint {
			marker = "*"
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%d%s", i, marker),
			j.Name,
			fmt.Sprintf("%.2f", j.AngleDeg),
			fmt.Sprintf("%.0f%%", 100*j.Normalized),
			statusString(j.Status),
		})
	}
	return t.Render()
}
