package robot

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/armsim/config"
	"go.viam.com/armsim/control"
	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/referenceframe"
	"go.viam.com/armsim/utils"
)

// maxFrameRateHz bounds how often the loop runs.
const maxFrameRateHz = 200

// eventQueueSize is how many events may wait for the next turn of the loop.
const eventQueueSize = 64

// ErrLoopClosed is returned when submitting to a loop that has stopped.
var ErrLoopClosed = errors.New("frame loop is closed")

// Loop owns a Robot and runs it from a single goroutine. Each frame ticks the motion source
// through the arbiter; queued events, config reloads and model loads are handled between frames.
// Other goroutines interact with the robot only through Submit, Reconfigure and State.
type Loop struct {
	logger logging.Logger
	clock  clock.Clock
	robot  *Robot
	dt     time.Duration

	events   chan Event
	reconfig chan reconfigureRequest
	loaded   chan modelLoad
	workers  utils.StoppableWorkers
	loaders  sync.WaitGroup

	// owned by the loop goroutine
	pending    *reconfigureRequest
	generation int

	mu          sync.RWMutex
	state       control.State
	frames      int64
	subscribers map[uuid.UUID]func(control.State)
}

type reconfigureRequest struct {
	cfg  *config.Config
	done chan error
}

type modelLoad struct {
	generation int
	model      *referenceframe.SerialModel
	err        error
}

// NewLoop returns a loop that runs r at frameRateHz once started.
func NewLoop(logger logging.Logger, r *Robot, clk clock.Clock, frameRateHz float64) (*Loop, error) {
	if r == nil {
		return nil, errors.New("loop needs a robot")
	}
	if !(frameRateHz > 0) || frameRateHz > maxFrameRateHz {
		return nil, errors.Errorf("loop frequency shouldn't be 0 or above %dHz", maxFrameRateHz)
	}
	if clk == nil {
		clk = clock.New()
	}
	l := &Loop{
		logger:      logger,
		clock:       clk,
		robot:       r,
		dt:          time.Duration(float64(time.Second) * (1.0 / frameRateHz)),
		events:      make(chan Event, eventQueueSize),
		reconfig:    make(chan reconfigureRequest),
		loaded:      make(chan modelLoad, 1),
		subscribers: map[uuid.UUID]func(control.State){},
	}
	l.publish(false)
	return l, nil
}

// Start runs the loop until ctx is done or Close is called.
func (l *Loop) Start(ctx context.Context) {
	l.logger.Infow("running frame loop", "dt", l.dt)
	// the ticker exists before Start returns so no frame is lost
	ticker := l.clock.Ticker(l.dt)
	l.workers = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
		defer ticker.Stop()
		l.run(ctx, ticker)
	})
}

func (l *Loop) run(ctx context.Context, ticker *clock.Ticker) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.robot.arbiter.Tick()
			l.publish(true)
		case ev := <-l.events:
			ev.apply(l.robot)
			l.publish(false)
		case req := <-l.reconfig:
			l.handleReconfigure(ctx, req)
			l.publish(false)
		case res := <-l.loaded:
			l.handleModelLoad(res)
			l.publish(false)
		}
	}
}

// Submit queues an event. It blocks while the queue is full.
func (l *Loop) Submit(ctx context.Context, ev Event) error {
	if l.workers == nil {
		return errors.New("frame loop is not started")
	}
	if l.workers.Context().Err() != nil {
		return ErrLoopClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.workers.Context().Done():
		return ErrLoopClosed
	case l.events <- ev:
		return nil
	}
}

// Reconfigure applies cfg to the robot and returns once it has taken effect. When the model
// changes it is loaded in the background while frames keep running; the old model reports
// itself unavailable until the new one is bound. A later reconfigure supersedes a pending one.
func (l *Loop) Reconfigure(ctx context.Context, cfg *config.Config) error {
	if l.workers == nil {
		return errors.New("frame loop is not started")
	}
	if l.workers.Context().Err() != nil {
		return ErrLoopClosed
	}
	req := reconfigureRequest{cfg: cfg, done: make(chan error, 1)}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.workers.Context().Done():
		return ErrLoopClosed
	case l.reconfig <- req:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.workers.Context().Done():
		return ErrLoopClosed
	case err := <-req.done:
		return err
	}
}

func (l *Loop) handleReconfigure(ctx context.Context, req reconfigureRequest) {
	if err := req.cfg.Validate(); err != nil {
		req.done <- errors.Wrap(err, "invalid config")
		return
	}
	if l.pending != nil {
		l.supersede()
		l.generation++
		l.robot.model.Load()
	}
	diff, err := config.DiffConfigs(*l.robot.cfg, *req.cfg)
	if err != nil {
		req.done <- err
		return
	}
	if diff.Equal() {
		req.done <- nil
		return
	}
	l.logger.Debugw("reconfiguring", "diff", diff.String())
	if diff.ModelEqual {
		req.done <- l.robot.Reconfigure(req.cfg, diff)
		return
	}

	l.generation++
	l.pending = &req
	l.robot.model.Unload()

	gen := l.generation
	modelCfg := req.cfg.Model
	l.loaders.Add(1)
	goutils.PanicCapturingGo(func() {
		defer l.loaders.Done()
		model, err := modelCfg.Load()
		select {
		case <-ctx.Done():
		case l.loaded <- modelLoad{generation: gen, model: model, err: err}:
		}
	})
}

func (l *Loop) handleModelLoad(res modelLoad) {
	if res.generation != l.generation || l.pending == nil {
		return
	}
	req := l.pending
	l.pending = nil

	if res.err != nil {
		l.robot.model.Load()
		l.logger.Warnw("model reload failed, keeping the current model", "error", res.err)
		req.done <- errors.Wrap(res.err, "failed to load model")
		return
	}
	if err := l.robot.ReplaceModel(req.cfg, res.model); err != nil {
		l.robot.model.Load()
		req.done <- err
		return
	}
	diff, err := config.DiffConfigs(*l.robot.cfg, *req.cfg)
	if err != nil {
		req.done <- err
		return
	}
	// the new model came with a new motion source
	diff.MotionEqual = true
	req.done <- l.robot.Reconfigure(req.cfg, diff)
}

// supersede fails a pending model reload in favor of a newer one.
func (l *Loop) supersede() {
	if l.pending == nil {
		return
	}
	l.pending.done <- errors.New("model reload superseded by a newer config")
	l.pending = nil
}

func (l *Loop) publish(frame bool) {
	st := l.robot.arbiter.State()
	l.mu.Lock()
	l.state = st
	if frame {
		l.frames++
	}
	subs := make([]func(control.State), 0, len(l.subscribers))
	for _, fn := range l.subscribers {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	if !frame {
		return
	}
	for _, fn := range subs {
		fn(cloneState(st))
	}
}

// State returns the snapshot published after the most recent frame or event.
func (l *Loop) State() control.State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneState(l.state)
}

// Frames returns how many frames have run.
func (l *Loop) Frames() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frames
}

// OnFrame calls fn with the state after every frame, from the loop goroutine. fn must not block
// or call back into the loop. The returned function unsubscribes.
func (l *Loop) OnFrame(fn func(control.State)) func() {
	id := uuid.New()
	l.mu.Lock()
	l.subscribers[id] = fn
	l.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subscribers, id)
			l.mu.Unlock()
		})
	}
}

// Close stops the loop and waits for it to exit. A pending reconfigure fails.
func (l *Loop) Close() {
	if l.workers == nil {
		return
	}
	l.workers.Stop()
	l.loaders.Wait()
	l.supersede()
}

func cloneState(st control.State) control.State {
	st.Angles = slices.Clone(st.Angles)
	st.AnglesDeg = slices.Clone(st.AnglesDeg)
	st.Limits = slices.Clone(st.Limits)
	st.Joints = slices.Clone(st.Joints)
	return st
}
