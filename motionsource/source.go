// Package motionsource generates a looping, eased joint trajectory between waypoint poses and
// publishes it as ROS joint states, standing in for an external motion feed.
package motionsource

import (
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/ros"
	"go.viam.com/armsim/utils"
)

// DefaultIncrement is the progress added per tick.
const DefaultIncrement = 0.005

// wrapTolerance absorbs rounding in steps*increment so a segment always takes 1/increment ticks.
const wrapTolerance = 1e-9

// DefaultWaypoints returns the built-in pick and place cycle for a six joint arm: home, picking,
// lifting, placing, lifting on the way back and scanning.
func DefaultWaypoints() [][]float64 {
	return [][]float64{
		{0, -1.57, 0, -1.57, 0, 0},
		{0.5, -1.0, 1.2, -1.0, 1.57, 0},
		{0.5, -1.2, 0.8, -0.8, 1.57, 0},
		{-0.5, -1.0, 1.2, -1.0, 1.57, 0},
		{-0.5, -1.2, 0.8, -0.8, 1.57, 0},
		{0, -1.3, 0.5, -0.5, 0.8, 0.5},
	}
}

// Config describes a motion source.
type Config struct {
	Increment  float64
	Waypoints  [][]float64
	JointNames []string
	FrameID    string
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate() error {
	var errs error
	if !(cfg.Increment > 0 && cfg.Increment <= 1) {
		errs = multierr.Append(errs, utils.NewOutOfRangeError("increment", cfg.Increment, 0, 1))
	}
	if len(cfg.Waypoints) == 0 {
		return multierr.Append(errs, errors.New("at least one waypoint is required"))
	}
	dof := len(cfg.Waypoints[0])
	if dof == 0 {
		errs = multierr.Append(errs, errors.New("waypoints must have at least one joint"))
	}
	for i, wp := range cfg.Waypoints {
		if len(wp) != dof {
			errs = multierr.Append(errs, errors.Errorf("waypoint %d has %d joints, expected %d", i, len(wp), dof))
		}
	}
	if len(cfg.JointNames) != 0 && len(cfg.JointNames) != dof {
		errs = multierr.Append(errs, errors.Errorf("got %d joint names for %d joints", len(cfg.JointNames), dof))
	}
	return errs
}

// Ease is the quadratic ease-in-out curve.
func Ease(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - 2*(1-t)*(1-t)
}

type subscriber struct {
	id    uuid.UUID
	topic string
	fn    func(ros.JointState)
}

// Source cycles through its waypoints, one increment of progress per Tick. It only moves while
// started.
type Source struct {
	mu     sync.Mutex
	logger logging.Logger
	clock  clock.Clock

	waypoints [][]float64
	names     []string
	frameID   string
	increment float64

	current int
	next    int
	steps   int
	seq     uint32
	running bool

	subscribers []subscriber
}

// NewSource returns a stopped source positioned at the first waypoint.
func NewSource(logger logging.Logger, clk clock.Clock, cfg Config) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid motion source config")
	}
	if clk == nil {
		clk = clock.New()
	}
	waypoints := make([][]float64, 0, len(cfg.Waypoints))
	for _, wp := range cfg.Waypoints {
		waypoints = append(waypoints, append([]float64(nil), wp...))
	}
	names := append([]string(nil), cfg.JointNames...)
	if len(names) == 0 {
		for i := range waypoints[0] {
			names = append(names, fmt.Sprintf("joint_%d", i))
		}
	}
	frameID := cfg.FrameID
	if frameID == "" {
		frameID = ros.DefaultFrameID
	}
	s := &Source{
		logger:    logger,
		clock:     clk,
		waypoints: waypoints,
		names:     names,
		frameID:   frameID,
		increment: cfg.Increment,
	}
	s.reset()
	return s, nil
}

// Start makes Tick advance the trajectory.
func (s *Source) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

// Stop freezes the trajectory; Tick becomes a no-op until Start is called again.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

// Running reports whether the source is started.
func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reset rewinds to the start of the first segment. The running state is unchanged.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Source) reset() {
	s.current = 0
	s.next = 1 % len(s.waypoints)
	s.steps = 0
	s.seq = 0
}

// Subscribe registers fn for topic and returns a function removing it. Subscribers of a topic are
// called in registration order, each with its own copy of the message.
func (s *Source) Subscribe(topic string, fn func(ros.JointState)) func() {
	id := uuid.New()
	s.mu.Lock()
	s.subscribers = append(s.subscribers, subscriber{id: id, topic: topic, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subscribers {
				if sub.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Tick advances the trajectory by one increment and publishes the new joint vector on
// /joint_states. It returns false without publishing if the source is stopped.
func (s *Source) Tick() (ros.JointState, bool) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ros.JointState{}, false
	}
	s.steps++
	if s.progress() >= 1-wrapTolerance {
		s.steps = 0
		s.current = s.next
		s.next = (s.next + 1) % len(s.waypoints)
	}
	s.seq++
	msg := ros.JointState{
		Header: ros.Header{
			Seq:     s.seq,
			Stamp:   ros.NewTime(s.clock.Now()),
			FrameID: s.frameID,
		},
		Name:     append([]string(nil), s.names...),
		Position: s.output(),
	}
	var subs []subscriber
	for _, sub := range s.subscribers {
		if sub.topic == ros.JointStatesTopic {
			subs = append(subs, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(msg.Copy())
	}
	return msg, true
}

// Current returns the joint vector at the current progress without advancing.
func (s *Source) Current() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output()
}

// Progress returns how far, in [0, 1), the trajectory is between the current and next waypoint.
func (s *Source) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress()
}

// Indices returns the current and next waypoint indices.
func (s *Source) Indices() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.next
}

// JointNames returns the names published with each joint state.
func (s *Source) JointNames() []string {
	return append([]string(nil), s.names...)
}

// DoF returns the number of joints in each waypoint.
func (s *Source) DoF() int {
	return len(s.waypoints[0])
}

func (s *Source) progress() float64 {
	return float64(s.steps) * s.increment
}

func (s *Source) output() []float64 {
	from, to := s.waypoints[s.current], s.waypoints[s.next]
	e := Ease(s.progress())
	out := make([]float64, len(from))
	for i := range from {
		out[i] = utils.Lerp(from[i], to[i], e)
	}
	return out
}
