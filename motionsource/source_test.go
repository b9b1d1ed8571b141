package motionsource

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"go.viam.com/armsim/logging"
	"go.viam.com/armsim/ros"
)

func newTestSource(t *testing.T, cfg Config) (*Source, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	s, err := NewSource(logging.NewTestLogger(t), clk, cfg)
	test.That(t, err, test.ShouldBeNil)
	return s, clk
}

func twoPoses() Config {
	return Config{
		Increment: DefaultIncrement,
		Waypoints: [][]float64{
			{0, 0, 0, 0, 0, 0},
			{1, 1, 1, 1, 1, 1},
		},
	}
}

func TestInterpolationExactness(t *testing.T) {
	s, _ := newTestSource(t, twoPoses())
	s.Start()

	var last ros.JointState
	for i := 0; i < 100; i++ {
		msg, ok := s.Tick()
		test.That(t, ok, test.ShouldBeTrue)
		last = msg
	}
	test.That(t, s.Progress(), test.ShouldEqual, 0.5)
	for _, v := range last.Position {
		test.That(t, v, test.ShouldEqual, 0.5)
	}
	test.That(t, s.Current(), test.ShouldResemble, last.Position)
}

func TestEase(t *testing.T) {
	test.That(t, Ease(0), test.ShouldEqual, 0)
	test.That(t, Ease(0.25), test.ShouldEqual, 0.125)
	test.That(t, Ease(0.5), test.ShouldEqual, 0.5)
	test.That(t, Ease(0.75), test.ShouldEqual, 0.875)
	test.That(t, Ease(1), test.ShouldEqual, 1)
}

func TestWrap(t *testing.T) {
	cfg := twoPoses()
	cfg.Waypoints = append(cfg.Waypoints, []float64{2, 2, 2, 2, 2, 2})
	cfg.Increment = 0.25
	s, _ := newTestSource(t, cfg)
	s.Start()

	cur, next := s.Indices()
	test.That(t, cur, test.ShouldEqual, 0)
	test.That(t, next, test.ShouldEqual, 1)

	for i := 0; i < 3; i++ {
		s.Tick()
	}
	test.That(t, s.Progress(), test.ShouldEqual, 0.75)

	msg, _ := s.Tick()
	cur, next = s.Indices()
	test.That(t, cur, test.ShouldEqual, 1)
	test.That(t, next, test.ShouldEqual, 2)
	test.That(t, s.Progress(), test.ShouldEqual, 0)
	test.That(t, msg.Position[0], test.ShouldEqual, 1)

	for i := 0; i < 8; i++ {
		s.Tick()
	}
	cur, next = s.Indices()
	test.That(t, cur, test.ShouldEqual, 0)
	test.That(t, next, test.ShouldEqual, 1)

	s.Reset()
	cur, next = s.Indices()
	test.That(t, cur, test.ShouldEqual, 0)
	test.That(t, next, test.ShouldEqual, 1)
	test.That(t, s.Progress(), test.ShouldEqual, 0)
	test.That(t, s.Running(), test.ShouldBeTrue)
}

func TestStopped(t *testing.T) {
	s, _ := newTestSource(t, twoPoses())
	called := 0
	s.Subscribe(ros.JointStatesTopic, func(ros.JointState) { called++ })

	_, ok := s.Tick()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, called, test.ShouldEqual, 0)
	test.That(t, s.Progress(), test.ShouldEqual, 0)

	s.Start()
	_, ok = s.Tick()
	test.That(t, ok, test.ShouldBeTrue)
	s.Stop()
	_, ok = s.Tick()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, called, test.ShouldEqual, 1)
	test.That(t, s.Progress(), test.ShouldEqual, DefaultIncrement)
}

func TestSubscribers(t *testing.T) {
	s, clk := newTestSource(t, twoPoses())
	clk.Set(time.Unix(100, 42))
	s.Start()

	var order []string
	var received ros.JointState
	unsubA := s.Subscribe(ros.JointStatesTopic, func(js ros.JointState) {
		order = append(order, "a")
		received = js
		js.Position[0] = 99
	})
	s.Subscribe(ros.JointStatesTopic, func(js ros.JointState) {
		order = append(order, "b")
		test.That(t, js.Position[0], test.ShouldNotEqual, 99)
	})
	s.Subscribe("/odom", func(ros.JointState) { order = append(order, "odom") })

	msg, ok := s.Tick()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, order, test.ShouldResemble, []string{"a", "b"})
	test.That(t, msg.Position[0], test.ShouldNotEqual, 99)
	test.That(t, received.Header.Seq, test.ShouldEqual, uint32(1))
	test.That(t, received.Header.FrameID, test.ShouldEqual, ros.DefaultFrameID)
	test.That(t, received.Header.Stamp, test.ShouldResemble, ros.Time{Secs: 100, Nsecs: 42})
	test.That(t, received.Name, test.ShouldResemble, []string{"joint_0", "joint_1", "joint_2", "joint_3", "joint_4", "joint_5"})

	unsubA()
	unsubA()
	order = nil
	s.Tick()
	test.That(t, order, test.ShouldResemble, []string{"b"})
}

func TestDefaultWaypoints(t *testing.T) {
	cfg := Config{
		Increment:  DefaultIncrement,
		Waypoints:  DefaultWaypoints(),
		JointNames: []string{"a", "b", "c", "d", "e", "f"},
		FrameID:    "world",
	}
	s, _ := newTestSource(t, cfg)
	test.That(t, s.DoF(), test.ShouldEqual, 6)
	test.That(t, s.JointNames(), test.ShouldResemble, cfg.JointNames)
	test.That(t, s.Current(), test.ShouldResemble, DefaultWaypoints()[0])

	s.Start()
	msg, _ := s.Tick()
	test.That(t, msg.Header.FrameID, test.ShouldEqual, "world")
	test.That(t, msg.Name, test.ShouldResemble, cfg.JointNames)
}

func TestConfigValidate(t *testing.T) {
	_, err := NewSource(logging.NewTestLogger(t), nil, Config{Increment: 0, Waypoints: nil})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "increment")
	test.That(t, err.Error(), test.ShouldContainSubstring, "at least one waypoint")

	err = (&Config{Increment: 0.1, Waypoints: [][]float64{{1, 2}, {1}}, JointNames: []string{"a"}}).Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "waypoint 1 has 1 joints")
	test.That(t, err.Error(), test.ShouldContainSubstring, "1 joint names for 2 joints")

	test.That(t, (&Config{Increment: 1, Waypoints: [][]float64{{1}}}).Validate(), test.ShouldBeNil)
}
