package utils

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestAngleConversions(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90)
	test.That(t, RadToDeg(DegToRad(-37.5)), test.ShouldAlmostEqual, -37.5)
	test.That(t, MMToMeters(MetersToMM(1.25)), test.ShouldAlmostEqual, 1.25)
}

func TestClampLerp(t *testing.T) {
	test.That(t, Clamp(5, -1, 1), test.ShouldEqual, 1.0)
	test.That(t, Clamp(-5, -1, 1), test.ShouldEqual, -1.0)
	test.That(t, Clamp(0.5, -1, 1), test.ShouldEqual, 0.5)
	test.That(t, Clamp(3, math.Inf(-1), math.Inf(1)), test.ShouldEqual, 3.0)

	test.That(t, Lerp(2, 4, 0), test.ShouldEqual, 2.0)
	test.That(t, Lerp(2, 4, 1), test.ShouldEqual, 4.0)
	test.That(t, Lerp(2, 4, 0.25), test.ShouldAlmostEqual, 2.5)

	test.That(t, SampleRandomFloat(-1, 3, func() float64 { return 0.5 }), test.ShouldAlmostEqual, 1)
}

func TestErrors(t *testing.T) {
	err := NewOutOfRangeError("increment", 2, 0, 1)
	test.That(t, err.Error(), test.ShouldEqual, "increment must be in [0, 1], got 2")
	err = NewNonPositiveError("near", -0.5)
	test.That(t, err.Error(), test.ShouldEqual, "near must be positive, got -0.5")
}

func TestStoppableWorkers(t *testing.T) {
	var started atomic.Int32
	worker := func(ctx context.Context) {
		started.Add(1)
		<-ctx.Done()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sw := NewStoppableWorkersWithContext(ctx, worker, worker)
	sw.AddWorkers(worker)
	cancel()
	// cancelling the parent stops the workers; Stop waits for them
	sw.Stop()
	test.That(t, started.Load(), test.ShouldEqual, int32(3))
	test.That(t, sw.Context().Err(), test.ShouldNotBeNil)

	// no workers start after Stop
	sw.AddWorkers(worker)
	sw.Stop()
	test.That(t, started.Load(), test.ShouldEqual, int32(3))
}
