package osc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"go.viam.com/test"
)

// fakePlant hands out a fixed state and records every applied torque.
type fakePlant struct {
	mu      sync.Mutex
	applied [][]float64
	notify  chan struct{}
}

func newFakePlant() *fakePlant {
	return &fakePlant{notify: make(chan struct{}, 100)}
}

func (p *fakePlant) JointState(ctx context.Context) ([]float64, []float64, error) {
	return []float64{0.1, 0.2}, []float64{0, 0}, nil
}

func (p *fakePlant) SetJointTorques(ctx context.Context, u []float64) error {
	p.mu.Lock()
	p.applied = append(p.applied, u)
	p.mu.Unlock()
	p.notify <- struct{}{}
	return nil
}

func (p *fakePlant) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.applied)
}

func TestNewLoopValidatesFrequency(t *testing.T) {
	logger := golog.NewTestLogger(t)
	gen := staticTorque{0, 0}
	plant := newFakePlant()

	_, err := NewLoop(logger, LoopConfig{}, gen, plant)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewLoop(logger, LoopConfig{Frequency: -5}, gen, plant)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewLoop(logger, LoopConfig{Frequency: 1e6}, gen, plant)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewLoop(logger, LoopConfig{Frequency: 100}, gen, plant)
	test.That(t, err, test.ShouldBeNil)
}

func TestLoopTicks(t *testing.T) {
	logger := golog.NewTestLogger(t)
	plant := newFakePlant()
	clk := clock.NewMock()

	l, err := newLoop(logger, LoopConfig{Frequency: 100}, staticTorque{1, -1}, plant, clk)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, l.Start(), test.ShouldBeNil)
	test.That(t, l.Start(), test.ShouldNotBeNil)

	for i := 0; i < 5; i++ {
		clk.Add(10 * time.Millisecond)
		select {
		case <-plant.notify:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a control tick")
		}
	}
	l.Stop()
	// idempotent
	l.Stop()

	test.That(t, plant.count(), test.ShouldEqual, 5)
	plant.mu.Lock()
	defer plant.mu.Unlock()
	for _, u := range plant.applied {
		test.That(t, u, test.ShouldResemble, []float64{1, -1})
	}
}
