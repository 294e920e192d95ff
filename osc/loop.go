package osc

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// maxLoopFrequency bounds the loop rate; the per-tick computation is meant to
// finish well inside a kHz-class period.
const maxLoopFrequency = 10000.0

// A Plant supplies fresh joint state and accepts a joint torque each tick.
type Plant interface {
	JointState(ctx context.Context) (q, dq []float64, err error)
	SetJointTorques(ctx context.Context, u []float64) error
}

// LoopConfig holds the loop parameters.
type LoopConfig struct {
	// Frequency is the tick rate in Hz.
	Frequency float64 `json:"frequency"`
}

// Loop drives a TorqueGenerator against a Plant at a fixed frequency. It is
// the single writer of the generator, satisfying the one-goroutine discipline
// Controller.Generate requires.
type Loop struct {
	logger golog.Logger
	clk    clock.Clock
	dt     time.Duration
	gen    TorqueGenerator
	plant  Plant

	mu                      sync.Mutex
	running                 bool
	cancel                  context.CancelFunc
	activeBackgroundWorkers sync.WaitGroup
}

// NewLoop returns a stopped loop ticking at cfg.Frequency once started.
func NewLoop(logger golog.Logger, cfg LoopConfig, gen TorqueGenerator, plant Plant) (*Loop, error) {
	return newLoop(logger, cfg, gen, plant, clock.New())
}

func newLoop(logger golog.Logger, cfg LoopConfig, gen TorqueGenerator, plant Plant, clk clock.Clock) (*Loop, error) {
	if cfg.Frequency <= 0 || cfg.Frequency > maxLoopFrequency {
		return nil, errors.Errorf("loop frequency must be in (0, %.0f] Hz, got %f", maxLoopFrequency, cfg.Frequency)
	}
	return &Loop{
		logger: logger,
		clk:    clk,
		dt:     time.Duration(float64(time.Second) / cfg.Frequency),
		gen:    gen,
		plant:  plant,
	}, nil
}

// Start begins ticking in the background.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return errors.New("control loop already started")
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running = true

	ticker := l.clk.Ticker(l.dt)
	l.activeBackgroundWorkers.Add(1)
	utils.ManagedGo(func() {
		defer ticker.Stop()
		for {
			select {
			case <-cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if err := l.tick(cancelCtx); err != nil {
				l.logger.Errorw("control tick failed", "error", err)
			}
		}
	}, l.activeBackgroundWorkers.Done)
	return nil
}

func (l *Loop) tick(ctx context.Context) error {
	q, dq, err := l.plant.JointState(ctx)
	if err != nil {
		return errors.Wrap(err, "reading joint state")
	}
	u, err := l.gen.Generate(q, dq)
	if err != nil {
		return errors.Wrap(err, "generating torque")
	}
	return errors.Wrap(l.plant.SetJointTorques(ctx, u), "applying torque")
}

// Stop halts the loop and waits for the worker to exit.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.cancel()
	l.activeBackgroundWorkers.Wait()
	l.running = false
}
