package simulator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/weldcore/gantry-weld-core/internal/domain"
)

// Runner drives a Simulator's Step loop on a background goroutine,
// broadcasting each StepOutcome to subscribers. It applies a
// cancel-and-broadcast shape for long-running async work to the
// simulator's tick loop; the core
// itself never starts goroutines on its own, only this embedder
// convenience does.
type Runner struct {
	mu          sync.RWMutex
	sim         *Simulator
	logger      *zap.Logger
	tickPeriod  time.Duration
	subscribers map[chan StepOutcome]struct{}
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewRunner builds a Runner around sim. tickPeriod is the wall-clock
// delay between ticks (use 0 to run as fast as possible); it is
// independent of the simulator's own logical dt.
func NewRunner(sim *Simulator, logger *zap.Logger, tickPeriod time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		sim:         sim,
		logger:      logger,
		tickPeriod:  tickPeriod,
		subscribers: make(map[chan StepOutcome]struct{}),
	}
}

// Start begins stepping the simulator on a background goroutine until
// the plan completes or ctx is canceled. Calling Start twice without an
// intervening Stop is a programming error and panics.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		panic("simulator: runner already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.loop(runCtx)
}

// Stop cancels the run loop and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if r.tickPeriod > 0 {
		ticker = time.NewTicker(r.tickPeriod)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("simulator runner canceled")
			return
		default:
		}

		r.mu.Lock()
		outcome := r.sim.Step()
		r.mu.Unlock()
		r.broadcast(outcome)

		if outcome.IsComplete {
			r.logger.Info("simulator run complete")
			return
		}

		if tickC != nil {
			select {
			case <-ctx.Done():
				return
			case <-tickC:
			}
		}
	}
}

func (r *Runner) broadcast(outcome StepOutcome) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for ch := range r.subscribers {
		select {
		case ch <- outcome:
		default:
			// Slow subscriber; drop this tick rather than block the loop.
		}
	}
}

// Subscribe returns a channel receiving every StepOutcome broadcast
// while subscribed. Call Unsubscribe to stop receiving and release it.
func (r *Runner) Subscribe() chan StepOutcome {
	ch := make(chan StepOutcome, 8)
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()
	return ch
}

// Unsubscribe removes ch from the broadcast set and closes it.
func (r *Runner) Unsubscribe(ch chan StepOutcome) {
	r.mu.Lock()
	delete(r.subscribers, ch)
	r.mu.Unlock()
	close(ch)
}

// Snapshot returns a point-in-time copy of the robots' observable
// state, safe to call from another goroutine while the loop runs.
func (r *Runner) Snapshot() []RobotSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := r.sim.State()
	out := make([]RobotSnapshot, len(state.Robots))
	for i, rb := range state.Robots {
		out[i] = RobotSnapshot{
			ID:             rb.ID,
			State:          rb.State,
			CurrentY:       rb.CurrentY,
			WeldsCompleted: rb.WeldsCompleted,
		}
	}
	return out
}

// RobotSnapshot is an immutable, race-free view of a robot for
// cross-goroutine observers.
type RobotSnapshot struct {
	ID             string
	State          domain.RobotState
	CurrentY       float64
	WeldsCompleted int
}
