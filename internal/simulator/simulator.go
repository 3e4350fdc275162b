// Package simulator advances a Plan forward in time, tick by tick,
// against the physical model described in spec §4.6: gantry, robots,
// and weld progress, serialized through the shared collision manager.
package simulator

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/weldcore/gantry-weld-core/internal/collision"
	"github.com/weldcore/gantry-weld-core/internal/domain"
)

const snapTolerance = 1.0 // mm

// Simulator drives a Plan's windows and stops against a SimState. It is
// single-threaded and deterministic: Step() runs one tick to
// completion with no suspension points, per spec §5.
type Simulator struct {
	state *domain.SimState
	cm    *collision.Manager
	dt    time.Duration

	logger       *zap.Logger
	stallTicks   int
	stallCounter int

	// taskOrder fixes the deterministic robot-id iteration order spec
	// §5 requires, rebuilt whenever the window/stop index advances.
	taskOrder []string

	// sortedTasks holds every task of the active window/stop in a
	// fixed robot-id, then weld-id order, for Phase 2's weld-start scan.
	sortedTasks []domain.Task

	// womQueue holds, per robot, that robot's own tasks in the active
	// WOM window sorted by x_start — a robot can carry more than one
	// weld in a window (its nominal weld plus any gap-welds), and the
	// one currently relevant to positioning/requesting is always its
	// earliest not-yet-done task, never just the first one seen.
	womQueue map[string][]*domain.Task

	// SAW-only per-robot task queues (stop.Tasks is built in global
	// Y order; each robot's queue preserves that relative order).
	sawQueue     map[string][]*domain.Task
	sawQueuePos  map[string]int
	taskBaseline map[string]float64
}

// NewSimulator builds a Simulator for plan against state, using cm for
// zone arbitration and dt as the fixed tick size. Precondition (not
// checked here, the embedder's responsibility per spec §6): plan
// validates against state.Robots' sides and reach.
func NewSimulator(plan *domain.Plan, state *domain.SimState, cm *collision.Manager, dt time.Duration) *Simulator {
	state.Plan = plan
	s := &Simulator{
		state:      state,
		cm:         cm,
		dt:         dt,
		logger:     zap.NewNop(),
		stallTicks: 50,
	}
	s.rebuildTaskIndex()
	return s
}

// SetLogger injects a structured logger; passing nil restores the
// no-op logger.
func (s *Simulator) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.logger = logger
}

// SetStallTicks overrides the number of consecutive no-progress ticks
// that trigger a stall warning.
func (s *Simulator) SetStallTicks(n int) {
	s.stallTicks = n
}

// State exposes the underlying mutable SimState for read access (e.g.
// a runner broadcasting a snapshot to observers).
func (s *Simulator) State() *domain.SimState {
	return s.state
}

// Step advances the simulation by dt and returns what happened.
func (s *Simulator) Step() StepOutcome {
	if s.state.IsComplete {
		return StepOutcome{IsComplete: true, Progress: 1}
	}

	plan := s.state.Plan
	progressBefore := s.progress()
	var out StepOutcome

	switch {
	case s.state.WindowIndex < len(plan.Windows):
		out = s.stepWOM(plan.Windows[s.state.WindowIndex])
	case s.state.StopIndex < len(plan.Stops):
		out = s.stepSAW(plan.Stops[s.state.StopIndex])
	default:
		s.state.IsComplete = true
		out = StepOutcome{IsComplete: true}
	}

	s.state.Time += s.dt
	out.Progress = s.progress()
	out.IsComplete = s.state.IsComplete
	out.WeldingSet = s.weldingSet()

	if out.Progress <= progressBefore && !s.state.IsComplete {
		s.stallCounter++
		if s.stallCounter >= s.stallTicks {
			out.Warnings = append(out.Warnings, string(domain.WarningStall))
			s.logger.Warn("simulation stalled", zap.Int("ticks", s.stallCounter))
		}
	} else {
		s.stallCounter = 0
	}

	return out
}

func (s *Simulator) progress() float64 {
	var done, total float64
	for _, w := range s.state.Welds {
		done += w.Done
		total += w.Length()
	}
	if total == 0 {
		return 1
	}
	return done / total
}

func (s *Simulator) weldingSet() []string {
	var ids []string
	for _, r := range s.state.Robots {
		if r.State == domain.StateWelding {
			ids = append(ids, r.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// rebuildTaskIndex caches the active window/stop's tasks by robot id
// and fixes the deterministic robot-id processing order spec §5 requires.
func (s *Simulator) rebuildTaskIndex() {
	s.taskOrder = nil
	s.sortedTasks = nil
	s.womQueue = nil

	plan := s.state.Plan
	if plan == nil {
		return
	}

	var tasks []domain.Task
	switch {
	case s.state.WindowIndex < len(plan.Windows):
		tasks = plan.Windows[s.state.WindowIndex].Tasks
	case s.state.StopIndex < len(plan.Stops):
		tasks = plan.Stops[s.state.StopIndex].Tasks
	default:
		return
	}

	seen := make(map[string]bool)
	for i := range tasks {
		t := &tasks[i]
		if !seen[t.RobotID] {
			seen[t.RobotID] = true
			s.taskOrder = append(s.taskOrder, t.RobotID)
		}
	}
	sort.Strings(s.taskOrder)

	s.sortedTasks = make([]domain.Task, len(tasks))
	copy(s.sortedTasks, tasks)
	sort.Slice(s.sortedTasks, func(i, j int) bool {
		a, b := s.sortedTasks[i], s.sortedTasks[j]
		if a.RobotID != b.RobotID {
			return a.RobotID < b.RobotID
		}
		return a.Weld.ID < b.Weld.ID
	})

	s.sawQueue = nil
	s.sawQueuePos = nil
	s.taskBaseline = nil
	if plan != nil && s.state.WindowIndex >= len(plan.Windows) && s.state.StopIndex < len(plan.Stops) {
		s.sawQueue = make(map[string][]*domain.Task)
		s.sawQueuePos = make(map[string]int)
		s.taskBaseline = make(map[string]float64)
		for i := range tasks {
			t := &tasks[i]
			s.sawQueue[t.RobotID] = append(s.sawQueue[t.RobotID], t)
		}
		return
	}

	s.womQueue = make(map[string][]*domain.Task)
	for i := range tasks {
		t := &tasks[i]
		s.womQueue[t.RobotID] = append(s.womQueue[t.RobotID], t)
	}
	for robotID := range s.womQueue {
		q := s.womQueue[robotID]
		sort.Slice(q, func(i, j int) bool { return q[i].Weld.XStart < q[j].Weld.XStart })
	}
}

// activeTask returns the task currently relevant to robotID: in SAW,
// its queue's head; in WOM, its earliest not-yet-started weld by
// x_start. A robot can hold more than one task in a window or stop, so
// this must never just return the first task seen for the robot.
func (s *Simulator) activeTask(robotID string) *domain.Task {
	if s.sawQueue != nil {
		queue := s.sawQueue[robotID]
		pos := s.sawQueuePos[robotID]
		if pos < len(queue) {
			return queue[pos]
		}
		return nil
	}
	for _, t := range s.womQueue[robotID] {
		if t.Weld.Done == 0 {
			return t
		}
	}
	return nil
}

// requesting implements spec §4.1's definition of a robot requesting a
// zone, for the collision manager's priority-preemption check.
func (s *Simulator) requesting(z domain.Zone, robotID string) bool {
	r := s.state.RobotByID(robotID)
	if r == nil {
		return false
	}
	switch r.State {
	case domain.StateWelding:
		return z.ContainsY(r.CurrentY)
	case domain.StateMovingY:
		t := s.activeTask(robotID)
		if t == nil {
			return false
		}
		return z.ContainsY(t.Y) && s.state.Gantry.X >= t.Weld.XStart && s.state.Gantry.X <= t.Weld.XEnd
	default:
		return false
	}
}

// moveToward advances current toward target by at most maxStep,
// overshoot-free: whenever the remaining distance is within reach this
// tick (or already within snapTolerance), it lands exactly on target.
func moveToward(current, target, maxStep float64) (float64, bool) {
	delta := target - current
	if absf(delta) <= maxStep || absf(delta) < snapTolerance {
		return target, true
	}
	step := maxStep
	if delta < 0 {
		step = -step
	}
	return current + step, false
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
