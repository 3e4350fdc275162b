package simulator

import "github.com/weldcore/gantry-weld-core/internal/domain"

// stepWOM advances one tick of continuous-sweep execution against
// window. Phase order follows spec §4.6.1 and §5 exactly: it is
// semantically load-bearing and must not be reordered.
func (s *Simulator) stepWOM(window domain.Window) StepOutcome {
	dtSeconds := s.dt.Seconds()
	var completed []int

	// Phase 0 — pre-position gantry. Robots do not position until the
	// gantry has reached (or passed) the window start.
	if s.state.Gantry.X < window.XStart {
		newX, snapped := moveToward(s.state.Gantry.X, window.XStart, s.state.Gantry.Speed*dtSeconds)
		s.state.Gantry.X = newX
		s.state.Gantry.IsMoving = !snapped
		s.applyTiming()
		return StepOutcome{}
	}

	// Phase 1 — position robots toward their window Y target.
	for _, rid := range s.taskOrder {
		r := s.state.RobotByID(rid)
		if r.State == domain.StateWelding {
			continue
		}
		t := s.activeTask(rid)
		if t == nil {
			continue // every task for this robot in the window is already done
		}
		newY, snapped := moveToward(r.CurrentY, t.Y, r.TCPSpeed*dtSeconds)
		r.CurrentY = newY
		if snapped {
			if r.State != domain.StateWaitMutex {
				r.State = domain.StateIdle
			}
		} else {
			r.State = domain.StateMovingY
		}
	}

	// Phase 2 — per-robot weld-start, independent. A robot starts the
	// instant the gantry passes its own x_start; it never waits on
	// siblings still positioning (spec §8 scenario S6).
	for i := range s.sortedTasks {
		t := &s.sortedTasks[i]
		if t.Weld.Done != 0 {
			continue
		}
		r := s.state.RobotByID(t.RobotID)
		if r.State != domain.StateIdle && r.State != domain.StateWaitMutex {
			continue
		}
		if s.state.Gantry.X < t.Weld.XStart {
			continue
		}
		if s.cm.TryAcquire(t.RobotID, t.Y, s.requesting) {
			r.State = domain.StateWelding
			r.CurrentWeld = t.Weld
		} else {
			r.State = domain.StateWaitMutex
		}
	}

	// Phase 3 — advance the gantry at the slowest active welder's speed.
	welding := weldingRobots(s.state.Robots)
	if len(welding) > 0 {
		speed := welding[0].TCPSpeed
		for _, r := range welding[1:] {
			if r.TCPSpeed < speed {
				speed = r.TCPSpeed
			}
		}
		s.state.Gantry.X += speed * dtSeconds
		if s.state.Gantry.X > window.XEnd {
			s.state.Gantry.X = window.XEnd
		}
		s.state.Gantry.IsMoving = true
	} else {
		s.state.Gantry.IsMoving = false
	}

	// Phase 4 — advance weld progress; release locks on completion.
	for _, r := range welding {
		w := r.CurrentWeld
		w.Done += r.TCPSpeed * dtSeconds
		if w.Done > w.Length() {
			w.Done = w.Length()
		}
		if w.IsComplete() {
			r.State = domain.StateIdle
			r.CurrentWeld = nil
			r.WeldsCompleted++
			s.cm.Release(r.ID)
			completed = append(completed, w.ID)
		}
	}

	// Phase 5 — window completion.
	allDone := true
	for _, t := range window.Tasks {
		if !t.Weld.IsComplete() {
			allDone = false
			break
		}
	}
	if allDone {
		s.state.WindowIndex++
		s.rebuildTaskIndex()
	}

	s.applyTiming()
	return StepOutcome{CompletedThisTick: completed}
}

func weldingRobots(robots []*domain.Robot) []*domain.Robot {
	var out []*domain.Robot
	for _, r := range robots {
		if r.State == domain.StateWelding {
			out = append(out, r)
		}
	}
	return out
}

// applyTiming adds dt to each robot's per-state counter, per spec
// §4.6.1's accounting rule: WAIT_MUTEX counts as idle.
func (s *Simulator) applyTiming() {
	for _, r := range s.state.Robots {
		switch r.State {
		case domain.StateWelding:
			r.TimeWelding += s.dt
		case domain.StateMovingY:
			r.TimeMoving += s.dt
		default:
			r.TimeIdle += s.dt
		}
	}
}
