package simulator

import "github.com/weldcore/gantry-weld-core/internal/domain"

// stepSAW advances one tick of discrete-stop execution against stop,
// per spec §4.6.2: traverse, execute each robot's local queue, advance.
func (s *Simulator) stepSAW(stop domain.Stop) StepOutcome {
	dtSeconds := s.dt.Seconds()

	// Phase 1 — traverse. Robots hold position until the gantry is at
	// the stop; once it snaps into place, execution proceeds the same
	// tick.
	if s.state.Gantry.X != stop.X {
		newX, snapped := moveToward(s.state.Gantry.X, stop.X, s.state.Gantry.Speed*dtSeconds)
		s.state.Gantry.X = newX
		s.state.Gantry.IsMoving = !snapped
		if !snapped {
			s.applyTiming()
			return StepOutcome{}
		}
	}
	s.state.Gantry.IsMoving = false

	var completed []int

	// Phase 2 — execute: each robot with tasks at this stop advances
	// its own queue independently.
	for _, robotID := range s.taskOrder {
		r := s.state.RobotByID(robotID)
		queue := s.sawQueue[robotID]
		pos := s.sawQueuePos[robotID]
		if pos >= len(queue) {
			continue
		}
		t := queue[pos]

		if r.State != domain.StateWelding {
			newY, snapped := moveToward(r.CurrentY, t.Y, r.TCPSpeed*dtSeconds)
			r.CurrentY = newY
			if !snapped {
				r.State = domain.StateMovingY
				continue
			}
			if s.cm.TryAcquire(robotID, t.Y, s.requesting) {
				r.State = domain.StateWelding
				r.CurrentWeld = t.Weld
				s.taskBaseline[robotID] = t.Weld.Done
			} else {
				r.State = domain.StateWaitMutex
				continue
			}
		}

		w := t.Weld
		w.Done += r.TCPSpeed * dtSeconds
		if w.Done > w.Length() {
			w.Done = w.Length()
		}

		localTarget := s.taskBaseline[robotID] + (t.XEnd - t.XStart)
		if localTarget > w.Length() {
			localTarget = w.Length()
		}

		if w.Done >= localTarget {
			s.cm.Release(robotID)
			r.State = domain.StateIdle
			r.CurrentWeld = nil
			s.sawQueuePos[robotID] = pos + 1
			if w.IsComplete() {
				r.WeldsCompleted++
				completed = append(completed, w.ID)
			}
		}
	}

	// Phase 3 — advance stop when every robot's queue is drained.
	allDone := true
	for _, robotID := range s.taskOrder {
		if s.sawQueuePos[robotID] < len(s.sawQueue[robotID]) {
			allDone = false
			break
		}
	}
	if allDone {
		s.state.StopIndex++
		s.rebuildTaskIndex()
	}

	s.applyTiming()
	return StepOutcome{CompletedThisTick: completed}
}
