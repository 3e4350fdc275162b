// Package domain holds the data model shared by the planner, the
// collision manager, and the simulator: welds, robots, the gantry,
// shared zones, tasks, windows/stops, and the plan itself.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Side identifies which face of the gantry a robot or weld belongs to.
type Side string

const (
	SideXPlus  Side = "x_plus"
	SideXMinus Side = "x_minus"
)

// RobotState is the per-robot state machine defined in spec §4.6.3.
type RobotState string

const (
	StateIdle       RobotState = "IDLE"
	StateMovingY    RobotState = "MOVING_Y"
	StateWelding    RobotState = "WELDING"
	StateWaitMutex  RobotState = "WAIT_MUTEX"
)

// Mode selects which strategy the master planner dispatches to.
type Mode string

const (
	ModeWOM    Mode = "WOM"
	ModeSAW    Mode = "SAW"
	ModeHybrid Mode = "HYBRID"
)

// Weld is a straight seam parallel to X at a fixed Y, on one side of
// the gantry. XEnd is always normalized to be greater than XStart.
type Weld struct {
	ID       int
	XStart   float64
	XEnd     float64
	Y        float64
	Side     Side
	Done     float64
	ParentID *int // non-nil only on fragments minted by the zone splitter
}

// Length returns the weld's total X-span.
func (w *Weld) Length() float64 {
	return w.XEnd - w.XStart
}

// IsComplete reports whether the weld has been fully welded.
func (w *Weld) IsComplete() bool {
	return w.Done >= w.Length()
}

// Normalize swaps XStart/XEnd if the weld was specified backwards.
func (w *Weld) Normalize() {
	if w.XEnd < w.XStart {
		w.XStart, w.XEnd = w.XEnd, w.XStart
	}
}

// Clone returns a deep copy; welds are mutated in place during
// simulation, so planning stages that want their own arena copy them.
func (w *Weld) Clone() *Weld {
	cp := *w
	if w.ParentID != nil {
		pid := *w.ParentID
		cp.ParentID = &pid
	}
	return &cp
}

// Robot is a welding robot mounted on one side of the gantry carriage.
type Robot struct {
	ID       string
	Side     Side
	YRange   [2]float64 // (y_min, y_max), nominal band
	TCPSpeed float64    // mm/s

	// Mutable run state.
	CurrentY       float64
	State          RobotState
	CurrentWeld    *Weld
	WeldsCompleted int
	TimeWelding    time.Duration
	TimeMoving     time.Duration
	TimeIdle       time.Duration
}

// WorkspaceCenter is the midpoint of the robot's nominal Y range.
func (r *Robot) WorkspaceCenter() float64 {
	return (r.YRange[0] + r.YRange[1]) / 2
}

// CanReach reports whether y is within reach of the robot's nominal
// band, i.e. within [y_min-reach, y_max+reach].
func (r *Robot) CanReach(y, reach float64) bool {
	return y >= r.YRange[0]-reach && y <= r.YRange[1]+reach
}

// InNominalRange reports whether y falls inside the robot's own band.
func (r *Robot) InNominalRange(y float64) bool {
	return y >= r.YRange[0] && y <= r.YRange[1]
}

// Gantry is the linear carriage spanning Y, translating along X.
type Gantry struct {
	X        float64
	Speed    float64 // mm/s, max X speed
	XLength  float64
	IsMoving bool
}

// Zone is a shared Y-band guarded by a mutex, with a strict priority
// order over the robots allowed to enter it.
type Zone struct {
	Name     string
	YLo      float64
	YHi      float64
	Priority []string // ordered robot ids, highest priority first
}

// ContainsY reports whether y falls inside the zone's band.
func (z *Zone) ContainsY(y float64) bool {
	return y >= z.YLo && y <= z.YHi
}

// Task is a commitment for one robot in one window/stop.
type Task struct {
	RobotID string
	Weld    *Weld
	Y       float64
	XStart  float64
	XEnd    float64
}

// Window is a WOM grouping: a contiguous X-span the gantry sweeps
// while its tasks' robots weld at fixed Y.
type Window struct {
	XStart float64
	XEnd   float64
	Tasks  []Task
}

// Stop is a SAW grouping: a discrete gantry X position at which
// robots traverse Y to complete their reachable welds.
type Stop struct {
	X     float64
	Tasks []Task
}

// Plan is the ordered output of the planner: either WOM windows, SAW
// stops, or both (hybrid — WOM first, SAW second), plus the computed
// gantry start position for the first window/stop.
type Plan struct {
	ID                  uuid.UUID
	Mode                Mode
	Windows             []Window
	Stops               []Stop
	OptimalGantryStartX float64
}

// CarriageOffset returns the robot's X-offset on the gantry carriage,
// used to compute reach windows relative to the gantry's own X.
func CarriageOffset(side Side, xPlusOffset, xMinusOffset float64) float64 {
	if side == SideXPlus {
		return xPlusOffset
	}
	return xMinusOffset
}

// Scene is the static geometry and kinematic limits the embedder
// supplies; it is a plain Go value, never a core-owned wire format.
type Scene struct {
	GantryXLength float64
	GantrySpeed   float64
	Zones         []Zone
	Reach         float64
	SafeDistance  float64
}

// SimState is the full mutable state the simulator advances, tick by
// tick: time, gantry, robot arena, weld arena, and position in the plan.
type SimState struct {
	Time        time.Duration
	Gantry      Gantry
	Robots      []*Robot
	Welds       []*Weld
	Plan        *Plan
	WindowIndex int
	StopIndex   int
	IsComplete  bool
}

// RobotByID looks up a robot in the state's own arena by id.
func (s *SimState) RobotByID(id string) *Robot {
	for _, r := range s.Robots {
		if r.ID == id {
			return r
		}
	}
	return nil
}
