package simulator

import (
	"testing"
	"time"

	"github.com/weldcore/gantry-weld-core/internal/collision"
	"github.com/weldcore/gantry-weld-core/internal/domain"
)

const dt = 100 * time.Millisecond

func newRobot(id string, side domain.Side, yMin, yMax, tcp float64) *domain.Robot {
	return &domain.Robot{ID: id, Side: side, YRange: [2]float64{yMin, yMax}, TCPSpeed: tcp, State: domain.StateIdle}
}

// TestScenario_S2_OvershootFreePositioning grounds scenario S2: a
// robot moving 100mm at 120mm/s with dt=0.1s takes 9 ticks, snaps
// exactly to target, and never overshoots.
func TestScenario_S2_OvershootFreePositioning(t *testing.T) {
	y := 500.0
	target := 600.0
	ticks := 0
	prevDist := target - y

	for y != target {
		y, _ = moveToward(y, target, 120*dt.Seconds())
		ticks++
		dist := target - y
		if absf(dist) > absf(prevDist) {
			t.Fatalf("overshoot detected: prevDist=%v dist=%v", prevDist, dist)
		}
		prevDist = dist
		if ticks > 20 {
			t.Fatalf("did not converge within a reasonable tick count")
		}
	}

	if ticks != 9 {
		t.Fatalf("expected 9 ticks to close a 100mm gap at 12mm/tick, got %d", ticks)
	}
	if y != target {
		t.Fatalf("expected exact snap to target, got %v", y)
	}
}

func buildWOMState(windows []domain.Window, robots []*domain.Robot, welds []*domain.Weld, gantryX float64) (*domain.SimState, *domain.Plan) {
	plan := &domain.Plan{Mode: domain.ModeWOM, Windows: windows}
	state := &domain.SimState{
		Gantry: domain.Gantry{X: gantryX, Speed: 300, XLength: 6000},
		Robots: robots,
		Welds:  welds,
	}
	return state, plan
}

// TestScenario_S4_PriorityPreemption grounds scenario S4: zone s1
// priority [R1, R3]; R3 requests while R1 is welding; R3 waits, then
// transitions to WELDING the tick after R1 releases.
func TestScenario_S4_PriorityPreemption(t *testing.T) {
	zone := domain.Zone{Name: "s1", YLo: 900, YHi: 1100, Priority: []string{"R1", "R3"}}
	cm := collision.NewManager()
	cm.Register(zone)

	weldR1 := &domain.Weld{ID: 1, XStart: 0, XEnd: 120, Y: 1000, Side: domain.SideXPlus}
	weldR3 := &domain.Weld{ID: 2, XStart: 0, XEnd: 120, Y: 1000, Side: domain.SideXPlus}

	r1 := newRobot("R1", domain.SideXPlus, 900, 1100, 120)
	r1.CurrentY = 1000
	r3 := newRobot("R3", domain.SideXPlus, 900, 1100, 120)
	r3.CurrentY = 1000

	window := domain.Window{
		XStart: 0, XEnd: 120,
		Tasks: []domain.Task{
			{RobotID: "R1", Weld: weldR1, Y: 1000, XStart: 0, XEnd: 120},
			{RobotID: "R3", Weld: weldR3, Y: 1000, XStart: 0, XEnd: 120},
		},
	}

	state, plan := buildWOMState([]domain.Window{window}, []*domain.Robot{r1, r3}, []*domain.Weld{weldR1, weldR3}, 0)
	sim := NewSimulator(plan, state, cm, dt)

	sim.Step() // tick 1: both idle at target, R1 acquires (higher priority), R3 preempted into WAIT_MUTEX
	if r1.State != domain.StateWelding {
		t.Fatalf("expected R1 welding after tick 1, got %v", r1.State)
	}
	if r3.State != domain.StateWaitMutex {
		t.Fatalf("expected R3 in WAIT_MUTEX while R1 holds priority, got %v", r3.State)
	}

	// Run until R1's weld completes (120mm at 120mm/s = 1s = 10 ticks).
	for i := 0; i < 9; i++ {
		sim.Step()
	}
	if r1.State != domain.StateIdle {
		t.Fatalf("expected R1 idle after completing its weld, got %v", r1.State)
	}
	if cm.Owner("s1") != "" {
		t.Fatalf("expected zone released after R1 completes, owner=%q", cm.Owner("s1"))
	}

	sim.Step() // the tick R3 re-requests after release
	if r3.State != domain.StateWelding {
		t.Fatalf("expected R3 welding the tick after R1 releases, got %v", r3.State)
	}
}

// TestScenario_S6_PerRobotIndependentStart grounds scenario S6: robots
// that finish positioning early must start welding immediately, without
// waiting for a sibling robot still mid-positioning.
func TestScenario_S6_PerRobotIndependentStart(t *testing.T) {
	r1 := newRobot("R1", domain.SideXPlus, 0, 500, 120)
	r1.CurrentY = 90 // 10mm from target 100, closes in one tick
	r2 := newRobot("R2", domain.SideXMinus, 600, 1100, 120)
	r2.CurrentY = 790
	r4 := newRobot("R4", domain.SideXMinus, 2000, 2500, 120)
	r4.CurrentY = 2190
	r3 := newRobot("R3", domain.SideXPlus, 3000, 4500, 120)
	r3.CurrentY = 3000 // 1200mm from target 4200: many ticks to position

	weldR1 := &domain.Weld{ID: 1, XStart: 0, XEnd: 500, Y: 100, Side: domain.SideXPlus}
	weldR2 := &domain.Weld{ID: 2, XStart: 0, XEnd: 500, Y: 800, Side: domain.SideXMinus}
	weldR4 := &domain.Weld{ID: 4, XStart: 0, XEnd: 500, Y: 2200, Side: domain.SideXMinus}
	weldR3 := &domain.Weld{ID: 3, XStart: 0, XEnd: 500, Y: 4200, Side: domain.SideXPlus}

	window := domain.Window{
		XStart: 0, XEnd: 500,
		Tasks: []domain.Task{
			{RobotID: "R1", Weld: weldR1, Y: 100, XStart: 0, XEnd: 500},
			{RobotID: "R2", Weld: weldR2, Y: 800, XStart: 0, XEnd: 500},
			{RobotID: "R4", Weld: weldR4, Y: 2200, XStart: 0, XEnd: 500},
			{RobotID: "R3", Weld: weldR3, Y: 4200, XStart: 0, XEnd: 500},
		},
	}

	robots := []*domain.Robot{r1, r2, r4, r3}
	welds := []*domain.Weld{weldR1, weldR2, weldR4, weldR3}
	state, plan := buildWOMState([]domain.Window{window}, robots, welds, 0)
	cm := collision.NewManager()
	sim := NewSimulator(plan, state, cm, dt)

	sim.Step()

	if r1.State != domain.StateWelding {
		t.Fatalf("expected R1 welding after one tick, got %v", r1.State)
	}
	if r2.State != domain.StateWelding {
		t.Fatalf("expected R2 welding after one tick, got %v", r2.State)
	}
	if r4.State != domain.StateWelding {
		t.Fatalf("expected R4 welding after one tick, got %v", r4.State)
	}
	if r3.State != domain.StateMovingY {
		t.Fatalf("expected R3 still positioning (not blocking the others), got %v", r3.State)
	}
}

// TestProperty_ZoneMutualExclusion grounds spec §8 property 1: at most
// one owner per zone at every tick.
func TestProperty_ZoneMutualExclusion(t *testing.T) {
	zone := domain.Zone{Name: "s1", YLo: 900, YHi: 1100, Priority: []string{"R1", "R3"}}
	cm := collision.NewManager()
	cm.Register(zone)

	weldR1 := &domain.Weld{ID: 1, XStart: 0, XEnd: 120, Y: 1000, Side: domain.SideXPlus}
	weldR3 := &domain.Weld{ID: 2, XStart: 0, XEnd: 120, Y: 1000, Side: domain.SideXPlus}
	r1 := newRobot("R1", domain.SideXPlus, 900, 1100, 120)
	r1.CurrentY = 1000
	r3 := newRobot("R3", domain.SideXPlus, 900, 1100, 120)
	r3.CurrentY = 1000

	window := domain.Window{
		XStart: 0, XEnd: 120,
		Tasks: []domain.Task{
			{RobotID: "R1", Weld: weldR1, Y: 1000, XStart: 0, XEnd: 120},
			{RobotID: "R3", Weld: weldR3, Y: 1000, XStart: 0, XEnd: 120},
		},
	}
	state, plan := buildWOMState([]domain.Window{window}, []*domain.Robot{r1, r3}, []*domain.Weld{weldR1, weldR3}, 0)
	sim := NewSimulator(plan, state, cm, dt)

	for i := 0; i < 30 && !state.IsComplete; i++ {
		sim.Step()
		if r1.State == domain.StateWelding && r3.State == domain.StateWelding {
			t.Fatalf("both zone owners welding simultaneously at tick %d", i)
		}
	}
}

// TestProperty_WeldDoneMonotonicAndBounded grounds spec §8 property 2.
func TestProperty_WeldDoneMonotonicAndBounded(t *testing.T) {
	r1 := newRobot("R1", domain.SideXPlus, 0, 500, 120)
	r1.CurrentY = 100
	weld := &domain.Weld{ID: 1, XStart: 0, XEnd: 240, Y: 100, Side: domain.SideXPlus}
	window := domain.Window{
		XStart: 0, XEnd: 240,
		Tasks: []domain.Task{{RobotID: "R1", Weld: weld, Y: 100, XStart: 0, XEnd: 240}},
	}
	state, plan := buildWOMState([]domain.Window{window}, []*domain.Robot{r1}, []*domain.Weld{weld}, 0)
	cm := collision.NewManager()
	sim := NewSimulator(plan, state, cm, dt)

	prev := 0.0
	for i := 0; i < 30 && !state.IsComplete; i++ {
		sim.Step()
		if weld.Done < prev {
			t.Fatalf("weld.Done decreased: prev=%v now=%v", prev, weld.Done)
		}
		if weld.Done < 0 || weld.Done > weld.Length() {
			t.Fatalf("weld.Done out of bounds: %v (length %v)", weld.Done, weld.Length())
		}
		prev = weld.Done
	}
	if weld.Done != weld.Length() {
		t.Fatalf("expected weld fully complete, got done=%v length=%v", weld.Done, weld.Length())
	}
}

// TestProperty_WindowCompletion grounds spec §8 property 6: when a WOM
// window completes, every weld in it has done == length.
func TestProperty_WindowCompletion(t *testing.T) {
	r1 := newRobot("R1", domain.SideXPlus, 0, 500, 120)
	r1.CurrentY = 100
	r2 := newRobot("R2", domain.SideXMinus, 0, 500, 120)
	r2.CurrentY = 200
	weld1 := &domain.Weld{ID: 1, XStart: 0, XEnd: 120, Y: 100, Side: domain.SideXPlus}
	weld2 := &domain.Weld{ID: 2, XStart: 0, XEnd: 240, Y: 200, Side: domain.SideXMinus}
	window := domain.Window{
		XStart: 0, XEnd: 240,
		Tasks: []domain.Task{
			{RobotID: "R1", Weld: weld1, Y: 100, XStart: 0, XEnd: 120},
			{RobotID: "R2", Weld: weld2, Y: 200, XStart: 0, XEnd: 240},
		},
	}
	state, plan := buildWOMState([]domain.Window{window}, []*domain.Robot{r1, r2}, []*domain.Weld{weld1, weld2}, 0)
	cm := collision.NewManager()
	sim := NewSimulator(plan, state, cm, dt)

	for i := 0; i < 50 && state.WindowIndex == 0; i++ {
		sim.Step()
	}

	if state.WindowIndex != 1 {
		t.Fatalf("expected the window to have completed and advanced, windowIndex=%d", state.WindowIndex)
	}
	if !weld1.IsComplete() || !weld2.IsComplete() {
		t.Fatalf("expected both welds complete at window boundary: weld1.done=%v weld2.done=%v", weld1.Done, weld2.Done)
	}
}
