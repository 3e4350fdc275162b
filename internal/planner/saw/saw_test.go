package saw

import (
	"math"
	"testing"

	"github.com/weldcore/gantry-weld-core/internal/config"
	"github.com/weldcore/gantry-weld-core/internal/domain"
)

// TestStops_S5_StopSpacing grounds scenario S5: weld centers at
// {500, 1500, 3500, 5500}, x_lo=300, x_hi=5700.
func TestStops_S5_StopSpacing(t *testing.T) {
	welds := []*domain.Weld{
		{ID: 1, XStart: 300, XEnd: 700, Y: 100},   // center 500
		{ID: 2, XStart: 1300, XEnd: 1700, Y: 200}, // center 1500
		{ID: 3, XStart: 3300, XEnd: 3700, Y: 300}, // center 3500
		{ID: 4, XStart: 5300, XEnd: 5700, Y: 400}, // center 5500
	}

	got := stops(welds, 500)
	span := 5700.0 - 300.0
	n := int(math.Ceil(span / 500))
	if n != 11 {
		t.Fatalf("expected n=11, got %d", n)
	}
	if len(got) != 11 {
		t.Fatalf("expected 11 stops, got %d", len(got))
	}

	for i := 0; i < 11; i++ {
		want := 300 + (float64(i)+0.5)*span/float64(n)
		if math.Abs(got[i]-want) > 1e-9 {
			t.Fatalf("stop %d: expected %v, got %v", i, want, got[i])
		}
	}
}

func TestStops_SingleStopWhenSpanSmall(t *testing.T) {
	welds := []*domain.Weld{
		{ID: 1, XStart: 0, XEnd: 100},
		{ID: 2, XStart: 300, XEnd: 400},
	}
	got := stops(welds, 500)
	if len(got) != 1 {
		t.Fatalf("expected a single stop for a span <= max spacing, got %d", len(got))
	}
	if got[0] != 200 {
		t.Fatalf("expected midpoint stop at 200, got %v", got[0])
	}
}

func TestPlan_AssignsWeldToNearestStop(t *testing.T) {
	robots := []*domain.Robot{
		{ID: "R1", Side: domain.SideXPlus, YRange: [2]float64{0, 1000}, TCPSpeed: 120},
	}
	welds := []*domain.Weld{
		{ID: 1, XStart: 950, XEnd: 1050, Y: 500, Side: domain.SideXPlus},
	}
	opts := config.Defaults()

	result, err := Plan(welds, robots, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected a single stop, got %d", len(result))
	}
	if len(result[0].Tasks) != 1 {
		t.Fatalf("expected one task at the stop, got %d", len(result[0].Tasks))
	}
	if result[0].Tasks[0].RobotID != "R1" {
		t.Fatalf("expected R1 assigned, got %q", result[0].Tasks[0].RobotID)
	}
}

// TestPlan_RejectsWeldOutsideEveryRobotsReach covers a scene no
// reachability check ran against previously: a SAW-only weld whose Y
// sits beyond reach of every same-side robot must produce an
// UnreachableWeldError rather than a silently unassigned task.
func TestPlan_RejectsWeldOutsideEveryRobotsReach(t *testing.T) {
	robots := []*domain.Robot{
		{ID: "R1", Side: domain.SideXPlus, YRange: [2]float64{0, 1000}, TCPSpeed: 120},
	}
	welds := []*domain.Weld{
		{ID: 1, XStart: 950, XEnd: 1050, Y: 5000, Side: domain.SideXPlus},
	}
	opts := config.Defaults()

	_, err := Plan(welds, robots, opts)
	if err == nil {
		t.Fatalf("expected an unreachable-weld planning error")
	}
	pe, ok := err.(*domain.PlanningError)
	if !ok {
		t.Fatalf("expected *domain.PlanningError, got %T", err)
	}
	if pe.Kind != domain.ErrUnreachableWeld {
		t.Fatalf("expected ErrUnreachableWeld, got %v", pe.Kind)
	}
}

func TestAssignRobotsToStop_GreedyByLoadAndDistance(t *testing.T) {
	robots := []*domain.Robot{
		{ID: "R1", Side: domain.SideXPlus, YRange: [2]float64{0, 2000}, TCPSpeed: 120, CurrentY: 0},
		{ID: "R3", Side: domain.SideXPlus, YRange: [2]float64{0, 2000}, TCPSpeed: 120, CurrentY: 1000},
	}
	stop := domain.Stop{
		X: 0,
		Tasks: []domain.Task{
			{Weld: &domain.Weld{ID: 1, Side: domain.SideXPlus}, Y: 10},
			{Weld: &domain.Weld{ID: 2, Side: domain.SideXPlus}, Y: 20},
			{Weld: &domain.Weld{ID: 3, Side: domain.SideXPlus}, Y: 990},
		},
	}
	assignRobotsToStop(&stop, robots, 2000)

	if stop.Tasks[0].RobotID != "R1" || stop.Tasks[1].RobotID != "R1" {
		t.Fatalf("expected the two near-zero welds to go to R1 (closer, then cheaper after one load unit)")
	}
	if stop.Tasks[2].RobotID != "R3" {
		t.Fatalf("expected the y=990 weld assigned to R3 (closer to R3's current y)")
	}
}
