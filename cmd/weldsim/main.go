package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/weldcore/gantry-weld-core/internal/collision"
	"github.com/weldcore/gantry-weld-core/internal/config"
	"github.com/weldcore/gantry-weld-core/internal/domain"
	"github.com/weldcore/gantry-weld-core/internal/planner"
	"github.com/weldcore/gantry-weld-core/internal/simulator"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("WELD_CONFIG"), "WELD")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}
	logger.Info("Config loaded successfully")

	scene, welds, robots := demoScene()

	p := planner.NewPlanner(logger)
	plan, err := p.Plan(welds, robots, scene, domain.ModeWOM, cfg)
	if err != nil {
		logger.Fatal("Failed to build plan", zap.Error(err))
	}
	logger.Info("Plan computed",
		zap.String("plan_id", plan.ID.String()),
		zap.Int("windows", len(plan.Windows)),
		zap.Float64("optimal_gantry_start_x", plan.OptimalGantryStartX))

	state := buildSimState(scene, plan, robots)

	cm := collision.NewManager()
	for _, z := range scene.Zones {
		cm.Register(z)
	}

	sim := simulator.NewSimulator(plan, state, cm, cfg.SimDT)
	sim.SetLogger(logger)
	sim.SetStallTicks(cfg.StallTicks)

	runner := simulator.NewRunner(sim, logger, 0)
	sub := runner.Subscribe()
	defer runner.Unsubscribe(sub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.Start(ctx)
	logger.Info("Simulation started")

	go func() {
		for outcome := range sub {
			if len(outcome.Warnings) > 0 {
				logger.Warn("simulation warnings", zap.Strings("warnings", outcome.Warnings))
			}
			if outcome.IsComplete {
				return
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	runner.Stop()

	fmt.Printf("final robot state:\n")
	for _, r := range state.Robots {
		fmt.Printf("  robot %s: state=%s welds_completed=%d current_y=%.1f\n",
			r.ID, r.State, r.WeldsCompleted, r.CurrentY)
	}

	logger.Info("Weld simulation stopped successfully")
}

// demoScene builds a small scenario loosely shaped like spec §8's S1:
// four robots on alternating sides, three welds inside a robot's
// nominal band and one (weld 4) in the gap just below R4's band.
func demoScene() (domain.Scene, []domain.Weld, []domain.Robot) {
	scene := domain.Scene{
		GantryXLength: 6000,
		GantrySpeed:   300,
		Reach:         2000,
		SafeDistance:  150,
		Zones: []domain.Zone{
			{Name: "z1", YLo: 950, YHi: 1050, Priority: []string{"R1", "R2"}},
		},
	}

	welds := []domain.Weld{
		{ID: 1, XStart: 0, XEnd: 600, Y: 300, Side: domain.SideXPlus},
		{ID: 2, XStart: 0, XEnd: 600, Y: 700, Side: domain.SideXMinus},
		{ID: 3, XStart: 400, XEnd: 900, Y: 1300, Side: domain.SideXPlus},
		{ID: 4, XStart: 400, XEnd: 900, Y: 1700, Side: domain.SideXMinus},
	}

	robots := []domain.Robot{
		{ID: "R1", Side: domain.SideXPlus, YRange: [2]float64{0, 500}, TCPSpeed: 120, State: domain.StateIdle, CurrentY: 0},
		{ID: "R2", Side: domain.SideXMinus, YRange: [2]float64{600, 1100}, TCPSpeed: 120, State: domain.StateIdle, CurrentY: 600},
		{ID: "R3", Side: domain.SideXPlus, YRange: [2]float64{1200, 1700}, TCPSpeed: 120, State: domain.StateIdle, CurrentY: 1200},
		{ID: "R4", Side: domain.SideXMinus, YRange: [2]float64{1800, 2300}, TCPSpeed: 120, State: domain.StateIdle, CurrentY: 1800},
	}

	return scene, welds, robots
}

// buildSimState assembles the mutable run state around plan. Task.Weld
// pointers are the planner's own arena, so the weld arena here is
// collected from the plan itself rather than rebuilt from the
// original weld list, keeping every Done update visible through both
// the tasks and SimState.Welds.
func buildSimState(scene domain.Scene, plan *domain.Plan, robots []domain.Robot) *domain.SimState {
	robotArena := make([]*domain.Robot, len(robots))
	for i := range robots {
		r := robots[i]
		robotArena[i] = &r
	}
	return &domain.SimState{
		Gantry: domain.Gantry{X: plan.OptimalGantryStartX, Speed: scene.GantrySpeed, XLength: scene.GantryXLength},
		Robots: robotArena,
		Welds:  weldArenaFromPlan(plan),
	}
}

func weldArenaFromPlan(plan *domain.Plan) []*domain.Weld {
	seen := make(map[*domain.Weld]bool)
	var arena []*domain.Weld
	collect := func(tasks []domain.Task) {
		for _, t := range tasks {
			if !seen[t.Weld] {
				seen[t.Weld] = true
				arena = append(arena, t.Weld)
			}
		}
	}
	for _, w := range plan.Windows {
		collect(w.Tasks)
	}
	for _, s := range plan.Stops {
		collect(s.Tasks)
	}
	return arena
}
