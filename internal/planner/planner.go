// Package planner dispatches to the WOM and SAW strategies and
// concatenates their output into a single ordered Plan, per spec §4.5.
package planner

import (
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/weldcore/gantry-weld-core/internal/config"
	"github.com/weldcore/gantry-weld-core/internal/domain"
	"github.com/weldcore/gantry-weld-core/internal/planner/saw"
	"github.com/weldcore/gantry-weld-core/internal/planner/wom"
)

// Planner holds the logger injected at construction; Plan is also
// exposed as a package-level convenience for callers that don't need
// to configure logging.
type Planner struct {
	logger *zap.Logger
}

// NewPlanner builds a Planner. A nil logger is replaced with zap.NewNop().
func NewPlanner(logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{logger: logger}
}

// Plan is the package-level entrypoint named in spec §6; it delegates
// to a Planner built with a no-op logger.
func Plan(welds []domain.Weld, robots []domain.Robot, scene domain.Scene, mode domain.Mode, opts config.Options) (*domain.Plan, error) {
	return NewPlanner(nil).Plan(welds, robots, scene, mode, opts)
}

// Plan classifies welds, runs the strategies mode selects, and
// concatenates the result: WOM windows first, SAW stops second.
func (p *Planner) Plan(welds []domain.Weld, robots []domain.Robot, scene domain.Scene, mode domain.Mode, opts config.Options) (*domain.Plan, error) {
	normalized := make([]domain.Weld, len(welds))
	for i, w := range welds {
		w.Normalize()
		normalized[i] = w
	}

	report := domain.ValidateScene(normalized, robots, scene)
	if !report.Valid {
		first := report.Errors[0]
		if first.Code == "SCENE_001" || first.Code == "SCENE_002" {
			return nil, domain.NewEmptySceneError(first.Message)
		}
		return nil, domain.NewInvalidGeometryError(first.WeldID, first.Message)
	}

	arena := make([]*domain.Weld, len(normalized))
	for i := range normalized {
		w := normalized[i]
		arena[i] = &w
	}
	robotPtrs := make([]*domain.Robot, len(robots))
	for i := range robots {
		r := robots[i]
		robotPtrs[i] = &r
	}

	var womWelds, sawWelds []*domain.Weld
	switch mode {
	case domain.ModeWOM:
		for _, w := range arena {
			if w.Length() >= opts.WOMMinLength {
				womWelds = append(womWelds, w)
			} else {
				return nil, domain.NewUnreachableWeldError(w.ID, "weld is shorter than the WOM minimum length and this plan has no SAW fallback")
			}
		}
	case domain.ModeSAW:
		sawWelds = arena
	case domain.ModeHybrid:
		for _, w := range arena {
			if w.Length() >= opts.WOMMinLength {
				womWelds = append(womWelds, w)
			} else {
				sawWelds = append(sawWelds, w)
			}
		}
	default:
		return nil, domain.NewInvalidGeometryError(0, "unknown planning mode: "+string(mode))
	}

	var windows []domain.Window
	if len(womWelds) > 0 {
		var rerouted []*domain.Weld
		var err error
		windows, rerouted, err = wom.Plan(womWelds, robotPtrs, scene, opts)
		if err != nil {
			return nil, err
		}
		if len(rerouted) > 0 {
			if mode != domain.ModeHybrid {
				return nil, domain.NewUnreachableWeldError(rerouted[0].ID, "weld exceeds reach of every WOM candidate and this plan has no SAW fallback")
			}
			sawWelds = append(sawWelds, rerouted...)
			p.logger.Warn("welds rerouted from WOM to SAW", zap.Int("count", len(rerouted)))
		}
	}

	var stops []domain.Stop
	if len(sawWelds) > 0 {
		var err error
		stops, err = saw.Plan(sawWelds, robotPtrs, opts)
		if err != nil {
			return nil, err
		}
	}

	p.logger.Info("plan computed",
		zap.String("mode", string(mode)),
		zap.Int("windows", len(windows)),
		zap.Int("stops", len(stops)))

	plan := &domain.Plan{
		ID:      uuid.New(),
		Mode:    mode,
		Windows: windows,
		Stops:   stops,
	}
	plan.OptimalGantryStartX = startX(plan)
	return plan, nil
}

func startX(plan *domain.Plan) float64 {
	switch {
	case len(plan.Windows) > 0:
		return plan.Windows[0].XStart
	case len(plan.Stops) > 0:
		return plan.Stops[0].X
	default:
		return math.NaN()
	}
}
