// Package saw implements the stop-and-weld strategy from spec §4.4:
// discrete gantry stops at which robots traverse Y to reach scattered,
// short welds that aren't worth a continuous sweep.
package saw

import (
	"math"
	"sort"

	"github.com/weldcore/gantry-weld-core/internal/config"
	"github.com/weldcore/gantry-weld-core/internal/domain"
)

// Plan computes gantry stops for welds, assigns each weld to one or
// more stops by X-reachability, then assigns robots to each stop's
// welds greedily by Y-distance and running load.
func Plan(welds []*domain.Weld, robots []*domain.Robot, opts config.Options) ([]domain.Stop, error) {
	if len(welds) == 0 {
		return nil, nil
	}

	if err := domain.CheckReachability(welds, robots, opts.Reach); err != nil {
		return nil, err
	}

	xs := stops(welds, opts.SAWMaxStopSpacing)
	result := make([]domain.Stop, len(xs))
	for i, x := range xs {
		result[i] = domain.Stop{X: x}
	}

	for _, w := range welds {
		if err := assignWeldToStops(w, result, opts.SAWStopReach); err != nil {
			return nil, err
		}
	}

	for i := range result {
		assignRobotsToStop(&result[i], robots, opts.Reach)
	}

	return result, nil
}

// stops implements spec §4.4's stop-computation formula.
func stops(welds []*domain.Weld, maxSpacing float64) []float64 {
	xLo, xHi := math.Inf(1), math.Inf(-1)
	for _, w := range welds {
		if w.XStart < xLo {
			xLo = w.XStart
		}
		if w.XEnd > xHi {
			xHi = w.XEnd
		}
	}

	span := xHi - xLo
	if span <= maxSpacing {
		return []float64{(xLo + xHi) / 2}
	}

	n := int(math.Ceil(span / maxSpacing))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = xLo + (float64(i)+0.5)*span/float64(n)
	}
	return out
}

// assignWeldToStops picks the nearest stop within reach of the weld's
// X-center. When no single stop is close enough to the center — a weld
// spanning multiple stop spacings — it instead assigns one task per
// consecutive stop whose reach window overlaps the weld, each task
// carrying only the locally reachable X portion (two passes on the
// same weld entity, per spec §9's resolution; no re-cut fragment).
func assignWeldToStops(w *domain.Weld, result []domain.Stop, reach float64) error {
	center := (w.XStart + w.XEnd) / 2

	bestIdx := -1
	bestDist := math.Inf(1)
	for i := range result {
		d := math.Abs(result[i].X - center)
		if d <= reach && d < bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	if bestIdx >= 0 {
		result[bestIdx].Tasks = append(result[bestIdx].Tasks, domain.Task{Weld: w, Y: w.Y, XStart: w.XStart, XEnd: w.XEnd})
		return nil
	}

	found := false
	for i := range result {
		lo, hi := result[i].X-reach, result[i].X+reach
		ovLo, ovHi := math.Max(lo, w.XStart), math.Min(hi, w.XEnd)
		if ovLo >= ovHi {
			continue
		}
		result[i].Tasks = append(result[i].Tasks, domain.Task{Weld: w, Y: w.Y, XStart: ovLo, XEnd: ovHi})
		found = true
	}
	if !found {
		return domain.NewUnreachableWeldError(w.ID, "weld x-span falls outside reach of every stop")
	}
	return nil
}

// assignRobotsToStop implements the greedy per-stop robot assignment:
// sort tasks by Y, then for each pick the cheapest reachable candidate
// on the correct side, minimizing |Δy| + 10*load, where load is the
// number of tasks already given to that robot at this stop.
func assignRobotsToStop(stop *domain.Stop, robots []*domain.Robot, reach float64) {
	sort.Slice(stop.Tasks, func(i, j int) bool { return stop.Tasks[i].Y < stop.Tasks[j].Y })

	load := make(map[string]float64)
	for i := range stop.Tasks {
		t := &stop.Tasks[i]
		var best *domain.Robot
		bestCost := math.Inf(1)
		for _, r := range robots {
			if r.Side != t.Weld.Side || !r.CanReach(t.Y, reach) {
				continue
			}
			cost := math.Abs(t.Y-r.CurrentY) + 10*load[r.ID]
			if cost < bestCost {
				bestCost = cost
				best = r
			}
		}
		if best == nil {
			continue // unreachable at this stop; caller already validated overall reachability
		}
		t.RobotID = best.ID
		load[best.ID]++
	}
}
