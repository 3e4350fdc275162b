// Package wom implements the weld-on-move strategy from spec §4.3:
// continuous-sweep windows where the gantry moves in X while robots
// hold a fixed Y and weld.
package wom

import (
	"math"
	"sort"

	"github.com/weldcore/gantry-weld-core/internal/config"
	"github.com/weldcore/gantry-weld-core/internal/domain"
	"github.com/weldcore/gantry-weld-core/internal/splitter"
)

const carriageOffsetXPlus = 300.0
const carriageOffsetXMinus = -300.0

// Plan turns a set of WOM-eligible welds into an ordered list of
// windows. Welds it cannot fit within reach of any candidate robot are
// returned in rerouted for the master planner to hand to SAW instead.
// Welds reachable by no robot at all on their side produce a
// PlanningError — that is a scene defect, not a scheduling choice.
func Plan(welds []*domain.Weld, robots []*domain.Robot, scene domain.Scene, opts config.Options) (windows []domain.Window, rerouted []*domain.Weld, err error) {
	if err := domain.CheckReachability(welds, robots, scene.Reach); err != nil {
		return nil, nil, err
	}

	groups := groupByProximity(welds, opts.WOMMaxGap, scene.Reach)

	load := make(map[string]float64)
	for _, r := range robots {
		load[r.ID] = 0
	}

	for _, g := range groups {
		win, leftover := assignGroup(g, robots, scene, load)
		rerouted = append(rerouted, leftover...)
		if len(win.Tasks) == 0 {
			continue
		}
		resolveZones(&win, scene.Zones, robots, scene.Reach, opts.SafeDistance)
		windows = append(windows, win)
	}

	if len(windows) > 0 {
		windows[0].XStart = computeStart(windows[0], robots, scene.Reach, opts.CarriageOffsetXPlus, opts.CarriageOffsetXMinus)
	}

	return windows, rerouted, nil
}

type group struct {
	welds []*domain.Weld
	xMin  float64
	xMax  float64
}

// groupByProximity implements spec §4.3's group_by_proximity: sort by
// x_start, then include a weld in the open group iff its gap to the
// group's current x_max is within max_gap or within reach.
func groupByProximity(welds []*domain.Weld, maxGap, reach float64) []group {
	if len(welds) == 0 {
		return nil
	}
	sorted := make([]*domain.Weld, len(welds))
	copy(sorted, welds)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].XStart < sorted[j].XStart })

	var groups []group
	cur := group{welds: []*domain.Weld{sorted[0]}, xMin: sorted[0].XStart, xMax: sorted[0].XEnd}

	for _, w := range sorted[1:] {
		gap := w.XStart - cur.xMax
		if gap <= maxGap || gap <= reach {
			cur.welds = append(cur.welds, w)
			if w.XEnd > cur.xMax {
				cur.xMax = w.XEnd
			}
			continue
		}
		groups = append(groups, cur)
		cur = group{welds: []*domain.Weld{w}, xMin: w.XStart, xMax: w.XEnd}
	}
	groups = append(groups, cur)
	return groups
}

// assignGroup assigns every weld in g to exactly one robot per spec
// §4.3's robot-assignment rules, computes each assigned robot's
// optimal Y, and returns the resulting window plus any welds that
// exceed reach of every candidate on their side (rerouted to SAW).
func assignGroup(g group, robots []*domain.Robot, scene domain.Scene, load map[string]float64) (domain.Window, []*domain.Weld) {
	win := domain.Window{XStart: g.xMin, XEnd: g.xMax}
	var rerouted []*domain.Weld

	assigned := make(map[string][]*domain.Weld)

	for _, w := range g.welds {
		candidates := sideRobots(robots, w.Side)

		var nominal []*domain.Robot
		for _, r := range candidates {
			if r.InNominalRange(w.Y) {
				nominal = append(nominal, r)
			}
		}

		var chosen *domain.Robot
		if len(nominal) > 0 {
			chosen = closestByCenter(nominal, w.Y, load)
		} else {
			var upper, lower []*domain.Robot
			for _, r := range candidates {
				if math.Abs(w.Y-r.WorkspaceCenter()) > scene.Reach {
					continue
				}
				if r.YRange[0] > w.Y {
					upper = append(upper, r)
				} else if r.YRange[1] < w.Y {
					lower = append(lower, r)
				}
			}
			switch {
			case len(upper) > 0:
				chosen = lowestLoad(upper, load)
			case len(lower) > 0:
				chosen = lowestLoad(lower, load)
			default:
				rerouted = append(rerouted, w)
				continue
			}
		}

		assigned[chosen.ID] = append(assigned[chosen.ID], w)
		load[chosen.ID] += w.Length()
	}

	robotCenter := make(map[string]float64)
	for robotID, ws := range assigned {
		y := optimalY(ws)
		r := robotByID(robots, robotID)
		robotCenter[robotID] = r.WorkspaceCenter()
		for _, w := range ws {
			win.Tasks = append(win.Tasks, domain.Task{RobotID: robotID, Weld: w, Y: y, XStart: w.XStart, XEnd: w.XEnd})
		}
	}
	setWindowYs(&win, assigned)

	return win, rerouted
}

func sideRobots(robots []*domain.Robot, side domain.Side) []*domain.Robot {
	var out []*domain.Robot
	for _, r := range robots {
		if r.Side == side {
			out = append(out, r)
		}
	}
	return out
}

func closestByCenter(candidates []*domain.Robot, y float64, load map[string]float64) *domain.Robot {
	best := candidates[0]
	bestDist := math.Abs(y - best.WorkspaceCenter())
	for _, r := range candidates[1:] {
		d := math.Abs(y - r.WorkspaceCenter())
		if d < bestDist || (d == bestDist && load[r.ID] < load[best.ID]) {
			best = r
			bestDist = d
		}
	}
	return best
}

// lowestLoad picks the candidate with the smallest current load,
// ties broken by id order for determinism.
func lowestLoad(candidates []*domain.Robot, load map[string]float64) *domain.Robot {
	best := candidates[0]
	for _, r := range candidates[1:] {
		if load[r.ID] < load[best.ID] || (load[r.ID] == load[best.ID] && r.ID < best.ID) {
			best = r
		}
	}
	return best
}

func robotByID(robots []*domain.Robot, id string) *domain.Robot {
	for _, r := range robots {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// optimalY is the length-weighted mean of assigned weld Ys; it is
// deliberately not clamped to the robot's nominal range (spec §4.3).
func optimalY(welds []*domain.Weld) float64 {
	var num, den float64
	for _, w := range welds {
		num += w.Length() * w.Y
		den += w.Length()
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func setWindowYs(win *domain.Window, assigned map[string][]*domain.Weld) {
	ys := make(map[string]float64, len(assigned))
	for robotID, ws := range assigned {
		ys[robotID] = optimalY(ws)
	}
	for i := range win.Tasks {
		win.Tasks[i].Y = ys[win.Tasks[i].RobotID]
	}
}

// resolveZones applies the work-splitter to the window's assignments,
// recomputes affected robots' optimal Y, then nudges robots apart
// inside contended zones when they sit closer than safeDistance.
func resolveZones(win *domain.Window, zones []domain.Zone, robots []*domain.Robot, reach, safeDistance float64) {
	assignments := make([]splitter.Assignment, len(win.Tasks))
	for i, t := range win.Tasks {
		assignments[i] = splitter.Assignment{Weld: t.Weld, RobotID: t.RobotID}
	}

	centers := make(map[string]float64)
	for _, r := range robots {
		centers[r.ID] = r.WorkspaceCenter()
	}

	assignments = splitter.Balance(assignments, zones, centers)

	grouped := make(map[string][]*domain.Weld)
	for _, a := range assignments {
		grouped[a.RobotID] = append(grouped[a.RobotID], a.Weld)
	}

	win.Tasks = win.Tasks[:0]
	ys := make(map[string]float64, len(grouped))
	for robotID, ws := range grouped {
		ys[robotID] = optimalY(ws)
		for _, w := range ws {
			win.Tasks = append(win.Tasks, domain.Task{RobotID: robotID, Weld: w, Y: ys[robotID], XStart: w.XStart, XEnd: w.XEnd})
		}
	}

	for _, z := range zones {
		nudgeApart(win, z, ys, robots, reach, safeDistance)
	}
}

// nudgeApart moves the two zone owners' Y targets apart symmetrically
// when they would sit closer than safeDistance, subject to reach.
func nudgeApart(win *domain.Window, z domain.Zone, ys map[string]float64, robots []*domain.Robot, reach, safeDistance float64) {
	if len(z.Priority) < 2 {
		return
	}
	a, b := z.Priority[0], z.Priority[1]
	ya, okA := ys[a]
	yb, okB := ys[b]
	if !okA || !okB || !z.ContainsY(ya) || !z.ContainsY(yb) {
		return
	}
	upper, lower := a, b
	yu, yl := ya, yb
	if yb > ya {
		upper, lower = b, a
		yu, yl = yb, ya
	}
	dist := yu - yl
	if dist >= safeDistance {
		return
	}
	delta := (safeDistance - dist) / 2

	ru := robotByID(robots, upper)
	rl := robotByID(robots, lower)
	if ru == nil || rl == nil {
		return
	}
	newYu := yu + delta
	newYl := yl - delta
	if math.Abs(newYu-ru.WorkspaceCenter()) > reach || math.Abs(newYl-rl.WorkspaceCenter()) > reach {
		return // not feasible; the runtime mutex will arbitrate instead
	}

	for i := range win.Tasks {
		switch win.Tasks[i].RobotID {
		case upper:
			win.Tasks[i].Y = newYu
		case lower:
			win.Tasks[i].Y = newYl
		}
	}
}

// computeStart implements spec §4.3's optimal gantry start: the
// minimum gantry X such that every active robot's first weld start is
// within reach of its carriage position.
func computeStart(win domain.Window, robots []*domain.Robot, reach, offsetXPlus, offsetXMinus float64) float64 {
	firstStart := make(map[string]float64)
	for _, t := range win.Tasks {
		cur, ok := firstStart[t.RobotID]
		if !ok || t.XStart < cur {
			firstStart[t.RobotID] = t.XStart
		}
	}
	if len(firstStart) == 0 {
		return win.XStart
	}

	maxMin := math.Inf(-1)
	minStart := math.Inf(1)
	for robotID, fwStart := range firstStart {
		if fwStart < minStart {
			minStart = fwStart
		}
		r := robotByID(robots, robotID)
		offset := domain.CarriageOffset(r.Side, offsetXPlus, offsetXMinus)
		gantryMin := fwStart - reach - offset
		if gantryMin > maxMin {
			maxMin = gantryMin
		}
	}

	start := math.Max(maxMin, minStart)
	return math.Max(start, 0)
}
