// Package splitter implements the zone work-splitter from spec §4.2:
// when a shared zone's two owners carry disproportionate load, cut a
// weld assigned to the heavier owner in-place to rebalance.
package splitter

import "github.com/weldcore/gantry-weld-core/internal/domain"

const (
	imbalanceThreshold = 0.20
	minFragment        = 100.0
	minSplittable      = 200.0 // length ≥ 200 so both halves clear minFragment
)

// Assignment is the splitter's view of a weld-to-robot commitment: it
// only needs the weld and which robot currently owns it. A robot's load
// is summed over all of its assignments across the whole window (not
// just the zone band) to compute load imbalance.
type Assignment struct {
	Weld    *domain.Weld
	RobotID string
}

// Balance inspects every zone's two owners and, where imbalance
// exceeds the threshold, splits one weld from the heavier owner to
// shift load toward the lighter one. assignments is mutated in place:
// a split weld is replaced by two fragments carrying parent_id back to
// the original. robotCenter supplies each robot's workspace center,
// used only for the tie-break described in spec §4.2.
func Balance(assignments []Assignment, zones []domain.Zone, robotCenter map[string]float64) []Assignment {
	for _, z := range zones {
		assignments = balanceZone(assignments, z, robotCenter)
	}
	return assignments
}

func balanceZone(assignments []Assignment, z domain.Zone, robotCenter map[string]float64) []Assignment {
	owners := zoneOwners(assignments, z)
	if len(owners) != 2 {
		return assignments // not a true contention: zero or one owner touches this band
	}

	a, b := owners[0], owners[1]
	loadA := totalLoad(assignments, a)
	loadB := totalLoad(assignments, b)
	if loadA == 0 || loadB == 0 {
		return assignments
	}

	maxLoad := loadA
	if loadB > maxLoad {
		maxLoad = loadB
	}
	if abs(loadA-loadB)/maxLoad <= imbalanceThreshold {
		return assignments
	}

	heavier, lighter := a, b
	heavierLoad, lighterLoad := loadA, loadB
	if loadB > loadA {
		heavier, lighter = b, a
		heavierLoad, lighterLoad = loadB, loadA
	}

	idx := pickSplitCandidate(assignments, heavier, z)
	if idx < 0 {
		return assignments // no weld in the heavier owner's zone share is big enough to split
	}

	target := assignments[idx]
	w := target.Weld

	total := heavierLoad + lighterLoad
	targetHeavier := total / 2
	heavierPortion := heavierLoad - targetHeavier
	splitFraction := clamp(heavierPortion/w.Length(), 0, 1)
	splitX := w.XStart + w.Length()*splitFraction

	lo := w.XStart + minFragment
	hi := w.XEnd - minFragment
	if splitX < lo {
		splitX = lo
	}
	if splitX > hi {
		splitX = hi
	}

	// Tie-break: when the split would fall exactly at the midpoint,
	// keep the segment nearest the heavier owner's workspace center.
	if splitFraction == 0.5 {
		mid := (w.XStart + w.XEnd) / 2
		center := robotCenter[heavier]
		if center < mid {
			splitX = lo
		} else {
			splitX = hi
		}
	}

	parentID := w.ID
	near := &domain.Weld{ID: nextFragmentID(assignments), XStart: w.XStart, XEnd: splitX, Y: w.Y, Side: w.Side, ParentID: &parentID}
	far := &domain.Weld{ID: nextFragmentID(assignments) + 1, XStart: splitX, XEnd: w.XEnd, Y: w.Y, Side: w.Side, ParentID: &parentID}

	out := make([]Assignment, 0, len(assignments)+1)
	for i, asg := range assignments {
		if i != idx {
			out = append(out, asg)
			continue
		}
		out = append(out, Assignment{Weld: near, RobotID: lighter})
		out = append(out, Assignment{Weld: far, RobotID: heavier})
	}
	return out
}

func zoneOwners(assignments []Assignment, z domain.Zone) []string {
	seen := make(map[string]bool)
	var owners []string
	for _, a := range assignments {
		if !z.ContainsY(a.Weld.Y) {
			continue
		}
		if !seen[a.RobotID] {
			seen[a.RobotID] = true
			owners = append(owners, a.RobotID)
		}
	}
	return owners
}

func totalLoad(assignments []Assignment, robotID string) float64 {
	var total float64
	for _, a := range assignments {
		if a.RobotID == robotID {
			total += a.Weld.Length()
		}
	}
	return total
}

// pickSplitCandidate finds a weld assigned to robotID, inside the zone
// band, long enough to split while keeping both fragments ≥ minFragment.
func pickSplitCandidate(assignments []Assignment, robotID string, z domain.Zone) int {
	best := -1
	var bestLength float64
	for i, a := range assignments {
		if a.RobotID != robotID || !z.ContainsY(a.Weld.Y) {
			continue
		}
		if a.Weld.Length() < minSplittable {
			continue
		}
		if a.Weld.Length() > bestLength {
			best = i
			bestLength = a.Weld.Length()
		}
	}
	return best
}

func nextFragmentID(assignments []Assignment) int {
	max := 0
	for _, a := range assignments {
		if a.Weld.ID > max {
			max = a.Weld.ID
		}
	}
	return max + 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
