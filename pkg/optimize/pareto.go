// Pareto dominance ranking and elite selection
package optimize

import "sort"

// TieBreak selects the rule applied between Pareto-equivalent individuals.
// Dominance always ranks first; the tie-break only orders individuals inside
// one front.
type TieBreak string

const (
	// TieBreakWeightedSum orders a front by the weighted sum of the fitness
	// vector, descending. This is the default.
	TieBreakWeightedSum TieBreak = "weighted_sum"

	// TieBreakInsertionOrder keeps the population order inside a front
	TieBreakInsertionOrder TieBreak = "insertion_order"
)

// Dominates reports whether fitness vector a Pareto-dominates b: at least as
// good on every objective and strictly better on at least one. All
// objectives are oriented bigger-is-better.
func Dominates(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}

	better := false
	for i := range a {
		if a[i] < b[i] {
			return false
		}
		if a[i] > b[i] {
			better = true
		}
	}
	return better
}

// ParetoFronts partitions the records into successive non-dominated fronts:
// front 0 is dominated by nobody, front 1 only by front 0, and so on.
// Sentinel (invalid) records always land behind every valid record.
func ParetoFronts(stats []IndividualStats) [][]int {
	n := len(stats)
	dominatedBy := make([]int, n)     // how many still-unassigned records dominate i
	dominatesList := make([][]int, n) // records i dominates

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if dominates(stats[i], stats[j]) {
				dominatesList[i] = append(dominatesList[i], j)
			} else if dominates(stats[j], stats[i]) {
				dominatedBy[i]++
			}
		}
	}

	var fronts [][]int
	var current []int
	for i := 0; i < n; i++ {
		if dominatedBy[i] == 0 {
			current = append(current, i)
		}
	}

	for len(current) > 0 {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			for _, j := range dominatesList[i] {
				dominatedBy[j]--
				if dominatedBy[j] == 0 {
					next = append(next, j)
				}
			}
		}
		current = next
	}

	return fronts
}

// dominates extends fitness dominance with validity: any valid record
// dominates any sentinel, and sentinels never dominate.
func dominates(a, b IndividualStats) bool {
	if !a.Valid {
		return false
	}
	if !b.Valid {
		return true
	}
	return Dominates(a.Fitness, b.Fitness)
}

// SelectElite carves the top-n elite front out of an evaluated generation:
// whole Pareto fronts are taken in order, and the front that straddles the
// cut is ordered by the configured tie-break before truncation. The returned
// slice is ordered best-first.
func SelectElite(stats []IndividualStats, n int, objectives []ObjectiveSpec, tieBreak TieBreak) []IndividualStats {
	if n <= 0 || len(stats) == 0 {
		return []IndividualStats{}
	}
	if n > len(stats) {
		n = len(stats)
	}

	elite := make([]IndividualStats, 0, n)
	for _, front := range ParetoFronts(stats) {
		ordered := orderFront(stats, front, objectives, tieBreak)
		for _, idx := range ordered {
			elite = append(elite, stats[idx])
			if len(elite) == n {
				return elite
			}
		}
	}

	return elite
}

// orderFront applies the tie-break rule to one front's indices
func orderFront(stats []IndividualStats, front []int, objectives []ObjectiveSpec, tieBreak TieBreak) []int {
	ordered := append([]int(nil), front...)
	if tieBreak == TieBreakInsertionOrder {
		sort.Ints(ordered)
		return ordered
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return stats[ordered[i]].WeightedScore(objectives) > stats[ordered[j]].WeightedScore(objectives)
	})
	return ordered
}

// rankOf maps every record index to its front number, used by tournament
// selection during reproduction
func rankOf(stats []IndividualStats) []int {
	ranks := make([]int, len(stats))
	for rank, front := range ParetoFronts(stats) {
		for _, idx := range front {
			ranks[idx] = rank
		}
	}
	return ranks
}
