// Package lineage merges two project snapshots into one annotated diff
// graph and provides bounded-degree traversal over it.
package lineage

// DefaultMaxDegree bounds traversal depth when the caller does not
// supply a limit.
const DefaultMaxDegree = 1000

// NeighborSet performs a depth-limited traversal from every seed
// simultaneously, following neighborsOf outward, and returns the set of
// reached node ids (seeds included).
//
// A node is revisited only when the new remaining-degree budget is
// strictly greater than the best budget previously recorded for it, so
// a node reached early through a short path with a small budget can be
// re-explored later with a larger one. This guarantees the maximal
// reachable set for a given maxDegree.
//
// Pure function: same inputs always yield the same set.
func NeighborSet(seedIDs []string, neighborsOf func(string) []string, maxDegree int) map[string]struct{} {
	if maxDegree <= 0 {
		maxDegree = DefaultMaxDegree
	}

	type visit struct {
		id     string
		budget int
	}

	best := make(map[string]int)
	stack := make([]visit, 0, len(seedIDs))
	for _, id := range seedIDs {
		stack = append(stack, visit{id: id, budget: maxDegree})
	}

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v.budget < 0 {
			continue
		}
		if prev, seen := best[v.id]; seen && prev >= v.budget {
			continue
		}
		best[v.id] = v.budget

		for _, n := range neighborsOf(v.id) {
			stack = append(stack, visit{id: n, budget: v.budget - 1})
		}
	}

	out := make(map[string]struct{}, len(best))
	for id := range best {
		out[id] = struct{}{}
	}
	return out
}
