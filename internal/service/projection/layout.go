// Package projection converts a merged lineage graph into a positioned
// node/edge list for rendering.
package projection

import (
	"sort"

	"driftscope/internal/domain"
)

// Spacing between laid-out nodes.
const (
	rankGap = 100.0
	nodeGap = 40.0
)

// Layout places nodes rank by rank using Kahn's algorithm: a node's
// rank is one past the deepest of its parents, ranks advance along the
// layout direction, and nodes within a rank are stacked in input order.
// Pure and synchronous; implements domain.LayoutFunc.
func Layout(nodes []domain.LayoutNode, edges []domain.LayoutEdge, direction domain.LayoutDirection) map[string]domain.Position {
	if len(nodes) == 0 {
		return map[string]domain.Position{}
	}

	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		index[n.ID] = i
	}

	inDegree := make([]int, len(nodes))
	dependents := make(map[int][]int)
	for _, e := range edges {
		from, okFrom := index[e.From]
		to, okTo := index[e.To]
		if !okFrom || !okTo || from == to {
			continue
		}
		dependents[from] = append(dependents[from], to)
		inDegree[to]++
	}

	var ranks [][]int
	var queue []int
	for i, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, i)
		}
	}

	processed := make([]bool, len(nodes))
	seen := 0
	for len(queue) > 0 {
		sort.Ints(queue) // deterministic ordering
		rank := make([]int, len(queue))
		copy(rank, queue)
		ranks = append(ranks, rank)
		seen += len(queue)

		var next []int
		for _, idx := range queue {
			processed[idx] = true
			for _, dep := range dependents[idx] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		queue = next
	}

	// Cyclic leftovers get one final rank rather than failing: layout
	// must place every node it was given.
	if seen != len(nodes) {
		var rest []int
		for i := range nodes {
			if !processed[i] {
				rest = append(rest, i)
			}
		}
		sort.Ints(rest)
		ranks = append(ranks, rest)
	}

	positions := make(map[string]domain.Position, len(nodes))
	mainOffset := 0.0
	for _, rank := range ranks {
		crossOffset := 0.0
		maxExtent := 0.0
		for _, idx := range rank {
			n := nodes[idx]
			if direction == domain.LayoutTopToBottom {
				positions[n.ID] = domain.Position{X: crossOffset, Y: mainOffset}
				crossOffset += n.Width + nodeGap
				if n.Height > maxExtent {
					maxExtent = n.Height
				}
			} else {
				positions[n.ID] = domain.Position{X: mainOffset, Y: crossOffset}
				crossOffset += n.Height + nodeGap
				if n.Width > maxExtent {
					maxExtent = n.Width
				}
			}
		}
		mainOffset += maxExtent + rankGap
	}
	return positions
}
