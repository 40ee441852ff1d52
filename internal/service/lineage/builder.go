package lineage

import (
	"sort"

	"driftscope/internal/domain"
)

// Build merges a base and a current snapshot into one annotated
// LineageGraph: nodes and edges carry their provenance, change
// classification, and the computed blast radius.
//
// diff may be nil; when supplied, its per-node change details take
// precedence over checksum comparison. Malformed snapshot data is
// tolerated: edges referencing unknown node ids are dropped silently,
// and a nil node definition is replaced by an empty one named after
// its key.
func Build(base, current *domain.Snapshot, diff *domain.DiffResult) *domain.LineageGraph {
	if base == nil {
		base = &domain.Snapshot{}
	}
	if current == nil {
		current = &domain.Snapshot{}
	}

	g := &domain.LineageGraph{
		Nodes:          make(map[string]*domain.LineageNode),
		Edges:          make(map[string]*domain.LineageEdge),
		Children:       make(map[string][]string),
		Parents:        make(map[string][]string),
		NonBreakingSet: make(map[string]struct{}),
		ImpactedSet:    make(map[string]struct{}),
	}

	mergeNodes(g, base, current)
	mergeEdges(g, base, current)

	breakingSeeds := classifyNodes(g, diff)
	classifyEdges(g)

	// impactedSet = modifiedSet ∪ downstream closure of breaking seeds.
	for _, id := range g.ModifiedSet {
		g.ImpactedSet[id] = struct{}{}
	}
	for id := range NeighborSet(breakingSeeds, g.ChildrenOf, DefaultMaxDegree) {
		g.ImpactedSet[id] = struct{}{}
	}

	return g
}

// mergeNodes creates one entry per key in base, then overlays current,
// upgrading presence to "both" for shared keys. Iteration is over
// sorted keys so the graph is reproducible for identical input.
func mergeNodes(g *domain.LineageGraph, base, current *domain.Snapshot) {
	for _, id := range sortedKeys(base.Nodes) {
		def := nodeDefOrEmpty(base.Nodes[id], id)
		g.Nodes[id] = &domain.LineageNode{
			ID:           id,
			Name:         def.Name,
			ResourceType: def.ResourceType,
			PackageName:  def.PackageName,
			Presence:     domain.PresenceBase,
			Base:         def,
		}
	}
	for _, id := range sortedKeys(current.Nodes) {
		def := nodeDefOrEmpty(current.Nodes[id], id)
		if node, ok := g.Nodes[id]; ok {
			node.Presence = domain.PresenceBoth
			node.Current = def
			// Current side wins for display attributes.
			node.Name = def.Name
			node.ResourceType = def.ResourceType
			node.PackageName = def.PackageName
			continue
		}
		g.Nodes[id] = &domain.LineageNode{
			ID:           id,
			Name:         def.Name,
			ResourceType: def.ResourceType,
			PackageName:  def.PackageName,
			Presence:     domain.PresenceCurrent,
			Current:      def,
		}
	}
}

// nodeDefOrEmpty guards against nil definitions in decoded snapshots.
// JSON input like {"nodes":{"a":null}} yields a nil pointer per node,
// which merges as an empty definition named after the map key.
func nodeDefOrEmpty(def *domain.NodeDefinition, id string) *domain.NodeDefinition {
	if def == nil {
		return &domain.NodeDefinition{Name: id}
	}
	return def
}

// mergeEdges builds edges from base's parent adjacency, then overlays
// current's, upgrading shared edges to "both". Edges with an endpoint
// missing from the merged node set are dropped.
func mergeEdges(g *domain.LineageGraph, base, current *domain.Snapshot) {
	addSide := func(parents map[string][]string, presence domain.Presence) {
		for _, childID := range sortedKeys(parents) {
			for _, parentID := range parents[childID] {
				if _, ok := g.Nodes[parentID]; !ok {
					continue
				}
				if _, ok := g.Nodes[childID]; !ok {
					continue
				}
				id := domain.EdgeID(parentID, childID)
				if edge, ok := g.Edges[id]; ok {
					if edge.Presence != presence {
						edge.Presence = domain.PresenceBoth
					}
					continue
				}
				g.Edges[id] = &domain.LineageEdge{
					ID:       id,
					ParentID: parentID,
					ChildID:  childID,
					Presence: presence,
				}
				g.Children[parentID] = append(g.Children[parentID], childID)
				g.Parents[childID] = append(g.Parents[childID], parentID)
			}
		}
	}
	addSide(base.Parents, domain.PresenceBase)
	addSide(current.Parents, domain.PresenceCurrent)
}

// classifyNodes assigns change statuses and accumulates the modified,
// non-breaking, and breaking-seed sets. Returns the breaking seeds.
//
// A node present on both sides with identical checksums and no diff
// entry gets no status: "modified" is reserved for content changes,
// even when surrounding edges changed.
func classifyNodes(g *domain.LineageGraph, diff *domain.DiffResult) []string {
	var breakingSeeds []string

	record := func(node *domain.LineageNode, status domain.ChangeStatus) {
		node.ChangeStatus = status
		g.ModifiedSet = append(g.ModifiedSet, node.ID)
	}

	for _, id := range sortedKeys(g.Nodes) {
		node := g.Nodes[id]

		if diff != nil {
			if detail, ok := diff.Nodes[id]; ok && detail != nil {
				node.Change = detail
				record(node, domain.ChangeStatusModified)
				if detail.Category == domain.CategoryNonBreaking {
					g.NonBreakingSet[id] = struct{}{}
				} else {
					breakingSeeds = append(breakingSeeds, id)
				}
				continue
			}
		}

		switch node.Presence {
		case domain.PresenceBase:
			record(node, domain.ChangeStatusRemoved)
			breakingSeeds = append(breakingSeeds, id)
		case domain.PresenceCurrent:
			record(node, domain.ChangeStatusAdded)
			breakingSeeds = append(breakingSeeds, id)
		default:
			if node.Base.Checksum != node.Current.Checksum {
				// No category information: assume breaking.
				record(node, domain.ChangeStatusModified)
				breakingSeeds = append(breakingSeeds, id)
			}
		}
	}
	return breakingSeeds
}

// classifyEdges derives edge statuses from presence: base-only means the
// dependency was removed, current-only means it was added.
func classifyEdges(g *domain.LineageGraph) {
	for _, edge := range g.Edges {
		switch edge.Presence {
		case domain.PresenceBase:
			edge.ChangeStatus = domain.ChangeStatusRemoved
		case domain.PresenceCurrent:
			edge.ChangeStatus = domain.ChangeStatusAdded
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
