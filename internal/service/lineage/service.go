package lineage

import (
	"log/slog"
	"sync"

	"driftscope/internal/domain"
)

// DiffService owns the current pair of snapshots and the merged graph
// built from them. A fresh graph is built whenever either snapshot
// changes; readers always see a complete, immutable graph.
type DiffService struct {
	logger    *slog.Logger
	maxDegree int

	mu      sync.RWMutex
	base    *domain.Snapshot
	current *domain.Snapshot
	diff    *domain.DiffResult
	graph   *domain.LineageGraph
}

// NewDiffService creates a DiffService. maxDegree bounds selection and
// impact traversal; pass 0 for the default.
func NewDiffService(logger *slog.Logger, maxDegree int) *DiffService {
	if maxDegree <= 0 {
		maxDegree = DefaultMaxDegree
	}
	return &DiffService{
		logger:    logger.With("component", "diff-service"),
		maxDegree: maxDegree,
	}
}

// Load replaces the snapshots and rebuilds the merged graph atomically.
func (s *DiffService) Load(base, current *domain.Snapshot, diff *domain.DiffResult) *domain.LineageGraph {
	graph := Build(base, current, diff)

	s.mu.Lock()
	s.base = base
	s.current = current
	s.diff = diff
	s.graph = graph
	s.mu.Unlock()

	s.logger.Info("lineage graph rebuilt",
		"nodes", len(graph.Nodes),
		"edges", len(graph.Edges),
		"modified", len(graph.ModifiedSet),
		"impacted", len(graph.ImpactedSet))
	return graph
}

// Graph returns the current merged graph, or nil when no snapshots have
// been loaded yet. The returned graph is immutable.
func (s *DiffService) Graph() *domain.LineageGraph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// SelectUpstream returns the seed nodes plus their upstream closure
// within degree hops (0 uses the service default).
func (s *DiffService) SelectUpstream(seedIDs []string, degree int) (map[string]struct{}, error) {
	return s.selectNeighbors(seedIDs, degree, func(g *domain.LineageGraph) func(string) []string {
		return g.ParentsOf
	})
}

// SelectDownstream returns the seed nodes plus their downstream closure
// within degree hops (0 uses the service default).
func (s *DiffService) SelectDownstream(seedIDs []string, degree int) (map[string]struct{}, error) {
	return s.selectNeighbors(seedIDs, degree, func(g *domain.LineageGraph) func(string) []string {
		return g.ChildrenOf
	})
}

func (s *DiffService) selectNeighbors(seedIDs []string, degree int, neighbors func(*domain.LineageGraph) func(string) []string) (map[string]struct{}, error) {
	graph := s.Graph()
	if graph == nil {
		return nil, domain.ErrNotFound("no lineage graph loaded")
	}
	for _, id := range seedIDs {
		if _, ok := graph.Nodes[id]; !ok {
			return nil, domain.ErrNotFound("node %q not found in lineage graph", id)
		}
	}
	if degree <= 0 {
		degree = s.maxDegree
	}
	return NeighborSet(seedIDs, neighbors(graph), degree), nil
}
