package action

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"driftscope/internal/domain"
)

// tableLike lists resource types that materialize as a relation and are
// therefore eligible for row-count runs.
var tableLike = map[string]struct{}{
	"model":    {},
	"table":    {},
	"seed":     {},
	"snapshot": {},
}

// Service initiates batch actions over lineage graph nodes and tracks
// one orchestrator per active action, addressed by action id.
type Service struct {
	client       domain.RunClient
	checks       domain.CheckRepository
	logger       *slog.Logger
	pollInterval time.Duration

	mu      sync.Mutex
	actions map[string]*Orchestrator
}

// NewService creates the batch action service.
func NewService(client domain.RunClient, checks domain.CheckRepository, logger *slog.Logger, pollInterval time.Duration) *Service {
	return &Service{
		client:       client,
		checks:       checks,
		logger:       logger.With("component", "action-service"),
		pollInterval: pollInterval,
		actions:      make(map[string]*Orchestrator),
	}
}

// StartRowCount submits one aggregate row-count run over the selected
// nodes (Strategy B). Non-table-like nodes are skipped. Returns the
// action id used to observe and cancel the batch.
func (s *Service) StartRowCount(ctx context.Context, graph *domain.LineageGraph, nodeIDs []string) (string, error) {
	nodes, err := resolveNodes(graph, nodeIDs)
	if err != nil {
		return "", err
	}
	params := domain.RowCountParams{NodeNames: tableLikeNames(nodes)}
	return s.start(func(o *Orchestrator) {
		o.RunMultiNodes(ctx, nodes, skipNonTable, params)
	}), nil
}

// StartRowCountDiff submits one aggregate base/current row-count
// comparison over the selected nodes (Strategy B).
func (s *Service) StartRowCountDiff(ctx context.Context, graph *domain.LineageGraph, nodeIDs []string) (string, error) {
	nodes, err := resolveNodes(graph, nodeIDs)
	if err != nil {
		return "", err
	}
	params := domain.RowCountDiffParams{NodeNames: tableLikeNames(nodes)}
	return s.start(func(o *Orchestrator) {
		o.RunMultiNodes(ctx, nodes, skipNonTable, params)
	}), nil
}

// StartValueDiff runs a value-level diff per node, sequentially
// (Strategy A). Nodes without a primary key are skipped with a reason.
func (s *Service) StartValueDiff(ctx context.Context, graph *domain.LineageGraph, nodeIDs []string) (string, error) {
	nodes, err := resolveNodes(graph, nodeIDs)
	if err != nil {
		return "", err
	}
	return s.start(func(o *Orchestrator) {
		o.RunPerNode(ctx, nodes, valueDiffParams)
	}), nil
}

// start creates an orchestrator, registers it, and launches the batch
// in the background. The action id identifies it to observers.
func (s *Service) start(run func(*Orchestrator)) string {
	id := domain.NewID()
	o := NewOrchestrator(s.client, s.logger, s.pollInterval)

	s.mu.Lock()
	s.actions[id] = o
	s.mu.Unlock()

	go run(o)
	return id
}

// State returns a deep copy of the action's current state.
func (s *Service) State(actionID string) (domain.ActionState, error) {
	o, err := s.get(actionID)
	if err != nil {
		return domain.ActionState{}, err
	}
	return o.State(), nil
}

// Cancel requests cooperative cancellation of an active action.
func (s *Service) Cancel(ctx context.Context, actionID string) error {
	o, err := s.get(actionID)
	if err != nil {
		return err
	}
	o.Cancel(ctx)
	return nil
}

// Discard removes a terminal action's record, as when its panel closes.
func (s *Service) Discard(actionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[actionID]; !ok {
		return domain.ErrNotFound("batch action %q not found", actionID)
	}
	delete(s.actions, actionID)
	return nil
}

func (s *Service) get(actionID string) (*Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.actions[actionID]
	if !ok {
		return nil, domain.ErrNotFound("batch action %q not found", actionID)
	}
	return o, nil
}

// AddLineageDiffCheck persists a saved lineage-diff check referencing
// the current node selection. No remote run is involved.
func (s *Service) AddLineageDiffCheck(ctx context.Context, name string, nodeIDs []string, view domain.ViewOptions) (*domain.Check, error) {
	return s.addCheck(ctx, domain.CheckTypeLineageDiff, name, "Lineage diff", nodeIDs, view)
}

// AddSchemaDiffCheck persists a saved schema-diff check referencing the
// current node selection. No remote run is involved.
func (s *Service) AddSchemaDiffCheck(ctx context.Context, name string, nodeIDs []string, view domain.ViewOptions) (*domain.Check, error) {
	return s.addCheck(ctx, domain.CheckTypeSchemaDiff, name, "Schema diff", nodeIDs, view)
}

func (s *Service) addCheck(ctx context.Context, typ domain.CheckType, name, fallback string, nodeIDs []string, view domain.ViewOptions) (*domain.Check, error) {
	if s.checks == nil {
		return nil, domain.ErrNotImplemented("check persistence is not configured")
	}
	if len(nodeIDs) == 0 {
		return nil, domain.ErrValidation("a check requires at least one node")
	}
	if name == "" {
		name = fallback
	}
	check, err := s.checks.Create(ctx, &domain.Check{
		Name:        name,
		Type:        typ,
		NodeIDs:     nodeIDs,
		ViewOptions: view,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("check saved", "check_id", check.ID, "type", typ, "nodes", len(nodeIDs))
	return check, nil
}

// resolveNodes maps ids to graph nodes, preserving the given order.
func resolveNodes(graph *domain.LineageGraph, nodeIDs []string) ([]*domain.LineageNode, error) {
	if graph == nil {
		return nil, domain.ErrNotFound("no lineage graph loaded")
	}
	if len(nodeIDs) == 0 {
		return nil, domain.ErrValidation("a batch action requires at least one node")
	}
	nodes := make([]*domain.LineageNode, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		node, ok := graph.Nodes[id]
		if !ok {
			return nil, domain.ErrNotFound("node %q not found in lineage graph", id)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// skipNonTable excludes nodes that do not materialize as a relation.
func skipNonTable(node *domain.LineageNode) string {
	if _, ok := tableLike[node.ResourceType]; !ok {
		return "resource type " + node.ResourceType + " has no row count"
	}
	return ""
}

// valueDiffParams builds per-node value-diff parameters; nodes lacking
// a primary key are skipped with the reason annotated.
func valueDiffParams(node *domain.LineageNode) (domain.RunParams, string) {
	pk := primaryKey(node)
	if pk == "" {
		return nil, "no primary key"
	}
	return domain.ValueDiffParams{Model: node.Name, PrimaryKey: pk}, ""
}

// primaryKey prefers the current definition's key, falling back to base.
func primaryKey(node *domain.LineageNode) string {
	if node.Current != nil && node.Current.PrimaryKey != "" {
		return node.Current.PrimaryKey
	}
	if node.Base != nil {
		return node.Base.PrimaryKey
	}
	return ""
}

func tableLikeNames(nodes []*domain.LineageNode) []string {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if skipNonTable(n) == "" {
			names = append(names, n.Name)
		}
	}
	return names
}
