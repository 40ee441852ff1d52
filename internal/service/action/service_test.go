package action

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftscope/internal/domain"
	"driftscope/internal/service/lineage"
)

// memCheckRepo is an in-memory CheckRepository for service tests.
type memCheckRepo struct {
	checks map[string]*domain.Check
}

func newMemCheckRepo() *memCheckRepo {
	return &memCheckRepo{checks: make(map[string]*domain.Check)}
}

func (m *memCheckRepo) Create(_ context.Context, check *domain.Check) (*domain.Check, error) {
	stored := *check
	stored.ID = domain.NewID()
	stored.CreatedAt = time.Now().UTC()
	stored.UpdatedAt = stored.CreatedAt
	m.checks[stored.ID] = &stored
	return &stored, nil
}

func (m *memCheckRepo) GetByID(_ context.Context, id string) (*domain.Check, error) {
	check, ok := m.checks[id]
	if !ok {
		return nil, domain.ErrNotFound("check %q not found", id)
	}
	return check, nil
}

func (m *memCheckRepo) List(context.Context) ([]*domain.Check, error) {
	out := make([]*domain.Check, 0, len(m.checks))
	for _, c := range m.checks {
		out = append(out, c)
	}
	return out, nil
}

func (m *memCheckRepo) Rename(_ context.Context, id, name string) (*domain.Check, error) {
	check, ok := m.checks[id]
	if !ok {
		return nil, domain.ErrNotFound("check %q not found", id)
	}
	check.Name = name
	return check, nil
}

func (m *memCheckRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.checks[id]; !ok {
		return domain.ErrNotFound("check %q not found", id)
	}
	delete(m.checks, id)
	return nil
}

func serviceGraph(t *testing.T) *domain.LineageGraph {
	t.Helper()
	nodes := map[string]*domain.NodeDefinition{
		"orders":  {Name: "orders", ResourceType: "model", Checksum: "v1", PrimaryKey: "order_id"},
		"metrics": {Name: "metrics", ResourceType: "metric", Checksum: "v1"},
		"no_pk":   {Name: "no_pk", ResourceType: "model", Checksum: "v1"},
	}
	s := &domain.Snapshot{Nodes: nodes}
	return lineage.Build(s, s, nil)
}

func newTestService(t *testing.T, client domain.RunClient) *Service {
	t.Helper()
	return NewService(client, newMemCheckRepo(), slog.Default(), time.Millisecond)
}

func waitTerminal(t *testing.T, s *Service, actionID string) domain.ActionState {
	t.Helper()
	var state domain.ActionState
	require.Eventually(t, func() bool {
		got, err := s.State(actionID)
		if err != nil {
			return false
		}
		state = got
		return state.Status.Terminal()
	}, time.Second, time.Millisecond)
	return state
}

func TestService_StartRowCountDiff(t *testing.T) {
	client := newFakeRunClient()
	s := newTestService(t, client)
	graph := serviceGraph(t)

	actionID, err := s.StartRowCountDiff(context.Background(), graph, []string{"orders", "metrics"})
	require.NoError(t, err)

	state := waitTerminal(t, s, actionID)
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	assert.Equal(t, domain.ModeMultiNodes, state.Mode)
	assert.Equal(t, domain.NodeActionSuccess, state.Actions["orders"].Status)
	assert.Equal(t, domain.NodeActionSkipped, state.Actions["metrics"].Status)

	// The aggregate run carries only table-like node names.
	require.Equal(t, 1, client.submittedCount())
	params, ok := client.submitted[0].(domain.RowCountDiffParams)
	require.True(t, ok)
	assert.Equal(t, []string{"orders"}, params.NodeNames)
}

func TestService_StartValueDiff(t *testing.T) {
	client := newFakeRunClient()
	s := newTestService(t, client)
	graph := serviceGraph(t)

	actionID, err := s.StartValueDiff(context.Background(), graph, []string{"orders", "no_pk"})
	require.NoError(t, err)

	state := waitTerminal(t, s, actionID)
	assert.Equal(t, domain.ModePerNode, state.Mode)
	assert.Equal(t, domain.NodeActionSuccess, state.Actions["orders"].Status)
	assert.Equal(t, domain.NodeActionSkipped, state.Actions["no_pk"].Status)
	assert.Equal(t, "no primary key", state.Actions["no_pk"].SkipReason)

	require.Equal(t, 1, client.submittedCount())
	params, ok := client.submitted[0].(domain.ValueDiffParams)
	require.True(t, ok)
	assert.Equal(t, "orders", params.Model)
	assert.Equal(t, "order_id", params.PrimaryKey)
}

func TestService_StartValidation(t *testing.T) {
	s := newTestService(t, newFakeRunClient())
	graph := serviceGraph(t)

	var validation *domain.ValidationError
	var notFound *domain.NotFoundError

	_, err := s.StartRowCount(context.Background(), graph, nil)
	assert.ErrorAs(t, err, &validation)

	_, err = s.StartRowCount(context.Background(), graph, []string{"ghost"})
	assert.ErrorAs(t, err, &notFound)

	_, err = s.StartRowCount(context.Background(), nil, []string{"orders"})
	assert.ErrorAs(t, err, &notFound)
}

func TestService_StateUnknownAction(t *testing.T) {
	s := newTestService(t, newFakeRunClient())

	_, err := s.State("missing")
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestService_CancelAndDiscard(t *testing.T) {
	client := newFakeRunClient()
	s := newTestService(t, client)
	graph := serviceGraph(t)

	actionID, err := s.StartRowCount(context.Background(), graph, []string{"orders"})
	require.NoError(t, err)
	waitTerminal(t, s, actionID)

	// Cancel after completion is accepted and changes nothing.
	require.NoError(t, s.Cancel(context.Background(), actionID))
	state, err := s.State(actionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)

	require.NoError(t, s.Discard(actionID))
	_, err = s.State(actionID)
	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestService_AddChecks(t *testing.T) {
	s := newTestService(t, newFakeRunClient())
	view := domain.ViewOptions{BreakingChangeEnabled: true}

	check, err := s.AddLineageDiffCheck(context.Background(), "", []string{"orders"}, view)
	require.NoError(t, err)
	assert.Equal(t, "Lineage diff", check.Name, "empty name falls back to the type label")
	assert.Equal(t, domain.CheckTypeLineageDiff, check.Type)
	assert.NotEmpty(t, check.ID)

	check, err = s.AddSchemaDiffCheck(context.Background(), "weekly schema audit", []string{"orders", "no_pk"}, view)
	require.NoError(t, err)
	assert.Equal(t, "weekly schema audit", check.Name)
	assert.Equal(t, domain.CheckTypeSchemaDiff, check.Type)
	assert.True(t, check.ViewOptions.BreakingChangeEnabled)

	var validation *domain.ValidationError
	_, err = s.AddLineageDiffCheck(context.Background(), "x", nil, view)
	assert.ErrorAs(t, err, &validation)
}
