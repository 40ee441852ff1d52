package action

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driftscope/internal/domain"
)

func testNodes(ids ...string) []*domain.LineageNode {
	nodes := make([]*domain.LineageNode, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, &domain.LineageNode{
			ID:           id,
			Name:         id,
			ResourceType: "model",
			Presence:     domain.PresenceBoth,
			Current:      &domain.NodeDefinition{Name: id, ResourceType: "model", PrimaryKey: "id"},
		})
	}
	return nodes
}

func alwaysParams(node *domain.LineageNode) (domain.RunParams, string) {
	return domain.ValueDiffParams{Model: node.Name, PrimaryKey: "id"}, ""
}

func newTestOrchestrator(client domain.RunClient) *Orchestrator {
	return NewOrchestrator(client, slog.Default(), time.Millisecond)
}

func TestRunPerNode_AllSucceed(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	o.RunPerNode(context.Background(), testNodes("a", "b", "c"), alwaysParams)

	state := o.State()
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	assert.Equal(t, domain.ModePerNode, state.Mode)
	assert.Equal(t, 3, state.Total)
	assert.Equal(t, 3, state.Completed)
	require.Len(t, state.Actions, 3)
	for id, entry := range state.Actions {
		assert.Equal(t, domain.NodeActionSuccess, entry.Status, "node %s", id)
		require.NotNil(t, entry.Run)
		assert.True(t, entry.Run.Terminal())
	}
	assert.Equal(t, 3, client.submittedCount(), "one run per node")

	select {
	case <-o.Done():
	default:
		t.Fatal("done channel must be closed after completion")
	}
}

func TestRunPerNode_SkippedNodeCountsTowardProgress(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	paramsFor := func(node *domain.LineageNode) (domain.RunParams, string) {
		if node.ID == "b" {
			return nil, "no primary key"
		}
		return alwaysParams(node)
	}

	o.RunPerNode(context.Background(), testNodes("a", "b"), paramsFor)

	state := o.State()
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	assert.Equal(t, 2, state.Completed)
	assert.Equal(t, domain.NodeActionSkipped, state.Actions["b"].Status)
	assert.Equal(t, "no primary key", state.Actions["b"].SkipReason)
	assert.Nil(t, state.Actions["b"].Run)
	assert.Equal(t, 1, client.submittedCount())
}

func TestRunPerNode_FailedRunDoesNotStopBatch(t *testing.T) {
	client := newFakeRunClient(
		&domain.Run{Status: domain.RunStatusFailed, Error: "boom"},
		&domain.Run{Status: domain.RunStatusFinished},
	)
	o := newTestOrchestrator(client)

	o.RunPerNode(context.Background(), testNodes("a", "b"), alwaysParams)

	state := o.State()
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	assert.Equal(t, domain.NodeActionFailure, state.Actions["a"].Status)
	assert.Equal(t, "boom", state.Actions["a"].Run.Error)
	assert.Equal(t, domain.NodeActionSuccess, state.Actions["b"].Status)
}

func TestRunPerNode_SubmitErrorRecordedAsFailure(t *testing.T) {
	client := newFakeRunClient()
	client.submitErr = errors.New("runner unreachable")
	o := newTestOrchestrator(client)

	o.RunPerNode(context.Background(), testNodes("a"), alwaysParams)

	state := o.State()
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	entry := state.Actions["a"]
	assert.Equal(t, domain.NodeActionFailure, entry.Status)
	require.NotNil(t, entry.Run)
	assert.Contains(t, entry.Run.Error, "runner unreachable")
}

func TestRunPerNode_CancelBetweenNodes(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	// Cancel while the first node's run is in flight. The first node
	// still resolves; the checkpoint after it stops the batch.
	client.onWait = func(string) {
		o.Cancel(context.Background())
	}

	o.RunPerNode(context.Background(), testNodes("a", "b"), alwaysParams)

	state := o.State()
	assert.Equal(t, domain.ActionStatusCanceled, state.Status)
	assert.Equal(t, domain.NodeActionSuccess, state.Actions["a"].Status, "in-flight node keeps its result")
	assert.Equal(t, domain.NodeActionPending, state.Actions["b"].Status, "unprocessed node stays untouched")
	assert.Equal(t, 1, client.submittedCount())
	assert.Equal(t, []string{"run-1"}, client.canceledRuns())

	select {
	case <-o.Done():
	default:
		t.Fatal("done channel must be closed after cancellation")
	}
}

func TestCancel_TerminalStateIsNoop(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	o.RunPerNode(context.Background(), testNodes("a"), alwaysParams)
	require.Equal(t, domain.ActionStatusCompleted, o.State().Status)

	o.Cancel(context.Background())
	assert.Equal(t, domain.ActionStatusCompleted, o.State().Status)
	assert.Empty(t, client.canceledRuns())
}

func TestRunMultiNodes_SingleAggregateRun(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)
	nodes := testNodes("a", "b", "c")

	noSkip := func(*domain.LineageNode) string { return "" }
	o.RunMultiNodes(context.Background(), nodes, noSkip, domain.RowCountParams{NodeNames: []string{"a", "b", "c"}})

	state := o.State()
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	assert.Equal(t, domain.ModeMultiNodes, state.Mode)
	assert.Equal(t, 1, state.Total)
	assert.Equal(t, 1, state.Completed)
	assert.Equal(t, 1, client.submittedCount(), "one aggregate run for the whole batch")

	// Every candidate shares the same run observation.
	for id, entry := range state.Actions {
		assert.Equal(t, domain.NodeActionSuccess, entry.Status, "node %s", id)
		require.NotNil(t, entry.Run)
		assert.Equal(t, "run-1", entry.Run.ID)
	}
}

func TestRunMultiNodes_SkipPredicate(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	nodes := testNodes("a", "b")
	nodes[1].ResourceType = "metric"
	skipMetrics := func(n *domain.LineageNode) string {
		if n.ResourceType == "metric" {
			return "resource type metric has no row count"
		}
		return ""
	}

	o.RunMultiNodes(context.Background(), nodes, skipMetrics, domain.RowCountParams{NodeNames: []string{"a"}})

	state := o.State()
	assert.Equal(t, domain.NodeActionSuccess, state.Actions["a"].Status)
	assert.Equal(t, domain.NodeActionSkipped, state.Actions["b"].Status)
	assert.Equal(t, "resource type metric has no row count", state.Actions["b"].SkipReason)
}

func TestRunMultiNodes_AllSkippedSubmitsNothing(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	skipAll := func(*domain.LineageNode) string { return "not a table" }
	o.RunMultiNodes(context.Background(), testNodes("a", "b"), skipAll, domain.RowCountParams{})

	state := o.State()
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	assert.Equal(t, 0, client.submittedCount())
}

func TestRunMultiNodes_SubmitErrorFailsAllCandidates(t *testing.T) {
	client := newFakeRunClient()
	client.submitErr = errors.New("runner unreachable")
	o := newTestOrchestrator(client)

	noSkip := func(*domain.LineageNode) string { return "" }
	o.RunMultiNodes(context.Background(), testNodes("a", "b"), noSkip, domain.RowCountParams{})

	state := o.State()
	assert.Equal(t, domain.ActionStatusCompleted, state.Status)
	for id, entry := range state.Actions {
		assert.Equal(t, domain.NodeActionFailure, entry.Status, "node %s", id)
	}
}

func TestRunMultiNodes_CancelDuringRun(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)
	client.onWait = func(string) {
		o.Cancel(context.Background())
	}

	noSkip := func(*domain.LineageNode) string { return "" }
	o.RunMultiNodes(context.Background(), testNodes("a", "b"), noSkip, domain.RowCountParams{})

	state := o.State()
	assert.Equal(t, domain.ActionStatusCanceled, state.Status)
	assert.Equal(t, []string{"run-1"}, client.canceledRuns())
}

func TestReset_ReturnsToPending(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	o.RunPerNode(context.Background(), testNodes("a"), alwaysParams)
	require.Equal(t, domain.ActionStatusCompleted, o.State().Status)

	o.Reset()

	state := o.State()
	assert.Equal(t, domain.ActionStatusPending, state.Status)
	assert.Empty(t, state.Actions)
	select {
	case <-o.Done():
		t.Fatal("done channel must be open again after reset")
	default:
	}
}

func TestState_ReturnsDeepCopy(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	o.RunPerNode(context.Background(), testNodes("a"), alwaysParams)

	state := o.State()
	state.Actions["a"].Status = domain.NodeActionFailure
	state.Actions["a"].Run.Error = "tampered"

	fresh := o.State()
	assert.Equal(t, domain.NodeActionSuccess, fresh.Actions["a"].Status)
	assert.Empty(t, fresh.Actions["a"].Run.Error)
}

func TestCancel_BeforeStartIsHonored(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	// Cancel lands while the orchestrator is still pending; the run
	// entry point must not overwrite it with running.
	o.Cancel(context.Background())
	o.RunPerNode(context.Background(), testNodes("a", "b"), alwaysParams)

	state := o.State()
	assert.Equal(t, domain.ActionStatusCanceled, state.Status)
	assert.Equal(t, 0, client.submittedCount(), "no node was submitted")
	for id, entry := range state.Actions {
		assert.Equal(t, domain.NodeActionPending, entry.Status, "node %s", id)
	}

	select {
	case <-o.Done():
	default:
		t.Fatal("done channel must be closed after cancellation")
	}
}

func TestRunMultiNodes_CancelBeforeStartIsHonored(t *testing.T) {
	client := newFakeRunClient()
	o := newTestOrchestrator(client)

	o.Cancel(context.Background())
	o.RunMultiNodes(context.Background(), testNodes("a"), func(*domain.LineageNode) string { return "" }, domain.RowCountParams{NodeNames: []string{"a"}})

	state := o.State()
	assert.Equal(t, domain.ActionStatusCanceled, state.Status)
	assert.Equal(t, 0, client.submittedCount())
}
