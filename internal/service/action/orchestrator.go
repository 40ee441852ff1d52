// Package action orchestrates potentially long-running, cancellable
// remote computations across many lineage graph nodes.
package action

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"driftscope/internal/domain"
)

// DefaultPollInterval is the fixed delay between polling attempts on an
// in-flight remote run.
const DefaultPollInterval = 2 * time.Second

// PerNodeParams yields the run parameters for one node, or a non-empty
// skip reason when the node must not be submitted.
type PerNodeParams func(node *domain.LineageNode) (domain.RunParams, string)

// SkipPredicate returns a non-empty reason when a node is excluded from
// an aggregate run.
type SkipPredicate func(node *domain.LineageNode) string

// Orchestrator drives one batch action through the state machine
// pending -> running -> {completed | canceling -> canceled}. A terminal
// state is left only by Reset.
//
// Progress lives in a side-table keyed by node id; the lineage graph is
// never mutated. Each orchestrator exclusively owns its ActionState and
// is constructed by the call site that initiates the batch action.
type Orchestrator struct {
	client       domain.RunClient
	logger       *slog.Logger
	pollInterval time.Duration

	mu         sync.Mutex
	state      domain.ActionState
	currentRun string
	done       chan struct{}
}

// NewOrchestrator creates an orchestrator in the pending state.
// pollInterval 0 uses DefaultPollInterval.
func NewOrchestrator(client domain.RunClient, logger *slog.Logger, pollInterval time.Duration) *Orchestrator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	o := &Orchestrator{
		client:       client,
		logger:       logger.With("component", "batch-action"),
		pollInterval: pollInterval,
	}
	o.Reset()
	return o
}

// Reset reinitializes the state machine to pending, discarding all
// recorded per-node results.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = domain.ActionState{
		Status:  domain.ActionStatusPending,
		Actions: make(map[string]*domain.NodeAction),
	}
	o.currentRun = ""
	o.done = make(chan struct{})
}

// State returns a deep copy of the current action state.
func (o *Orchestrator) State() domain.ActionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Done returns a channel closed when the action reaches a terminal
// state. Reset replaces the channel.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

// Cancel requests cooperative cancellation: the status flips to
// canceling and, when a run is in flight, a remote cancel is issued for
// it. The transition to canceled is observed only at loop checkpoints;
// an in-flight remote call is never preempted.
func (o *Orchestrator) Cancel(ctx context.Context) {
	o.mu.Lock()
	if o.state.Status.Terminal() {
		o.mu.Unlock()
		return
	}
	o.state.Status = domain.ActionStatusCanceling
	runID := o.currentRun
	o.mu.Unlock()

	if runID == "" {
		return
	}
	if err := o.client.CancelRun(ctx, runID); err != nil {
		o.logger.Warn("remote cancel failed", "run_id", runID, "error", err)
	}
}

// RunPerNode executes Strategy A: one remote run per node, strictly
// sequentially. A node's run fully resolves before the next node is
// submitted. Blocks until the action reaches a terminal state.
func (o *Orchestrator) RunPerNode(ctx context.Context, nodes []*domain.LineageNode, paramsFor PerNodeParams) {
	o.begin(domain.ModePerNode, nodes, len(nodes))
	if o.observeCanceling() {
		return
	}

	for _, node := range nodes {
		params, skip := paramsFor(node)
		if skip != "" {
			o.recordSkip(node.ID, skip)
		} else {
			o.submitAndPoll(ctx, node, params)
		}
		o.incrementCompleted()

		// Cancellation checkpoint: already-processed nodes keep their
		// recorded results, unprocessed nodes stay untouched.
		if o.observeCanceling() {
			return
		}
	}
	o.complete()
}

// RunMultiNodes executes Strategy B: one aggregate remote run covering
// all candidate nodes, which share fate on every poll tick. Blocks
// until the action reaches a terminal state.
func (o *Orchestrator) RunMultiNodes(ctx context.Context, nodes []*domain.LineageNode, skipFor SkipPredicate, params domain.RunParams) {
	o.begin(domain.ModeMultiNodes, nodes, 1)
	if o.observeCanceling() {
		return
	}

	var candidates []string
	for _, node := range nodes {
		if reason := skipFor(node); reason != "" {
			o.recordSkip(node.ID, reason)
			continue
		}
		candidates = append(candidates, node.ID)
	}

	if len(candidates) > 0 {
		runID, err := o.client.SubmitRun(ctx, params, true)
		if err != nil {
			o.logger.Warn("submit aggregate run failed", "type", params.RunType(), "error", err)
			o.propagate(candidates, &domain.Run{Type: params.RunType(), Status: domain.RunStatusFailed, Error: err.Error()})
		} else {
			o.setCurrentRun(runID)
			o.propagate(candidates, &domain.Run{ID: runID, Type: params.RunType(), Status: domain.RunStatusRunning})

			run := o.poll(ctx, runID, params.RunType(), func(observed *domain.Run) {
				o.propagate(candidates, observed)
			})
			o.propagate(candidates, run)
			o.setCurrentRun("")
		}
	}

	o.incrementCompleted()
	if o.observeCanceling() {
		return
	}
	o.complete()
}

// begin marks every node pending and transitions pending -> running.
// A cancel that arrived while still pending is preserved so the first
// checkpoint turns it into canceled.
func (o *Orchestrator) begin(mode domain.ActionMode, nodes []*domain.LineageNode, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Mode = mode
	if o.state.Status != domain.ActionStatusCanceling {
		o.state.Status = domain.ActionStatusRunning
	}
	o.state.Total = total
	o.state.Completed = 0
	for _, n := range nodes {
		o.state.Actions[n.ID] = &domain.NodeAction{Mode: mode, Status: domain.NodeActionPending}
	}
}

// submitAndPoll runs one node's remote computation to a terminal state.
// Submit and poll failures are recorded as a per-node failure; no error
// escapes to the caller.
func (o *Orchestrator) submitAndPoll(ctx context.Context, node *domain.LineageNode, params domain.RunParams) {
	runID, err := o.client.SubmitRun(ctx, params, true)
	if err != nil {
		o.logger.Warn("submit run failed", "node_id", node.ID, "type", params.RunType(), "error", err)
		o.recordRun(node.ID, &domain.Run{Type: params.RunType(), Status: domain.RunStatusFailed, Error: err.Error()})
		return
	}

	o.setCurrentRun(runID)
	o.recordRun(node.ID, &domain.Run{ID: runID, Type: params.RunType(), Status: domain.RunStatusRunning})

	run := o.poll(ctx, runID, params.RunType(), func(observed *domain.Run) {
		o.recordRun(node.ID, observed)
	})
	o.recordRun(node.ID, run)
	o.setCurrentRun("")
}

// poll repeatedly issues single polling attempts at the configured
// interval until the run reports a terminal state. A polling error or a
// run resolving with an error field is a terminal failure, never
// retried. No client-side timeout is imposed.
func (o *Orchestrator) poll(ctx context.Context, runID string, typ domain.RunType, onTick func(*domain.Run)) *domain.Run {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		run, err := o.client.WaitRun(ctx, runID, o.pollInterval)
		if err != nil {
			return &domain.Run{ID: runID, Type: typ, Status: domain.RunStatusFailed, Error: err.Error()}
		}
		if run.Type == "" {
			run.Type = typ
		}
		if run.Terminal() {
			return run
		}
		onTick(run)

		select {
		case <-ctx.Done():
			return &domain.Run{ID: runID, Type: typ, Status: domain.RunStatusFailed, Error: ctx.Err().Error()}
		case <-ticker.C:
		}
	}
}

// recordRun writes a run observation into the node's side-table entry,
// deriving the per-node status from the run state.
func (o *Orchestrator) recordRun(nodeID string, run *domain.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.state.Actions[nodeID]
	if !ok {
		return
	}
	entry.Run = run
	switch {
	case !run.Terminal():
		entry.Status = domain.NodeActionRunning
	case run.Failed():
		entry.Status = domain.NodeActionFailure
	default:
		entry.Status = domain.NodeActionSuccess
	}
}

// propagate applies one shared run observation to every candidate node.
// The write is atomic relative to observers of the state.
func (o *Orchestrator) propagate(nodeIDs []string, run *domain.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range nodeIDs {
		entry, ok := o.state.Actions[id]
		if !ok {
			continue
		}
		shared := *run
		entry.Run = &shared
		switch {
		case !run.Terminal():
			entry.Status = domain.NodeActionRunning
		case run.Failed():
			entry.Status = domain.NodeActionFailure
		default:
			entry.Status = domain.NodeActionSuccess
		}
	}
}

func (o *Orchestrator) recordSkip(nodeID, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if entry, ok := o.state.Actions[nodeID]; ok {
		entry.Status = domain.NodeActionSkipped
		entry.SkipReason = reason
	}
}

func (o *Orchestrator) incrementCompleted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Completed < o.state.Total {
		o.state.Completed++
	}
}

func (o *Orchestrator) setCurrentRun(runID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.currentRun = runID
}

// observeCanceling is the loop checkpoint: a canceling status becomes
// canceled and the done channel is closed.
func (o *Orchestrator) observeCanceling() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Status != domain.ActionStatusCanceling {
		return false
	}
	o.state.Status = domain.ActionStatusCanceled
	close(o.done)
	return true
}

// complete transitions to completed on natural exhaustion, honoring a
// cancellation that raced in after the final checkpoint.
func (o *Orchestrator) complete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch o.state.Status {
	case domain.ActionStatusCanceling:
		o.state.Status = domain.ActionStatusCanceled
	case domain.ActionStatusRunning:
		o.state.Status = domain.ActionStatusCompleted
	default:
		return
	}
	close(o.done)
}
