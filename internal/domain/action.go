package domain

// ActionMode selects the submission strategy for a batch action.
type ActionMode string

// Action modes.
const (
	// ModePerNode runs one remote computation per node, sequentially.
	ModePerNode ActionMode = "per_node"
	// ModeMultiNodes runs one aggregate computation covering all
	// candidate nodes at once.
	ModeMultiNodes ActionMode = "multi_nodes"
)

// ActionStatus is the lifecycle state of a batch action.
// Transitions: pending -> running -> {completed | canceling -> canceled}.
// A terminal state is left only by Reset.
type ActionStatus string

// Action statuses.
const (
	ActionStatusPending   ActionStatus = "pending"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusCanceling ActionStatus = "canceling"
	ActionStatusCanceled  ActionStatus = "canceled"
	ActionStatusCompleted ActionStatus = "completed"
)

// Terminal reports whether the status is final until Reset.
func (s ActionStatus) Terminal() bool {
	return s == ActionStatusCanceled || s == ActionStatusCompleted
}

// NodeActionStatus is the per-node outcome within a batch action.
type NodeActionStatus string

// Per-node action statuses.
const (
	NodeActionPending NodeActionStatus = "pending"
	NodeActionRunning NodeActionStatus = "running"
	NodeActionSuccess NodeActionStatus = "success"
	NodeActionFailure NodeActionStatus = "failure"
	NodeActionSkipped NodeActionStatus = "skipped"
)

// NodeAction records the live progress of one node inside a batch
// action. It lives in a side-table keyed by node id and owned by the
// orchestrator; graph nodes are never mutated.
type NodeAction struct {
	Mode       ActionMode       `json:"mode"`
	Status     NodeActionStatus `json:"status"`
	SkipReason string           `json:"skip_reason,omitempty"`
	Run        *Run             `json:"run,omitempty"`
}

// ActionState is the mutable run-time record for one batch action.
// It is exclusively owned by a single orchestrator instance and must
// never be shared or mutated by two orchestrators.
type ActionState struct {
	Mode      ActionMode             `json:"mode"`
	Status    ActionStatus           `json:"status"`
	Completed int                    `json:"completed"`
	Total     int                    `json:"total"`
	Actions   map[string]*NodeAction `json:"actions"`
}

// Clone returns a deep copy safe to hand to observers while the
// orchestrator keeps mutating the original.
func (s *ActionState) Clone() ActionState {
	out := ActionState{
		Mode:      s.Mode,
		Status:    s.Status,
		Completed: s.Completed,
		Total:     s.Total,
		Actions:   make(map[string]*NodeAction, len(s.Actions)),
	}
	for id, a := range s.Actions {
		cp := *a
		if a.Run != nil {
			run := *a.Run
			cp.Run = &run
		}
		out.Actions[id] = &cp
	}
	return out
}
