package domain

import "encoding/json"

// RunType identifies the kind of remote computation a run performs.
type RunType string

// Run types.
const (
	RunTypeRowCount     RunType = "row_count"
	RunTypeRowCountDiff RunType = "row_count_diff"
	RunTypeValueDiff    RunType = "value_diff"
)

// RunStatus is the remote-side lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// RunProgress reports coarse completion of an in-flight run.
type RunProgress struct {
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message,omitempty"`
}

// Run is one polling observation of a remote computation. A run with a
// non-empty Error or a populated Result is terminal; a run that resolves
// with an error is a failure and is never retried automatically.
type Run struct {
	ID       string          `json:"run_id"`
	Type     RunType         `json:"type"`
	Status   RunStatus       `json:"status"`
	Error    string          `json:"error,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
	Progress *RunProgress    `json:"progress,omitempty"`
}

// Terminal reports whether the run has reached a final state.
func (r *Run) Terminal() bool {
	return r.Error != "" || len(r.Result) > 0 || r.Status == RunStatusFinished || r.Status == RunStatusFailed
}

// Failed reports whether a terminal run resolved unsuccessfully.
func (r *Run) Failed() bool {
	return r.Error != "" || r.Status == RunStatusFailed
}

// RunParams is the tagged variant over the finite set of diff-action
// kinds. Each implementation carries its own strongly-typed parameter
// record instead of an untyped dictionary.
type RunParams interface {
	RunType() RunType
}

// RowCountParams requests row counts for a set of nodes in one run.
type RowCountParams struct {
	NodeNames []string `json:"node_names"`
}

// RunType implements RunParams.
func (RowCountParams) RunType() RunType { return RunTypeRowCount }

// RowCountDiffParams requests base/current row-count comparison for a
// set of nodes in one aggregate run.
type RowCountDiffParams struct {
	NodeNames []string `json:"node_names"`
}

// RunType implements RunParams.
func (RowCountDiffParams) RunType() RunType { return RunTypeRowCountDiff }

// ValueDiffParams requests a value-level diff of one model keyed by its
// primary key.
type ValueDiffParams struct {
	Model      string `json:"model"`
	PrimaryKey string `json:"primary_key"`
}

// RunType implements RunParams.
func (ValueDiffParams) RunType() RunType { return RunTypeValueDiff }
