package domain

import (
	"context"
	"time"
)

// RunClient is the client-side contract of the remote execution
// service. Submit is fire-and-forget when nowait is set; WaitRun is one
// polling attempt and the caller loops; CancelRun is advisory.
// Implemented by runclient.Client.
type RunClient interface {
	SubmitRun(ctx context.Context, params RunParams, nowait bool) (runID string, err error)
	WaitRun(ctx context.Context, runID string, pollInterval time.Duration) (*Run, error)
	CancelRun(ctx context.Context, runID string) error
}

// CheckRepository persists saved checks.
// Implemented by repository.CheckRepo.
type CheckRepository interface {
	Create(ctx context.Context, check *Check) (*Check, error)
	GetByID(ctx context.Context, id string) (*Check, error)
	List(ctx context.Context) ([]*Check, error)
	Rename(ctx context.Context, id, name string) (*Check, error)
	Delete(ctx context.Context, id string) error
}

// Position is a node placement produced by a layout routine.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LayoutNode is the bounding box the projector hands to the layout
// routine for one visual node.
type LayoutNode struct {
	ID     string
	Width  float64
	Height float64
}

// LayoutEdge is the connectivity the projector hands to the layout
// routine.
type LayoutEdge struct {
	From string
	To   string
}

// LayoutDirection selects the rank axis of the layout.
type LayoutDirection string

// Layout directions.
const (
	LayoutLeftToRight LayoutDirection = "LR"
	LayoutTopToBottom LayoutDirection = "TB"
)

// LayoutFunc places nodes given sizes and connectivity. It is pure and
// synchronous; the projector never computes positions itself.
type LayoutFunc func(nodes []LayoutNode, edges []LayoutEdge, direction LayoutDirection) map[string]Position
