package domain

import "time"

// CheckType identifies what a persisted check verifies.
type CheckType string

// Check types.
const (
	CheckTypeLineageDiff CheckType = "lineage_diff"
	CheckTypeSchemaDiff  CheckType = "schema_diff"
)

// Check is a saved, named verification referencing a node selection.
// Checks are persisted so a review session can be replayed later.
type Check struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        CheckType   `json:"type"`
	Description string      `json:"description,omitempty"`
	NodeIDs     []string    `json:"node_ids"`
	ViewOptions ViewOptions `json:"view_options"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ViewOptions captures how the node selection was being viewed when the
// check was saved, so reopening it restores the same projection.
type ViewOptions struct {
	ColumnLineage         bool `json:"column_lineage,omitempty"`
	BreakingChangeEnabled bool `json:"breaking_change_enabled,omitempty"`
}
