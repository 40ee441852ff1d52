// Package domain defines core types, interfaces, and errors for the
// lineage diff engine.
package domain

// Presence records which snapshot side a node or edge appears in.
type Presence string

// Presence values.
const (
	PresenceBase    Presence = "base"
	PresenceBoth    Presence = "both"
	PresenceCurrent Presence = "current"
)

// Weight returns the provenance sort weight for deterministic projection
// ordering: base=0 < both=1 < current=2.
func (p Presence) Weight() int {
	switch p {
	case PresenceBase:
		return 0
	case PresenceBoth:
		return 1
	default:
		return 2
	}
}

// ChangeStatus classifies how a node or edge differs between snapshots.
// The empty string means unchanged.
type ChangeStatus string

// Change statuses.
const (
	ChangeStatusAdded    ChangeStatus = "added"
	ChangeStatusRemoved  ChangeStatus = "removed"
	ChangeStatusModified ChangeStatus = "modified"
)

// ChangeCategory is the breaking-change classification supplied by an
// external diff analysis for a modified node.
type ChangeCategory string

// Change categories.
const (
	CategoryBreaking        ChangeCategory = "breaking"
	CategoryNonBreaking     ChangeCategory = "non_breaking"
	CategoryPartialBreaking ChangeCategory = "partial_breaking"
	CategoryUnknown         ChangeCategory = "unknown"
)

// ColumnDef describes one column of a node definition.
type ColumnDef struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// NodeDefinition is the content of one logical unit of work (a model,
// table, seed, ...) as captured by one snapshot side.
type NodeDefinition struct {
	Name         string      `json:"name" yaml:"name"`
	ResourceType string      `json:"resource_type" yaml:"resource_type"`
	PackageName  string      `json:"package_name,omitempty" yaml:"package_name,omitempty"`
	Checksum     string      `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	RawCode      string      `json:"raw_code,omitempty" yaml:"raw_code,omitempty"`
	PrimaryKey   string      `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	Columns      []ColumnDef `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// Snapshot is one side (base or current) of the compared project state:
// node definitions keyed by stable id plus a parent adjacency map
// (child id -> ids of the nodes it depends on).
type Snapshot struct {
	Nodes   map[string]*NodeDefinition `json:"nodes" yaml:"nodes"`
	Parents map[string][]string        `json:"parents,omitempty" yaml:"parents,omitempty"`
}

// ChangeDetail carries the externally supplied diff classification for a
// modified node: its category and the per-column change map.
type ChangeDetail struct {
	Category ChangeCategory          `json:"category" yaml:"category"`
	Columns  map[string]ChangeStatus `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// DiffResult maps node ids to externally computed change details.
// When present for a node, it takes precedence over checksum comparison.
type DiffResult struct {
	Nodes map[string]*ChangeDetail `json:"nodes" yaml:"nodes"`
}

// LineageNode is one merged node of the diff graph. Nodes are created
// once per merge and are immutable afterwards.
type LineageNode struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	ResourceType string          `json:"resource_type"`
	PackageName  string          `json:"package_name,omitempty"`
	Presence     Presence        `json:"presence"`
	ChangeStatus ChangeStatus    `json:"change_status,omitempty"`
	Change       *ChangeDetail   `json:"change,omitempty"`
	Base         *NodeDefinition `json:"base,omitempty"`
	Current      *NodeDefinition `json:"current,omitempty"`
}

// LineageEdge is a directed dependency parent -> child between two
// merged nodes. Its id is deterministic: "<parentID>_<childID>".
type LineageEdge struct {
	ID           string       `json:"id"`
	ParentID     string       `json:"parent_id"`
	ChildID      string       `json:"child_id"`
	Presence     Presence     `json:"presence"`
	ChangeStatus ChangeStatus `json:"change_status,omitempty"`
}

// EdgeID builds the deterministic edge id for a parent/child pair.
func EdgeID(parentID, childID string) string {
	return parentID + "_" + childID
}

// LineageGraph is the merged, annotated diff graph. It is constructed
// atomically by the builder and read-only afterwards, so it is safe to
// share between any number of concurrent readers without locking.
type LineageGraph struct {
	Nodes map[string]*LineageNode `json:"nodes"`
	Edges map[string]*LineageEdge `json:"edges"`

	// Children and Parents are the merged adjacency lists, in the
	// deterministic order the builder produced them.
	Children map[string][]string `json:"-"`
	Parents  map[string][]string `json:"-"`

	// ModifiedSet lists nodes with a change status, in snapshot
	// traversal order. NonBreakingSet is the subset classified
	// non-breaking. ImpactedSet is the modified set plus the downstream
	// closure of every breaking change.
	ModifiedSet    []string            `json:"modified_set"`
	NonBreakingSet map[string]struct{} `json:"-"`
	ImpactedSet    map[string]struct{} `json:"-"`
}

// ChildrenOf returns the merged downstream adjacency for a node.
func (g *LineageGraph) ChildrenOf(id string) []string { return g.Children[id] }

// ParentsOf returns the merged upstream adjacency for a node.
func (g *LineageGraph) ParentsOf(id string) []string { return g.Parents[id] }

// IsImpacted reports whether a node is in the blast radius.
func (g *LineageGraph) IsImpacted(id string) bool {
	_, ok := g.ImpactedSet[id]
	return ok
}

// ColumnRef identifies a single column of a graph node.
type ColumnRef struct {
	NodeID string `json:"node_id" yaml:"node_id"`
	Column string `json:"column" yaml:"column"`
}

// ColumnLineage is the resolved column-level lineage for one output
// column of a node: its type, how it was derived, and its immediate
// column-level parents.
type ColumnLineage struct {
	Column        string      `json:"column" yaml:"column"`
	Type          string      `json:"type,omitempty" yaml:"type,omitempty"`
	TransformType string      `json:"transform_type,omitempty" yaml:"transform_type,omitempty"`
	Parents       []ColumnRef `json:"parents,omitempty" yaml:"parents,omitempty"`
}
