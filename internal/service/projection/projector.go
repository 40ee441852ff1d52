package projection

import (
	"sort"

	"driftscope/internal/domain"
)

// Node geometry. Heights are deterministic so the layout routine
// receives accurate bounding boxes before placing edges.
const (
	NodeWidth      = 300.0
	BaseNodeHeight = 60.0
	ColumnHeight   = 16.0
	columnIDSep    = "_"
)

// VisualKind distinguishes model-level nodes from column sub-nodes.
type VisualKind string

// Visual node kinds.
const (
	KindModel  VisualKind = "model"
	KindColumn VisualKind = "column"
)

// VisualNode is one positioned node handed to the rendering layer.
type VisualNode struct {
	ID           string              `json:"id"`
	NodeID       string              `json:"node_id"`
	Kind         VisualKind          `json:"kind"`
	Name         string              `json:"name"`
	ResourceType string              `json:"resource_type,omitempty"`
	PackageName  string              `json:"package_name,omitempty"`
	Presence     domain.Presence     `json:"presence"`
	ChangeStatus domain.ChangeStatus `json:"change_status,omitempty"`
	Width        float64             `json:"width"`
	Height       float64             `json:"height"`
	X            float64             `json:"x"`
	Y            float64             `json:"y"`
}

// VisualEdge is one edge handed to the rendering layer.
type VisualEdge struct {
	ID           string              `json:"id"`
	From         string              `json:"from"`
	To           string              `json:"to"`
	Kind         VisualKind          `json:"kind"`
	Presence     domain.Presence     `json:"presence"`
	ChangeStatus domain.ChangeStatus `json:"change_status,omitempty"`
}

// Options controls one projection.
type Options struct {
	// NodeFilter, when non-nil, restricts the projection to these node
	// ids; edges are emitted only when both endpoints pass the filter.
	NodeFilter map[string]struct{}

	// ColumnLineage supplies resolved column-level lineage per node.
	// When present for a node it wins over breaking-change expansion.
	ColumnLineage map[string][]domain.ColumnLineage

	// BreakingChangeEnabled expands nodes with a recorded per-column
	// change map into one sub-node per changed column.
	BreakingChangeEnabled bool

	// Layout overrides the placement routine. Defaults to Layout.
	Layout domain.LayoutFunc
}

// Project converts the merged graph into a positioned node/edge list.
// Nodes and edges are sorted by provenance weight (base < both <
// current) before projection so rendering order is stable and
// reproducible across runs with identical input. The source graph is
// never mutated.
func Project(graph *domain.LineageGraph, opts Options) ([]VisualNode, []VisualEdge, map[string][]string) {
	layoutFn := opts.Layout
	if layoutFn == nil {
		layoutFn = Layout
	}

	nodes := filteredNodes(graph, opts.NodeFilter)
	edges := filteredEdges(graph, opts.NodeFilter)

	sort.SliceStable(nodes, func(i, j int) bool {
		if w1, w2 := nodes[i].Presence.Weight(), nodes[j].Presence.Weight(); w1 != w2 {
			return w1 < w2
		}
		return nodes[i].ID < nodes[j].ID
	})
	sort.SliceStable(edges, func(i, j int) bool {
		if w1, w2 := edges[i].Presence.Weight(), edges[j].Presence.Weight(); w1 != w2 {
			return w1 < w2
		}
		return edges[i].ID < edges[j].ID
	})

	nodeColumns := make(map[string][]string)
	visualNodes := make([]VisualNode, 0, len(nodes))
	for _, n := range nodes {
		cols := columnsFor(n, opts)
		if len(cols) > 0 {
			nodeColumns[n.ID] = cols
		}
		visualNodes = append(visualNodes, VisualNode{
			ID:           n.ID,
			NodeID:       n.ID,
			Kind:         KindModel,
			Name:         n.Name,
			ResourceType: n.ResourceType,
			PackageName:  n.PackageName,
			Presence:     n.Presence,
			ChangeStatus: n.ChangeStatus,
			Width:        NodeWidth,
			Height:       BaseNodeHeight + ColumnHeight*float64(len(cols)),
		})
	}

	visualEdges := make([]VisualEdge, 0, len(edges))
	for _, e := range edges {
		visualEdges = append(visualEdges, VisualEdge{
			ID:           e.ID,
			From:         e.ParentID,
			To:           e.ChildID,
			Kind:         KindModel,
			Presence:     e.Presence,
			ChangeStatus: e.ChangeStatus,
		})
	}

	positions := layoutFn(layoutNodes(visualNodes), layoutEdges(visualEdges), domain.LayoutLeftToRight)
	for i := range visualNodes {
		pos := positions[visualNodes[i].ID]
		visualNodes[i].X = pos.X
		visualNodes[i].Y = pos.Y
	}

	columnNodes, columnEdges := expandColumns(graph, visualNodes, nodeColumns, opts)
	visualNodes = append(visualNodes, columnNodes...)
	visualEdges = append(visualEdges, columnEdges...)

	return visualNodes, visualEdges, nodeColumns
}

func filteredNodes(graph *domain.LineageGraph, filter map[string]struct{}) []*domain.LineageNode {
	out := make([]*domain.LineageNode, 0, len(graph.Nodes))
	for id, n := range graph.Nodes {
		if filter != nil {
			if _, ok := filter[id]; !ok {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func filteredEdges(graph *domain.LineageGraph, filter map[string]struct{}) []*domain.LineageEdge {
	out := make([]*domain.LineageEdge, 0, len(graph.Edges))
	for _, e := range graph.Edges {
		if filter != nil {
			if _, ok := filter[e.ParentID]; !ok {
				continue
			}
			if _, ok := filter[e.ChildID]; !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// columnsFor resolves which column sub-nodes a node materializes.
// Column lineage data wins; otherwise breaking-change mode expands the
// recorded per-column change map. The two modes are mutually exclusive
// per node.
func columnsFor(n *domain.LineageNode, opts Options) []string {
	if lineage, ok := opts.ColumnLineage[n.ID]; ok && len(lineage) > 0 {
		cols := make([]string, 0, len(lineage))
		for _, cl := range lineage {
			cols = append(cols, cl.Column)
		}
		return cols
	}
	if opts.BreakingChangeEnabled && n.Change != nil && len(n.Change.Columns) > 0 {
		cols := make([]string, 0, len(n.Change.Columns))
		for col := range n.Change.Columns {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		return cols
	}
	return nil
}

// expandColumns materializes column sub-nodes inside their owning
// node's bounding box, plus edges to their immediate column-level
// parents. Edges whose parent column was not emitted are dropped.
func expandColumns(graph *domain.LineageGraph, modelNodes []VisualNode, nodeColumns map[string][]string, opts Options) ([]VisualNode, []VisualEdge) {
	modelPos := make(map[string]VisualNode, len(modelNodes))
	for _, vn := range modelNodes {
		modelPos[vn.NodeID] = vn
	}

	emitted := make(map[string]struct{})
	var columnNodes []VisualNode
	for _, vn := range modelNodes {
		cols := nodeColumns[vn.NodeID]
		node := graph.Nodes[vn.NodeID]
		for i, col := range cols {
			id := columnVisualID(vn.NodeID, col)
			emitted[id] = struct{}{}
			columnNodes = append(columnNodes, VisualNode{
				ID:           id,
				NodeID:       vn.NodeID,
				Kind:         KindColumn,
				Name:         col,
				Presence:     node.Presence,
				ChangeStatus: columnStatus(node, col),
				Width:        NodeWidth,
				Height:       ColumnHeight,
				X:            vn.X,
				Y:            vn.Y + BaseNodeHeight + ColumnHeight*float64(i),
			})
		}
	}

	var columnEdges []VisualEdge
	for _, vn := range modelNodes {
		for _, cl := range opts.ColumnLineage[vn.NodeID] {
			childID := columnVisualID(vn.NodeID, cl.Column)
			if _, ok := emitted[childID]; !ok {
				continue
			}
			for _, parent := range cl.Parents {
				parentID := columnVisualID(parent.NodeID, parent.Column)
				if _, ok := emitted[parentID]; !ok {
					continue
				}
				columnEdges = append(columnEdges, VisualEdge{
					ID:       domain.EdgeID(parentID, childID),
					From:     parentID,
					To:       childID,
					Kind:     KindColumn,
					Presence: domain.PresenceBoth,
				})
			}
		}
	}
	return columnNodes, columnEdges
}

// columnStatus returns the recorded change status for a column when the
// node carries a per-column change map.
func columnStatus(n *domain.LineageNode, col string) domain.ChangeStatus {
	if n.Change == nil {
		return ""
	}
	return n.Change.Columns[col]
}

func columnVisualID(nodeID, column string) string {
	return nodeID + columnIDSep + column
}

func layoutNodes(nodes []VisualNode) []domain.LayoutNode {
	out := make([]domain.LayoutNode, len(nodes))
	for i, n := range nodes {
		out[i] = domain.LayoutNode{ID: n.ID, Width: n.Width, Height: n.Height}
	}
	return out
}

func layoutEdges(edges []VisualEdge) []domain.LayoutEdge {
	out := make([]domain.LayoutEdge, len(edges))
	for i, e := range edges {
		out[i] = domain.LayoutEdge{From: e.From, To: e.To}
	}
	return out
}
