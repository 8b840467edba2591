// Package canvas projects sitemap nodes into the vertex and edge shapes the
// graph view renders. Edges are never stored: they are derived from the
// parent references each time the node collection is projected.
package canvas

import (
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
)

// Vertex types
const (
	TypeRoot = "root"
	TypePage = "page"
)

// EdgeTypeSmoothStep is the routing hint the graph view understands
const EdgeTypeSmoothStep = "smoothstep"

// Point is a plain canvas coordinate
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the payload rendered inside a vertex
type NodeData struct {
	Title  string              `json:"title"`
	Path   string              `json:"path,omitempty"`
	Status entities.NodeStatus `json:"status,omitempty"`
	IsRoot bool                `json:"isRoot"`
}

// Node is a renderable vertex. Position is the box's top-left corner.
type Node struct {
	ID       valueobjects.NodeID `json:"id"`
	Type     string              `json:"type"`
	Position Point               `json:"position"`
	Data     NodeData            `json:"data"`
	Selected bool                `json:"selected"`
}

// Edge is a renderable parent->child connection
type Edge struct {
	ID       valueobjects.EdgeID `json:"id"`
	Source   valueobjects.NodeID `json:"source"`
	Target   valueobjects.NodeID `json:"target"`
	Type     string              `json:"type"`
	Animated bool                `json:"animated"`
}

// ToNodes maps each node to exactly one vertex, in input order. Absent
// coordinates are rendered at the origin.
func ToNodes(nodes []*entities.Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		pos := n.PositionOrOrigin()
		vertexType := TypePage
		if n.IsRoot() {
			vertexType = TypeRoot
		}
		out = append(out, Node{
			ID:       n.ID(),
			Type:     vertexType,
			Position: Point{X: pos.X(), Y: pos.Y()},
			Data: NodeData{
				Title:  n.Content().Title(),
				Path:   n.Content().Path(),
				Status: n.Status(),
				IsRoot: n.IsRoot(),
			},
		})
	}
	return out
}

// ToEdges emits one edge per non-null parent reference, in input order.
// Parents missing from the collection still produce an edge.
func ToEdges(nodes []*entities.Node) []Edge {
	out := make([]Edge, 0, len(nodes))
	for _, n := range nodes {
		parent, ok := n.ParentID()
		if !ok {
			continue
		}
		out = append(out, Edge{
			ID:     valueobjects.NewEdgeID(parent, n.ID()),
			Source: parent,
			Target: n.ID(),
			Type:   EdgeTypeSmoothStep,
		})
	}
	return out
}

// Positions extracts the vertex positions keyed by id
func Positions(vertices []Node) map[valueobjects.NodeID]Point {
	out := make(map[valueobjects.NodeID]Point, len(vertices))
	for _, v := range vertices {
		out[v.ID] = v.Position
	}
	return out
}
