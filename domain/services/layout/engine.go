// Package layout computes the layered (Sugiyama-style) arrangement of a
// sitemap tree. The engine is pure: it ignores incoming positions and
// returns the same coordinates for the same nodes, edges and direction.
package layout

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"sitemap-backend/domain/core/canvas"
	"sitemap-backend/domain/core/valueobjects"
)

// Result is a laid-out copy of the input. Node positions are top-left anchored.
type Result struct {
	Nodes []canvas.Node
	Edges []canvas.Edge
	// Cyclic is set when the edges contain a cycle. Coordinates are still
	// produced but carry no meaning for the nodes on the cycle.
	Cyclic bool
}

// Engine runs the layered layout with a fixed geometry
type Engine struct {
	mu   sync.RWMutex
	opts Options
}

// NewEngine creates a layout engine
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Options returns the engine geometry
func (e *Engine) Options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// SetOptions replaces the geometry for subsequent runs
func (e *Engine) SetOptions(opts Options) {
	e.mu.Lock()
	e.opts = opts
	e.mu.Unlock()
}

// Layout assigns every node a new top-left position. Edges are returned
// unchanged. Input order is preserved.
func (e *Engine) Layout(nodes []canvas.Node, edges []canvas.Edge, dir Direction) Result {
	opts := e.Options()
	centers, cyclic := centersFor(opts, nodes, edges, dir)

	out := make([]canvas.Node, len(nodes))
	for i, n := range nodes {
		c := centers[n.ID]
		n.Position = canvas.Point{
			X: c.X - opts.NodeWidth/2,
			Y: c.Y - opts.NodeHeight/2,
		}
		out[i] = n
	}

	outEdges := make([]canvas.Edge, len(edges))
	copy(outEdges, edges)

	return Result{Nodes: out, Edges: outEdges, Cyclic: cyclic}
}

// Centers returns the box centre of every node, keyed by id
func (e *Engine) Centers(nodes []canvas.Node, edges []canvas.Edge, dir Direction) map[valueobjects.NodeID]canvas.Point {
	centers, _ := centersFor(e.Options(), nodes, edges, dir)
	return centers
}

// layered holds the working state of one layout run. order lists the
// distinct node ids in input order and position maps an id back to it.
type layered struct {
	g        *simple.DirectedGraph
	order    []int64
	position map[int64]int
	isRoot   map[int64]bool
	rank     map[int64]int
	kids     map[int64][]int64
	cross    map[int64]float64
}

func centersFor(opts Options, nodes []canvas.Node, edges []canvas.Edge, dir Direction) (map[valueobjects.NodeID]canvas.Point, bool) {
	l := build(nodes, edges)
	_, err := topo.Sort(l.g)
	cyclic := err != nil

	l.assignRanks()
	roots := l.layoutForest()

	rankBox, crossBox := opts.axes(dir)
	rankStep := rankBox + opts.RankSpacing
	slotStep := crossBox + opts.NodeSpacing

	l.cross = make(map[int64]float64, len(l.order))
	slot := 0
	for _, r := range roots {
		slot = l.placeSubtree(r, slot, slotStep, crossBox)
	}

	centers := make(map[valueobjects.NodeID]canvas.Point, len(nodes))
	for _, n := range nodes {
		id := n.ID.Int64()
		along := float64(l.rank[id])*rankStep + rankBox/2
		across := l.cross[id]
		if dir == TopToBottom {
			centers[n.ID] = canvas.Point{X: across, Y: along}
		} else {
			centers[n.ID] = canvas.Point{X: along, Y: across}
		}
	}
	return centers, cyclic
}

// build loads the vertices and the usable edges into a gonum graph.
// Edges with an unknown endpoint, self loops and duplicates are ignored.
func build(nodes []canvas.Node, edges []canvas.Edge) *layered {
	l := &layered{
		g:        simple.NewDirectedGraph(),
		order:    make([]int64, 0, len(nodes)),
		position: make(map[int64]int, len(nodes)),
		isRoot:   make(map[int64]bool, len(nodes)),
	}
	for _, n := range nodes {
		id := n.ID.Int64()
		if _, dup := l.position[id]; dup {
			continue
		}
		l.position[id] = len(l.order)
		l.order = append(l.order, id)
		l.isRoot[id] = n.Type == canvas.TypeRoot
		l.g.AddNode(simple.Node(id))
	}
	for _, edge := range edges {
		from, to := edge.Source.Int64(), edge.Target.Int64()
		if from == to {
			continue
		}
		if _, ok := l.position[from]; !ok {
			continue
		}
		if _, ok := l.position[to]; !ok {
			continue
		}
		if l.g.HasEdgeFromTo(from, to) {
			continue
		}
		l.g.SetEdge(l.g.NewEdge(simple.Node(from), simple.Node(to)))
	}
	return l
}

// successors returns the targets of id's out-edges in input order
func (l *layered) successors(id int64) []int64 {
	it := l.g.From(id)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return l.position[out[i]] < l.position[out[j]] })
	return out
}

// predecessors returns the sources of id's in-edges in input order
func (l *layered) predecessors(id int64) []int64 {
	it := l.g.To(id)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	sort.Slice(out, func(i, j int) bool { return l.position[out[i]] < l.position[out[j]] })
	return out
}

// assignRanks is a longest-path layering via Kahn's algorithm. Nodes on a
// cycle never reach zero in-degree and stay on rank 0.
func (l *layered) assignRanks() {
	l.rank = make(map[int64]int, len(l.order))
	inDegree := make(map[int64]int, len(l.order))
	queue := make([]int64, 0, len(l.order))

	for _, id := range l.order {
		d := l.g.To(id).Len()
		inDegree[id] = d
		if d == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, child := range l.successors(curr) {
			if r := l.rank[curr] + 1; r > l.rank[child] {
				l.rank[child] = r
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
}

// layoutForest picks for every node one primary parent exactly one rank
// above it and returns the forest roots, the sitemap root first.
func (l *layered) layoutForest() []int64 {
	l.kids = make(map[int64][]int64, len(l.order))
	var roots []int64
	for _, id := range l.order {
		parent, ok := int64(0), false
		for _, p := range l.predecessors(id) {
			if l.rank[p] == l.rank[id]-1 {
				parent, ok = p, true
				break
			}
		}
		if ok {
			l.kids[parent] = append(l.kids[parent], id)
		} else {
			roots = append(roots, id)
		}
	}
	sort.SliceStable(roots, func(i, j int) bool {
		return l.isRoot[roots[i]] && !l.isRoot[roots[j]]
	})
	return roots
}

// placeSubtree gives each leaf its own slot on the sibling axis and centres
// every parent between its first and last child. Returns the next free slot.
func (l *layered) placeSubtree(id int64, slot int, slotStep, crossBox float64) int {
	kids := l.kids[id]
	if len(kids) == 0 {
		l.cross[id] = float64(slot)*slotStep + crossBox/2
		return slot + 1
	}
	for _, k := range kids {
		slot = l.placeSubtree(k, slot, slotStep, crossBox)
	}
	l.cross[id] = (l.cross[kids[0]] + l.cross[kids[len(kids)-1]]) / 2
	return slot
}
