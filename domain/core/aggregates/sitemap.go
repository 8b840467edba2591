package aggregates

import (
	"fmt"
	"time"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/events"
	pkgerrors "sitemap-backend/pkg/errors"
)

// Sitemap is the aggregate root over one sitemap's node collection.
// It owns the insertion order of nodes and a parent->children index that is
// rebuilt whenever the collection or the hierarchy changes.
type Sitemap struct {
	id       valueobjects.SitemapID
	nodes    []*entities.Node
	index    map[valueobjects.NodeID]int
	children map[valueobjects.NodeID][]valueobjects.NodeID
	rootID   *valueobjects.NodeID
	events   []events.DomainEvent
}

// NewSitemap builds the aggregate over nodes in the order given
func NewSitemap(id valueobjects.SitemapID, nodes []*entities.Node) (*Sitemap, error) {
	if id.IsZero() {
		return nil, pkgerrors.NewValidationError("sitemap ID cannot be empty")
	}

	s := &Sitemap{
		id:     id,
		nodes:  make([]*entities.Node, 0, len(nodes)),
		events: []events.DomainEvent{},
	}
	seen := make(map[valueobjects.NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if !n.SitemapID().Equals(id) {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("node %s belongs to sitemap %s", n.ID(), n.SitemapID()))
		}
		if _, dup := seen[n.ID()]; dup {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("duplicate node %s", n.ID()))
		}
		if n.IsRoot() && s.rootID != nil {
			return nil, pkgerrors.NewValidationError("sitemap has more than one root node")
		}
		seen[n.ID()] = struct{}{}
		if n.IsRoot() {
			rid := n.ID()
			s.rootID = &rid
		}
		s.nodes = append(s.nodes, n)
	}
	s.rebuildIndex()
	return s, nil
}

// ID returns the sitemap identifier
func (s *Sitemap) ID() valueobjects.SitemapID {
	return s.id
}

// Nodes returns the nodes in collection order
func (s *Sitemap) Nodes() []*entities.Node {
	out := make([]*entities.Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Len returns the number of nodes
func (s *Sitemap) Len() int {
	return len(s.nodes)
}

// Node looks a node up by id
func (s *Sitemap) Node(id valueobjects.NodeID) (*entities.Node, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.nodes[i], true
}

// Contains reports whether id is part of the collection
func (s *Sitemap) Contains(id valueobjects.NodeID) bool {
	_, ok := s.index[id]
	return ok
}

// Children returns the direct children of id in collection order
func (s *Sitemap) Children(id valueobjects.NodeID) []valueobjects.NodeID {
	kids := s.children[id]
	out := make([]valueobjects.NodeID, len(kids))
	copy(out, kids)
	return out
}

// Root returns the root node if the collection has one
func (s *Sitemap) Root() (*entities.Node, bool) {
	if s.rootID == nil {
		return nil, false
	}
	return s.Node(*s.rootID)
}

// IsAncestor reports whether ancestor appears on node's parent chain.
// Parent chains are followed at most Len() steps so malformed cyclic data
// terminates.
func (s *Sitemap) IsAncestor(ancestor, node valueobjects.NodeID) bool {
	current, ok := s.Node(node)
	for steps := 0; ok && steps <= len(s.nodes); steps++ {
		parent, hasParent := current.ParentID()
		if !hasParent {
			return false
		}
		if parent.Equals(ancestor) {
			return true
		}
		current, ok = s.Node(parent)
	}
	return false
}

// MoveNode places a node at a new position
func (s *Sitemap) MoveNode(id valueobjects.NodeID, pos valueobjects.Position) error {
	n, ok := s.Node(id)
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", id))
	}
	n.MoveTo(pos)
	return nil
}

// Reparent moves node under parent, refusing moves that would put a node
// beneath its own subtree
func (s *Sitemap) Reparent(nodeID, parentID valueobjects.NodeID) error {
	node, ok := s.Node(nodeID)
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", nodeID))
	}
	if !s.Contains(parentID) {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", parentID))
	}
	if s.IsAncestor(nodeID, parentID) {
		return pkgerrors.NewValidationError("cannot move a page beneath its own subtree")
	}
	if err := node.Reparent(parentID); err != nil {
		return err
	}
	s.events = append(s.events, node.GetUncommittedEvents()...)
	node.MarkEventsAsCommitted()
	s.rebuildIndex()
	return nil
}

// Remove deletes a childless, non-root node from the collection
func (s *Sitemap) Remove(id valueobjects.NodeID) error {
	i, ok := s.index[id]
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", id))
	}
	if s.nodes[i].IsRoot() {
		return pkgerrors.NewValidationError("the root page cannot be deleted")
	}
	if len(s.children[id]) > 0 {
		return pkgerrors.NewConflictError(fmt.Sprintf("page %s still has child pages", id))
	}

	s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	s.rebuildIndex()
	s.events = append(s.events, events.NewNodeDeleted(s.id, id, time.Now()))
	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (s *Sitemap) GetUncommittedEvents() []events.DomainEvent {
	return s.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (s *Sitemap) MarkEventsAsCommitted() {
	s.events = []events.DomainEvent{}
}

func (s *Sitemap) rebuildIndex() {
	s.index = make(map[valueobjects.NodeID]int, len(s.nodes))
	s.children = make(map[valueobjects.NodeID][]valueobjects.NodeID)
	for i, n := range s.nodes {
		s.index[n.ID()] = i
	}
	for _, n := range s.nodes {
		if parent, ok := n.ParentID(); ok {
			s.children[parent] = append(s.children[parent], n.ID())
		}
	}
}
