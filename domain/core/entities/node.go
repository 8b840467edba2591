package entities

import (
	"time"

	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/events"
	pkgerrors "sitemap-backend/pkg/errors"
)

// NodeStatus is the content-generation status of a page. The editor core
// carries it through untouched.
type NodeStatus string

const (
	StatusPlanned   NodeStatus = "planned"
	StatusDrafted   NodeStatus = "drafted"
	StatusPublished NodeStatus = "published"
)

// Node is one page of a sitemap tree.
// Hierarchy is expressed only through the parent reference; edges are derived.
type Node struct {
	id         valueobjects.NodeID
	sitemapID  valueobjects.SitemapID
	content    valueobjects.PageContent
	parentID   *valueobjects.NodeID
	isRoot     bool
	position   *valueobjects.Position
	status     NodeStatus
	attributes map[string]string
	updatedAt  time.Time
	version    int

	events []events.DomainEvent
}

// NodeSnapshot is the flat form stores and codecs exchange with the entity
type NodeSnapshot struct {
	ID         valueobjects.NodeID    `json:"id"`
	SitemapID  valueobjects.SitemapID `json:"sitemapId"`
	Title      string                 `json:"title"`
	Path       string                 `json:"path,omitempty"`
	ParentID   *valueobjects.NodeID   `json:"parentId,omitempty"`
	IsRoot     bool                   `json:"isRoot"`
	Position   *valueobjects.Position `json:"position,omitempty"`
	Status     NodeStatus             `json:"status"`
	Attributes map[string]string      `json:"attributes,omitempty"`
	UpdatedAt  time.Time              `json:"updatedAt"`
	Version    int                    `json:"version"`
}

// ReconstructNode rebuilds a node from stored data
func ReconstructNode(s NodeSnapshot) (*Node, error) {
	if s.ID.IsZero() {
		return nil, pkgerrors.NewValidationError("node ID cannot be empty")
	}
	if s.SitemapID.IsZero() {
		return nil, pkgerrors.NewValidationError("sitemap ID cannot be empty")
	}
	if s.IsRoot && s.ParentID != nil {
		return nil, pkgerrors.NewValidationError("root node cannot have a parent")
	}
	if s.ParentID != nil && s.ParentID.Equals(s.ID) {
		return nil, pkgerrors.NewValidationError("node cannot be its own parent")
	}

	content, err := valueobjects.NewPageContent(s.Title, s.Path)
	if err != nil {
		return nil, err
	}

	node := &Node{
		id:         s.ID,
		sitemapID:  s.SitemapID,
		content:    content,
		isRoot:     s.IsRoot,
		status:     s.Status,
		attributes: copyAttributes(s.Attributes),
		updatedAt:  s.UpdatedAt,
		version:    s.Version,
		events:     []events.DomainEvent{},
	}
	if s.ParentID != nil {
		parent := *s.ParentID
		node.parentID = &parent
	}
	if s.Position != nil {
		pos := *s.Position
		node.position = &pos
	}
	if node.status == "" {
		node.status = StatusPlanned
	}
	if node.version == 0 {
		node.version = 1
	}
	return node, nil
}

// ID returns the node's identifier
func (n *Node) ID() valueobjects.NodeID {
	return n.id
}

// SitemapID returns the sitemap this node belongs to
func (n *Node) SitemapID() valueobjects.SitemapID {
	return n.sitemapID
}

// Content returns the node's title and path
func (n *Node) Content() valueobjects.PageContent {
	return n.content
}

// ParentID returns the parent reference, if any
func (n *Node) ParentID() (valueobjects.NodeID, bool) {
	if n.parentID == nil {
		return valueobjects.NodeID{}, false
	}
	return *n.parentID, true
}

// IsRoot reports whether this is the sitemap's root page
func (n *Node) IsRoot() bool {
	return n.isRoot
}

// Position returns the stored position, if one was ever assigned
func (n *Node) Position() (valueobjects.Position, bool) {
	if n.position == nil {
		return valueobjects.Position{}, false
	}
	return *n.position, true
}

// PositionOrOrigin returns the position, defaulting absent coordinates to (0,0)
func (n *Node) PositionOrOrigin() valueobjects.Position {
	if n.position == nil {
		return valueobjects.Origin()
	}
	return *n.position
}

// HasPosition reports whether a position was assigned
func (n *Node) HasPosition() bool {
	return n.position != nil
}

// Status returns the node's generation status
func (n *Node) Status() NodeStatus {
	return n.status
}

// Attributes returns a copy of the opaque attributes
func (n *Node) Attributes() map[string]string {
	return copyAttributes(n.attributes)
}

// Version returns the node's version
func (n *Node) Version() int {
	return n.version
}

// UpdatedAt returns when the node was last updated
func (n *Node) UpdatedAt() time.Time {
	return n.updatedAt
}

// MoveTo places the node at a new top-left position
func (n *Node) MoveTo(position valueobjects.Position) {
	pos := position
	n.position = &pos
	n.updatedAt = time.Now()
}

// ClearPosition forgets the node's position
func (n *Node) ClearPosition() {
	n.position = nil
	n.updatedAt = time.Now()
}

// Reparent moves the node under a new parent. Cycle checks need the whole
// tree and live in the Sitemap aggregate.
func (n *Node) Reparent(parent valueobjects.NodeID) error {
	if n.isRoot {
		return pkgerrors.NewValidationError("root node cannot be reparented")
	}
	if parent.Equals(n.id) {
		return pkgerrors.NewValidationError("node cannot be its own parent")
	}

	var old *valueobjects.NodeID
	if n.parentID != nil {
		if n.parentID.Equals(parent) {
			return nil
		}
		prev := *n.parentID
		old = &prev
	}

	p := parent
	n.parentID = &p
	n.version++
	n.updatedAt = time.Now()
	n.addEvent(events.NewNodeReparented(n.sitemapID, n.id, old, parent, n.updatedAt))
	return nil
}

// Snapshot flattens the node for stores and codecs
func (n *Node) Snapshot() NodeSnapshot {
	s := NodeSnapshot{
		ID:         n.id,
		SitemapID:  n.sitemapID,
		Title:      n.content.Title(),
		Path:       n.content.Path(),
		IsRoot:     n.isRoot,
		Status:     n.status,
		Attributes: copyAttributes(n.attributes),
		UpdatedAt:  n.updatedAt,
		Version:    n.version,
	}
	if n.parentID != nil {
		p := *n.parentID
		s.ParentID = &p
	}
	if n.position != nil {
		pos := *n.position
		s.Position = &pos
	}
	return s
}

// Clone returns an independent copy without pending events
func (n *Node) Clone() *Node {
	clone, _ := ReconstructNode(n.Snapshot())
	return clone
}

// GetUncommittedEvents returns all uncommitted domain events
func (n *Node) GetUncommittedEvents() []events.DomainEvent {
	return n.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (n *Node) MarkEventsAsCommitted() {
	n.events = []events.DomainEvent{}
}

func (n *Node) addEvent(event events.DomainEvent) {
	n.events = append(n.events, event)
}

func copyAttributes(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
