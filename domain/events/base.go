package events

import (
	"time"

	"sitemap-backend/domain/core/valueobjects"
)

// SourceEditor is the event source used when publishing to the event bus
const SourceEditor = "sitemap.editor"

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Event types
const (
	TypeNodeMoved        = "sitemap.node_moved"
	TypeNodeReparented   = "sitemap.node_reparented"
	TypeNodeDeleted      = "sitemap.node_deleted"
	TypeLayoutApplied    = "sitemap.layout_applied"
	TypeLayoutSaved      = "sitemap.layout_saved"
	TypeLayoutSaveFailed = "sitemap.layout_save_failed"
)

// Layout triggers
const (
	TriggerLoad   = "load"
	TriggerManual = "manual"
)

// Node Events

// NodeMoved is raised when a node is dragged to a new position
type NodeMoved struct {
	BaseEvent
	SitemapID   valueobjects.SitemapID `json:"sitemap_id"`
	NodeID      valueobjects.NodeID    `json:"node_id"`
	OldPosition valueobjects.Position  `json:"old_position"`
	NewPosition valueobjects.Position  `json:"new_position"`
}

// NewNodeMoved creates a NodeMoved event
func NewNodeMoved(sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, oldPos, newPos valueobjects.Position, timestamp time.Time) NodeMoved {
	return NodeMoved{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   TypeNodeMoved,
			Timestamp:   timestamp,
			Version:     1,
		},
		SitemapID:   sitemapID,
		NodeID:      nodeID,
		OldPosition: oldPos,
		NewPosition: newPos,
	}
}

// NodeReparented is raised when a connection gesture moves a node under a new parent
type NodeReparented struct {
	BaseEvent
	SitemapID valueobjects.SitemapID `json:"sitemap_id"`
	NodeID    valueobjects.NodeID    `json:"node_id"`
	OldParent *valueobjects.NodeID   `json:"old_parent,omitempty"`
	NewParent valueobjects.NodeID    `json:"new_parent"`
}

// NewNodeReparented creates a NodeReparented event
func NewNodeReparented(sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, oldParent *valueobjects.NodeID, newParent valueobjects.NodeID, timestamp time.Time) NodeReparented {
	return NodeReparented{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   TypeNodeReparented,
			Timestamp:   timestamp,
			Version:     1,
		},
		SitemapID: sitemapID,
		NodeID:    nodeID,
		OldParent: oldParent,
		NewParent: newParent,
	}
}

// NodeDeleted is raised when a node is removed from the sitemap
type NodeDeleted struct {
	BaseEvent
	SitemapID valueobjects.SitemapID `json:"sitemap_id"`
	NodeID    valueobjects.NodeID    `json:"node_id"`
}

// NewNodeDeleted creates a NodeDeleted event
func NewNodeDeleted(sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, timestamp time.Time) NodeDeleted {
	return NodeDeleted{
		BaseEvent: BaseEvent{
			AggregateID: nodeID.String(),
			EventType:   TypeNodeDeleted,
			Timestamp:   timestamp,
			Version:     1,
		},
		SitemapID: sitemapID,
		NodeID:    nodeID,
	}
}

// Layout Events

// LayoutApplied is raised when the layered layout rewrote every node position
type LayoutApplied struct {
	BaseEvent
	SitemapID valueobjects.SitemapID `json:"sitemap_id"`
	SessionID string                 `json:"session_id"`
	Trigger   string                 `json:"trigger"`
	Direction string                 `json:"direction"`
	NodeCount int                    `json:"node_count"`
}

// NewLayoutApplied creates a LayoutApplied event
func NewLayoutApplied(sitemapID valueobjects.SitemapID, sessionID, trigger, direction string, nodeCount int, timestamp time.Time) LayoutApplied {
	return LayoutApplied{
		BaseEvent: BaseEvent{
			AggregateID: sitemapID.String(),
			EventType:   TypeLayoutApplied,
			Timestamp:   timestamp,
			Version:     1,
		},
		SitemapID: sitemapID,
		SessionID: sessionID,
		Trigger:   trigger,
		Direction: direction,
		NodeCount: nodeCount,
	}
}

// LayoutSaved is raised after every node position was written
type LayoutSaved struct {
	BaseEvent
	SitemapID valueobjects.SitemapID `json:"sitemap_id"`
	SessionID string                 `json:"session_id"`
	NodeCount int                    `json:"node_count"`
}

// NewLayoutSaved creates a LayoutSaved event
func NewLayoutSaved(sitemapID valueobjects.SitemapID, sessionID string, nodeCount int, timestamp time.Time) LayoutSaved {
	return LayoutSaved{
		BaseEvent: BaseEvent{
			AggregateID: sitemapID.String(),
			EventType:   TypeLayoutSaved,
			Timestamp:   timestamp,
			Version:     1,
		},
		SitemapID: sitemapID,
		SessionID: sessionID,
		NodeCount: nodeCount,
	}
}

// LayoutSaveFailed is raised when a save stopped part way; the nodes
// written before the failure stay written
type LayoutSaveFailed struct {
	BaseEvent
	SitemapID    valueobjects.SitemapID `json:"sitemap_id"`
	SessionID    string                 `json:"session_id"`
	Persisted    int                    `json:"persisted"`
	FailedNodeID valueobjects.NodeID    `json:"failed_node_id"`
	Reason       string                 `json:"reason"`
}

// NewLayoutSaveFailed creates a LayoutSaveFailed event
func NewLayoutSaveFailed(sitemapID valueobjects.SitemapID, sessionID string, persisted int, failed valueobjects.NodeID, reason string, timestamp time.Time) LayoutSaveFailed {
	return LayoutSaveFailed{
		BaseEvent: BaseEvent{
			AggregateID: sitemapID.String(),
			EventType:   TypeLayoutSaveFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		SitemapID:    sitemapID,
		SessionID:    sessionID,
		Persisted:    persisted,
		FailedNodeID: failed,
		Reason:       reason,
	}
}
