package ports

import (
	"context"

	"sitemap-backend/application/session"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/events"
)

// NodeStore is the persistent collection of sitemap pages.
// Implementations return pkg/errors NotFound errors for unknown nodes.
type NodeStore interface {
	// ListBySitemap returns every node of a sitemap in stable order
	ListBySitemap(ctx context.Context, sitemapID valueobjects.SitemapID) ([]*entities.Node, error)

	// UpdatePosition writes a single node's coordinates
	UpdatePosition(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error

	// UpdateParent moves a node under a new parent
	UpdateParent(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID, parentID valueobjects.NodeID) error

	// Delete removes a node
	Delete(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) error

	// Upsert writes a whole node, used for seeding and imports
	Upsert(ctx context.Context, node *entities.Node) error
}

// SessionStore keeps open editor sessions between requests
type SessionStore interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Put(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
}

// EventPublisher publishes domain events to interested consumers
type EventPublisher interface {
	Publish(ctx context.Context, events ...events.DomainEvent) error
}

// SaveGuard prevents two saves of the same session from running at once
type SaveGuard interface {
	// TryAcquire returns ok=false without blocking when key is held.
	// release must be called once when ok is true.
	TryAcquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// HealthChecker is implemented by stores that can report readiness
type HealthChecker interface {
	Ping(ctx context.Context) error
}
