package decorators

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sitemap-backend/application/ports"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/pkg/observability"
)

// InstrumentedNodeStore records a span and store metrics for every call
type InstrumentedNodeStore struct {
	inner   ports.NodeStore
	name    string
	metrics *observability.Collector
}

// NewInstrumentedNodeStore wraps inner, labelling metrics with name
func NewInstrumentedNodeStore(inner ports.NodeStore, name string, metrics *observability.Collector) *InstrumentedNodeStore {
	return &InstrumentedNodeStore{inner: inner, name: name, metrics: metrics}
}

func (s *InstrumentedNodeStore) observe(ctx context.Context, op string, sitemapID valueobjects.SitemapID, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	attrs = append(attrs,
		attribute.String("store", s.name),
		attribute.Int64("sitemap.id", sitemapID.Int64()),
	)
	ctx, span := observability.StartSpan(ctx, "NodeStore."+op, attrs...)
	start := time.Now()

	err := fn(ctx)

	s.metrics.ObserveStore(op, s.name, err, time.Since(start))
	observability.EndSpan(span, err)
	return err
}

// ListBySitemap implements ports.NodeStore
func (s *InstrumentedNodeStore) ListBySitemap(ctx context.Context, sitemapID valueobjects.SitemapID) ([]*entities.Node, error) {
	var nodes []*entities.Node
	err := s.observe(ctx, "list", sitemapID, func(ctx context.Context) error {
		var err error
		nodes, err = s.inner.ListBySitemap(ctx, sitemapID)
		return err
	})
	return nodes, err
}

// UpdatePosition implements ports.NodeStore
func (s *InstrumentedNodeStore) UpdatePosition(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error {
	return s.observe(ctx, "update_position", sitemapID, func(ctx context.Context) error {
		return s.inner.UpdatePosition(ctx, sitemapID, nodeID, pos)
	}, attribute.Int64("node.id", nodeID.Int64()))
}

// UpdateParent implements ports.NodeStore
func (s *InstrumentedNodeStore) UpdateParent(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID, parentID valueobjects.NodeID) error {
	return s.observe(ctx, "update_parent", sitemapID, func(ctx context.Context) error {
		return s.inner.UpdateParent(ctx, sitemapID, nodeID, parentID)
	}, attribute.Int64("node.id", nodeID.Int64()), attribute.Int64("node.parent_id", parentID.Int64()))
}

// Delete implements ports.NodeStore
func (s *InstrumentedNodeStore) Delete(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) error {
	return s.observe(ctx, "delete", sitemapID, func(ctx context.Context) error {
		return s.inner.Delete(ctx, sitemapID, nodeID)
	}, attribute.Int64("node.id", nodeID.Int64()))
}

// Upsert implements ports.NodeStore
func (s *InstrumentedNodeStore) Upsert(ctx context.Context, node *entities.Node) error {
	return s.observe(ctx, "upsert", node.SitemapID(), func(ctx context.Context) error {
		return s.inner.Upsert(ctx, node)
	}, attribute.Int64("node.id", node.ID().Int64()))
}

// Ping passes through to the wrapped store when it supports health checks
func (s *InstrumentedNodeStore) Ping(ctx context.Context) error {
	if hc, ok := s.inner.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}
