package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sitemap-backend/application/ports"
	"sitemap-backend/application/session"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/services/dirty"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/pkg/observability"
)

// SaveResult describes a completed save
type SaveResult struct {
	Persisted int
	Written   dirty.Snapshot
	Duration  time.Duration
}

// SaveError reports a save that stopped part way. Positions written before
// the failure stay written.
type SaveError struct {
	Persisted    int
	FailedNodeID valueobjects.NodeID
	Cause        error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save stopped at node %s after %d writes: %v", e.FailedNodeID, e.Persisted, e.Cause)
}

func (e *SaveError) Unwrap() error {
	return e.Cause
}

// PersistenceBridge writes live positions to the node store
type PersistenceBridge struct {
	store  ports.NodeStore
	logger *zap.Logger
}

// NewPersistenceBridge creates a persistence bridge
func NewPersistenceBridge(store ports.NodeStore, logger *zap.Logger) *PersistenceBridge {
	return &PersistenceBridge{store: store, logger: logger}
}

// Save writes every live node's position, one request at a time and in
// collection order. On success the session is rebaselined to the written
// positions. On the first failure it stops and the session keeps its
// baseline, so it stays dirty.
func (b *PersistenceBridge) Save(ctx context.Context, sess *session.Session) (SaveResult, error) {
	// a started save runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)
	ctx, span := observability.StartSpan(ctx, "PersistenceBridge.Save",
		attribute.String("session.id", sess.ID()),
		attribute.Int64("sitemap.id", sess.SitemapID().Int64()),
	)

	start := time.Now()
	nodes := sess.Nodes()
	written := make(dirty.Snapshot, len(nodes))

	for i, n := range nodes {
		pos := n.PositionOrOrigin()
		if err := b.store.UpdatePosition(ctx, sess.SitemapID(), n.ID(), pos); err != nil {
			saveErr := &SaveError{Persisted: i, FailedNodeID: n.ID(), Cause: err}
			b.logger.Warn("Layout save stopped",
				zap.String("session_id", sess.ID()),
				zap.Int64("sitemap_id", sess.SitemapID().Int64()),
				zap.Int64("failed_node_id", n.ID().Int64()),
				zap.Int("persisted", i),
				zap.Error(err),
			)
			observability.EndSpan(span, saveErr)
			return SaveResult{Persisted: i, Written: written, Duration: time.Since(start)},
				pkgerrors.NewExternalError("node store", saveErr).
					WithCode(pkgerrors.CodePartialSave).
					WithDetails(map[string]interface{}{
						"persisted":    i,
						"failedNodeId": n.ID().Int64(),
					})
		}
		written[n.ID()] = pos
	}

	sess.Rebaseline(written)
	result := SaveResult{Persisted: len(nodes), Written: written, Duration: time.Since(start)}

	b.logger.Info("Layout saved",
		zap.String("session_id", sess.ID()),
		zap.Int64("sitemap_id", sess.SitemapID().Int64()),
		zap.Int("persisted", result.Persisted),
		zap.Duration("duration", result.Duration),
	)
	span.SetAttributes(attribute.Int("save.persisted", result.Persisted))
	observability.EndSpan(span, nil)
	return result, nil
}
