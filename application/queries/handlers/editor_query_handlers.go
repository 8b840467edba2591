package handlers

import (
	"context"
	"fmt"

	"sitemap-backend/application/queries"
	"sitemap-backend/application/queries/bus"
	"sitemap-backend/application/services"
	"sitemap-backend/domain/core/valueobjects"
)

// EditorQueryHandlers answers read-only questions about editor sessions
type EditorQueryHandlers struct {
	editor *services.EditorService
}

// NewEditorQueryHandlers creates the editor query handlers
func NewEditorQueryHandlers(editor *services.EditorService) *EditorQueryHandlers {
	return &EditorQueryHandlers{editor: editor}
}

// Register installs a handler for every editor query
func (h *EditorQueryHandlers) Register(b *bus.QueryBus) error {
	if err := b.Register(queries.GetSessionViewQuery{}, bus.QueryHandlerFunc(h.getView)); err != nil {
		return err
	}
	if err := b.Register(queries.GetDirtyStateQuery{}, bus.QueryHandlerFunc(h.getDirty)); err != nil {
		return err
	}
	return b.Register(queries.GetDescendantsQuery{}, bus.QueryHandlerFunc(h.getDescendants))
}

func (h *EditorQueryHandlers) getView(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetSessionViewQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.editor.View(ctx, query.SessionID)
}

func (h *EditorQueryHandlers) getDirty(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetDirtyStateQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	return h.editor.Dirty(ctx, query.SessionID)
}

func (h *EditorQueryHandlers) getDescendants(ctx context.Context, q bus.Query) (interface{}, error) {
	query, ok := q.(queries.GetDescendantsQuery)
	if !ok {
		return nil, fmt.Errorf("unexpected query type %T", q)
	}
	nodeID, err := valueobjects.NewNodeID(query.NodeID)
	if err != nil {
		return nil, err
	}
	ids, err := h.editor.Descendants(ctx, query.SessionID, nodeID)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = id.Int64()
	}
	return &queries.DescendantsResult{NodeID: query.NodeID, Descendants: out}, nil
}
