package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"sitemap-backend/application/commands"
	"sitemap-backend/application/commands/bus"
	"sitemap-backend/application/services"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/domain/services/selection"
)

// EditorHandlers adapts the editor service to the command bus
type EditorHandlers struct {
	editor *services.EditorService
	logger *zap.Logger
}

// NewEditorHandlers creates the editor command handlers
func NewEditorHandlers(editor *services.EditorService, logger *zap.Logger) *EditorHandlers {
	return &EditorHandlers{editor: editor, logger: logger}
}

// Register installs a handler for every editor command
func (h *EditorHandlers) Register(b *bus.CommandBus) error {
	routes := []struct {
		cmd     bus.Command
		handler bus.CommandHandlerFunc
	}{
		{commands.OpenSessionCommand{}, h.openSession},
		{commands.ReloadSessionCommand{}, h.reloadSession},
		{commands.AutoLayoutCommand{}, h.autoLayout},
		{commands.MoveNodeCommand{}, h.moveNode},
		{commands.ToggleSubtreeCommand{}, h.toggleSubtree},
		{commands.SetSelectionCommand{}, h.setSelection},
		{commands.BeginConnectCommand{}, h.beginConnect},
		{commands.EndConnectCommand{}, h.endConnect},
		{commands.DeleteNodeCommand{}, h.deleteNode},
		{commands.DeleteSelectedCommand{}, h.deleteSelected},
		{commands.SaveLayoutCommand{}, h.saveLayout},
		{commands.CloseSessionCommand{}, h.closeSession},
	}
	for _, r := range routes {
		if err := b.Register(r.cmd, r.handler); err != nil {
			return err
		}
	}
	return nil
}

func unexpected(cmd bus.Command) error {
	return fmt.Errorf("unexpected command type %T", cmd)
}

func (h *EditorHandlers) openSession(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.OpenSessionCommand)
	if !ok {
		return nil, unexpected(c)
	}
	sitemapID, err := valueobjects.NewSitemapID(cmd.SitemapID)
	if err != nil {
		return nil, err
	}
	dir := layout.Direction("")
	if cmd.Direction != "" {
		if dir, err = layout.ParseDirection(cmd.Direction); err != nil {
			return nil, err
		}
	}
	return h.editor.Open(ctx, services.OpenParams{
		SitemapID: sitemapID,
		UserID:    cmd.UserID,
		Direction: dir,
	})
}

func (h *EditorHandlers) reloadSession(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.ReloadSessionCommand)
	if !ok {
		return nil, unexpected(c)
	}
	return h.editor.Reload(ctx, cmd.SessionID)
}

func (h *EditorHandlers) autoLayout(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.AutoLayoutCommand)
	if !ok {
		return nil, unexpected(c)
	}
	dir := layout.Direction("")
	if cmd.Direction != "" {
		var err error
		if dir, err = layout.ParseDirection(cmd.Direction); err != nil {
			return nil, err
		}
	}
	return h.editor.AutoLayout(ctx, cmd.SessionID, dir)
}

func (h *EditorHandlers) moveNode(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.MoveNodeCommand)
	if !ok {
		return nil, unexpected(c)
	}
	nodeID, err := valueobjects.NewNodeID(cmd.NodeID)
	if err != nil {
		return nil, err
	}
	return h.editor.MoveNode(ctx, cmd.SessionID, nodeID, cmd.X, cmd.Y)
}

func (h *EditorHandlers) toggleSubtree(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.ToggleSubtreeCommand)
	if !ok {
		return nil, unexpected(c)
	}
	nodeID, err := valueobjects.NewNodeID(cmd.NodeID)
	if err != nil {
		return nil, err
	}
	return h.editor.ToggleSubtree(ctx, cmd.SessionID, nodeID)
}

func (h *EditorHandlers) setSelection(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.SetSelectionCommand)
	if !ok {
		return nil, unexpected(c)
	}
	return h.editor.SetSelection(ctx, cmd.SessionID, selection.Source(cmd.Source), commands.NodeIDs(cmd.NodeIDs))
}

func (h *EditorHandlers) beginConnect(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.BeginConnectCommand)
	if !ok {
		return nil, unexpected(c)
	}
	source, err := valueobjects.NewNodeID(cmd.SourceID)
	if err != nil {
		return nil, err
	}
	return nil, h.editor.BeginConnect(ctx, cmd.SessionID, source)
}

func (h *EditorHandlers) endConnect(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.EndConnectCommand)
	if !ok {
		return nil, unexpected(c)
	}
	var target *valueobjects.NodeID
	if cmd.TargetID != nil {
		id, err := valueobjects.NewNodeID(*cmd.TargetID)
		if err != nil {
			return nil, err
		}
		target = &id
	}
	return h.editor.EndConnect(ctx, cmd.SessionID, target)
}

func (h *EditorHandlers) deleteNode(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.DeleteNodeCommand)
	if !ok {
		return nil, unexpected(c)
	}
	nodeID, err := valueobjects.NewNodeID(cmd.NodeID)
	if err != nil {
		return nil, err
	}
	return h.editor.DeleteNode(ctx, cmd.SessionID, nodeID)
}

func (h *EditorHandlers) deleteSelected(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.DeleteSelectedCommand)
	if !ok {
		return nil, unexpected(c)
	}
	result, err := h.editor.DeleteSelected(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if len(result.Skipped) > 0 {
		h.logger.Debug("Bulk delete skipped pages",
			zap.String("session_id", cmd.SessionID),
			zap.Int("skipped", len(result.Skipped)),
		)
	}
	return result, nil
}

func (h *EditorHandlers) saveLayout(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.SaveLayoutCommand)
	if !ok {
		return nil, unexpected(c)
	}
	return h.editor.Save(ctx, cmd.SessionID)
}

func (h *EditorHandlers) closeSession(ctx context.Context, c bus.Command) (interface{}, error) {
	cmd, ok := c.(commands.CloseSessionCommand)
	if !ok {
		return nil, unexpected(c)
	}
	return nil, h.editor.Close(ctx, cmd.SessionID, cmd.Force)
}
