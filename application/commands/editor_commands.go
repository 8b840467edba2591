package commands

import (
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/pkg/utils"
)

// OpenSessionCommand loads a sitemap into a new editing session
type OpenSessionCommand struct {
	SitemapID int64  `json:"sitemapId" validate:"required,gt=0"`
	UserID    string `json:"-"`
	Direction string `json:"direction" validate:"omitempty,oneof=LR TB lr tb"`
}

func (c OpenSessionCommand) Validate() error { return utils.ValidateStruct(c) }

// ReloadSessionCommand discards unsaved moves and reloads from the store
type ReloadSessionCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
}

func (c ReloadSessionCommand) Validate() error { return utils.ValidateStruct(c) }

// AutoLayoutCommand lays out the whole sitemap
type AutoLayoutCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
	Direction string `json:"direction" validate:"omitempty,oneof=LR TB lr tb"`
}

func (c AutoLayoutCommand) Validate() error { return utils.ValidateStruct(c) }

// MoveNodeCommand is the end of a node drag
type MoveNodeCommand struct {
	SessionID string  `json:"sessionId" validate:"required,uuid4"`
	NodeID    int64   `json:"nodeId" validate:"required,gt=0"`
	X         float64 `json:"x" validate:"finite"`
	Y         float64 `json:"y" validate:"finite"`
}

func (c MoveNodeCommand) Validate() error { return utils.ValidateStruct(c) }

// ToggleSubtreeCommand selects or clears a node and all of its descendants
type ToggleSubtreeCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
	NodeID    int64  `json:"nodeId" validate:"required,gt=0"`
}

func (c ToggleSubtreeCommand) Validate() error { return utils.ValidateStruct(c) }

// SetSelectionCommand replaces the selection from either view
type SetSelectionCommand struct {
	SessionID string  `json:"sessionId" validate:"required,uuid4"`
	Source    string  `json:"source" validate:"required,oneof=graph list"`
	NodeIDs   []int64 `json:"nodeIds" validate:"max=10000,dive,gt=0"`
}

func (c SetSelectionCommand) Validate() error { return utils.ValidateStruct(c) }

// BeginConnectCommand starts a connection drag
type BeginConnectCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
	SourceID  int64  `json:"sourceId" validate:"required,gt=0"`
}

func (c BeginConnectCommand) Validate() error { return utils.ValidateStruct(c) }

// EndConnectCommand finishes a connection drag. A nil target means the drag
// ended on empty canvas.
type EndConnectCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
	TargetID  *int64 `json:"targetId,omitempty" validate:"omitempty,gt=0"`
}

func (c EndConnectCommand) Validate() error { return utils.ValidateStruct(c) }

// DeleteNodeCommand removes one page
type DeleteNodeCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
	NodeID    int64  `json:"nodeId" validate:"required,gt=0"`
}

func (c DeleteNodeCommand) Validate() error { return utils.ValidateStruct(c) }

// DeleteSelectedCommand removes the first deletable selected page
type DeleteSelectedCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
}

func (c DeleteSelectedCommand) Validate() error { return utils.ValidateStruct(c) }

// SaveLayoutCommand persists every live position
type SaveLayoutCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
}

func (c SaveLayoutCommand) Validate() error { return utils.ValidateStruct(c) }

// CloseSessionCommand ends a session, refusing on unsaved changes unless forced
type CloseSessionCommand struct {
	SessionID string `json:"sessionId" validate:"required,uuid4"`
	Force     bool   `json:"force"`
}

func (c CloseSessionCommand) Validate() error { return utils.ValidateStruct(c) }

// NodeIDs converts raw ids. Callers validate first, so zero ids cannot occur.
func NodeIDs(raw []int64) []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, 0, len(raw))
	for _, r := range raw {
		if id, err := valueobjects.NewNodeID(r); err == nil {
			out = append(out, id)
		}
	}
	return out
}
