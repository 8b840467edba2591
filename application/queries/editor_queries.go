package queries

import "sitemap-backend/pkg/utils"

// GetSessionViewQuery renders a session's nodes, edges, selection and dirty state
type GetSessionViewQuery struct {
	SessionID string `validate:"required,uuid4"`
}

// Validate validates the GetSessionViewQuery
func (q GetSessionViewQuery) Validate() error { return utils.ValidateStruct(q) }

// GetDirtyStateQuery asks whether a session has unsaved layout changes
type GetDirtyStateQuery struct {
	SessionID string `validate:"required,uuid4"`
}

// Validate validates the GetDirtyStateQuery
func (q GetDirtyStateQuery) Validate() error { return utils.ValidateStruct(q) }

// GetDescendantsQuery lists a node and everything beneath it
type GetDescendantsQuery struct {
	SessionID string `validate:"required,uuid4"`
	NodeID    int64  `validate:"required,gt=0"`
}

// Validate validates the GetDescendantsQuery
func (q GetDescendantsQuery) Validate() error { return utils.ValidateStruct(q) }

// DescendantsResult is the answer to GetDescendantsQuery
type DescendantsResult struct {
	NodeID      int64   `json:"nodeId"`
	Descendants []int64 `json:"descendants"`
}
