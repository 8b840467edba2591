// Package session holds the per-editor state of one open sitemap: the live
// nodes, the persisted baseline, the selection and any in-flight interaction.
package session

import (
	"time"

	"github.com/google/uuid"

	"sitemap-backend/domain/core/aggregates"
	"sitemap-backend/domain/core/canvas"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/services/dirty"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/domain/services/selection"
)

// InteractionContext carries gesture state that spans more than one request
type InteractionContext struct {
	// ConnectSource is the node a connection drag started from
	ConnectSource *valueobjects.NodeID `json:"connectSource,omitempty"`
	// PendingChildOf is set when a drag ended on empty canvas: the next
	// created page goes under this node.
	PendingChildOf *valueobjects.NodeID `json:"pendingChildOf,omitempty"`
}

// Session is one user's editing view of a sitemap
type Session struct {
	id          string
	userID      string
	sitemap     *aggregates.Sitemap
	tracker     *dirty.Tracker
	selection   *selection.State
	direction   layout.Direction
	interaction InteractionContext
	createdAt   time.Time
	updatedAt   time.Time
}

// New opens a session over a freshly loaded sitemap. The baseline is taken
// from the stored positions before any layout runs.
func New(userID string, sitemap *aggregates.Sitemap, tolerance float64, dir layout.Direction, now time.Time) *Session {
	return &Session{
		id:        uuid.NewString(),
		userID:    userID,
		sitemap:   sitemap,
		tracker:   dirty.NewTracker(dirty.FromNodes(sitemap.Nodes()), tolerance),
		selection: selection.NewState(nil),
		direction: dir,
		createdAt: now,
		updatedAt: now,
	}
}

func (s *Session) ID() string { return s.id }
func (s *Session) UserID() string { return s.userID }
func (s *Session) SitemapID() valueobjects.SitemapID { return s.sitemap.ID() }
func (s *Session) Sitemap() *aggregates.Sitemap { return s.sitemap }
func (s *Session) Nodes() []*entities.Node { return s.sitemap.Nodes() }
func (s *Session) Selection() *selection.State { return s.selection }
func (s *Session) Direction() layout.Direction { return s.direction }
func (s *Session) Interaction() InteractionContext { return s.interaction }
func (s *Session) Baseline() dirty.Snapshot { return s.tracker.Baseline() }
func (s *Session) CreatedAt() time.Time { return s.createdAt }
func (s *Session) UpdatedAt() time.Time { return s.updatedAt }
func (s *Session) Touch(now time.Time) { s.updatedAt = now }
func (s *Session) SetDirection(dir layout.Direction) { s.direction = dir }
func (s *Session) SetInteraction(ic InteractionContext) { s.interaction = ic }

// IsDirty reports whether live positions diverge from the baseline
func (s *Session) IsDirty() bool {
	return s.tracker.IsDirty(s.sitemap.Nodes())
}

// Moved lists the nodes that make the session dirty
func (s *Session) Moved() []valueobjects.NodeID {
	return s.tracker.Moved(s.sitemap.Nodes())
}

// Rebaseline installs snap as the persisted baseline
func (s *Session) Rebaseline(snap dirty.Snapshot) {
	s.tracker.Replace(snap)
}

// ReplaceSitemap swaps in a reloaded node collection. The baseline is
// rebuilt from the stored positions and the selection is pruned.
func (s *Session) ReplaceSitemap(sitemap *aggregates.Sitemap) {
	s.sitemap = sitemap
	s.tracker.Rebaseline(sitemap.Nodes())
	s.selection.Prune(sitemap)

	ic := s.interaction
	if ic.ConnectSource != nil && !sitemap.Contains(*ic.ConnectSource) {
		ic.ConnectSource = nil
	}
	if ic.PendingChildOf != nil && !sitemap.Contains(*ic.PendingChildOf) {
		ic.PendingChildOf = nil
	}
	s.interaction = ic
}

// ApplyLayout moves every node to the laid-out position
func (s *Session) ApplyLayout(vertices []canvas.Node) error {
	for _, v := range vertices {
		pos, err := valueobjects.NewPosition(v.Position.X, v.Position.Y)
		if err != nil {
			return err
		}
		if err := s.sitemap.MoveNode(v.ID, pos); err != nil {
			return err
		}
	}
	return nil
}

// Canvas projects the live nodes with the selection applied to vertices
func (s *Session) Canvas() ([]canvas.Node, []canvas.Edge) {
	nodes := s.sitemap.Nodes()
	return s.selection.ForGraph(canvas.ToNodes(nodes)), canvas.ToEdges(nodes)
}
