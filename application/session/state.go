package session

import (
	"time"

	"sitemap-backend/domain/core/aggregates"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/services/dirty"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/domain/services/selection"
)

// BaselineEntry is one persisted position in serialized form
type BaselineEntry struct {
	NodeID   valueobjects.NodeID   `json:"nodeId"`
	Position valueobjects.Position `json:"position"`
}

// State is the serializable form of a Session
type State struct {
	ID          string                  `json:"id"`
	UserID      string                  `json:"userId,omitempty"`
	SitemapID   valueobjects.SitemapID  `json:"sitemapId"`
	Nodes       []entities.NodeSnapshot `json:"nodes"`
	Baseline    []BaselineEntry         `json:"baseline"`
	Tolerance   float64                 `json:"tolerance"`
	Selected    []valueobjects.NodeID   `json:"selected,omitempty"`
	Direction   layout.Direction        `json:"direction"`
	Interaction InteractionContext      `json:"interaction"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

// ToState flattens the session
func (s *Session) ToState() *State {
	nodes := s.sitemap.Nodes()
	snapshots := make([]entities.NodeSnapshot, len(nodes))
	for i, n := range nodes {
		snapshots[i] = n.Snapshot()
	}

	baseline := s.tracker.Baseline()
	entries := make([]BaselineEntry, 0, len(baseline))
	for _, n := range nodes {
		if pos, ok := baseline[n.ID()]; ok {
			entries = append(entries, BaselineEntry{NodeID: n.ID(), Position: pos})
			delete(baseline, n.ID())
		}
	}
	// baseline entries for nodes gone from the live set keep the session dirty
	for _, id := range sortedIDs(baseline) {
		entries = append(entries, BaselineEntry{NodeID: id, Position: baseline[id]})
	}

	return &State{
		ID:          s.id,
		UserID:      s.userID,
		SitemapID:   s.sitemap.ID(),
		Nodes:       snapshots,
		Baseline:    entries,
		Tolerance:   s.tracker.Tolerance(),
		Selected:    s.selection.ForList(),
		Direction:   s.direction,
		Interaction: s.interaction,
		CreatedAt:   s.createdAt,
		UpdatedAt:   s.updatedAt,
	}
}

// FromState rebuilds a session
func FromState(st *State) (*Session, error) {
	nodes := make([]*entities.Node, 0, len(st.Nodes))
	for _, snap := range st.Nodes {
		n, err := entities.ReconstructNode(snap)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	sitemap, err := aggregates.NewSitemap(st.SitemapID, nodes)
	if err != nil {
		return nil, err
	}

	baseline := make(dirty.Snapshot, len(st.Baseline))
	for _, e := range st.Baseline {
		baseline[e.NodeID] = e.Position
	}

	return &Session{
		id:          st.ID,
		userID:      st.UserID,
		sitemap:     sitemap,
		tracker:     dirty.NewTracker(baseline, st.Tolerance),
		selection:   selection.NewState(selection.NewSet(st.Selected...)),
		direction:   st.Direction,
		interaction: st.Interaction,
		createdAt:   st.CreatedAt,
		updatedAt:   st.UpdatedAt,
	}, nil
}

func sortedIDs(snap dirty.Snapshot) []valueobjects.NodeID {
	ids := make([]valueobjects.NodeID, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	return selection.NewSet(ids...).IDs()
}
