// Package memory provides in-process stores for local development and tests
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	pkgerrors "sitemap-backend/pkg/errors"
)

// NodeStore keeps node snapshots per sitemap, in insertion order
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[valueobjects.SitemapID][]entities.NodeSnapshot
}

// NewNodeStore creates an empty node store
func NewNodeStore() *NodeStore {
	return &NodeStore{nodes: make(map[valueobjects.SitemapID][]entities.NodeSnapshot)}
}

// ListBySitemap returns fresh node entities for a sitemap. A page that no
// longer forms a valid node fails the whole load.
func (s *NodeStore) ListBySitemap(ctx context.Context, sitemapID valueobjects.SitemapID) ([]*entities.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.nodes[sitemapID]
	out := make([]*entities.Node, 0, len(snaps))
	for _, snap := range snaps {
		n, err := entities.ReconstructNode(snap)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("read_page", err).
				WithDetails(map[string]interface{}{"node_id": snap.ID.Int64()})
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *NodeStore) find(sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) (int, error) {
	for i, snap := range s.nodes[sitemapID] {
		if snap.ID.Equals(nodeID) {
			return i, nil
		}
	}
	return -1, pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", nodeID))
}

// UpdatePosition writes a single node's coordinates
func (s *NodeStore) UpdatePosition(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.find(sitemapID, nodeID)
	if err != nil {
		return err
	}
	p := pos
	s.nodes[sitemapID][i].Position = &p
	s.nodes[sitemapID][i].UpdatedAt = time.Now()
	return nil
}

// UpdateParent moves a node under a new parent
func (s *NodeStore) UpdateParent(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID, parentID valueobjects.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.find(sitemapID, nodeID)
	if err != nil {
		return err
	}
	if _, err := s.find(sitemapID, parentID); err != nil {
		return err
	}
	p := parentID
	snap := &s.nodes[sitemapID][i]
	snap.ParentID = &p
	snap.Version++
	snap.UpdatedAt = time.Now()
	return nil
}

// Delete removes a node
func (s *NodeStore) Delete(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.find(sitemapID, nodeID)
	if err != nil {
		return err
	}
	snaps := s.nodes[sitemapID]
	s.nodes[sitemapID] = append(snaps[:i:i], snaps[i+1:]...)
	return nil
}

// Upsert writes a whole node, replacing one with the same id
func (s *NodeStore) Upsert(ctx context.Context, node *entities.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := node.Snapshot()
	if i, err := s.find(snap.SitemapID, snap.ID); err == nil {
		s.nodes[snap.SitemapID][i] = snap
		return nil
	}
	s.nodes[snap.SitemapID] = append(s.nodes[snap.SitemapID], snap)
	return nil
}

// Sitemaps lists the sitemap ids that have nodes, ascending
func (s *NodeStore) Sitemaps() []valueobjects.SitemapID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]valueobjects.SitemapID, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Int64() < ids[j].Int64() })
	return ids
}

// Ping always succeeds
func (s *NodeStore) Ping(ctx context.Context) error {
	return nil
}
