package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-backend/application/ports"
	"sitemap-backend/application/session"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/services/layout"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/tests/fixtures"
	"sitemap-backend/tests/storetest"
)

func TestNodeStore_Contract(t *testing.T) {
	storetest.RunNodeStoreContract(t, func(t *testing.T) ports.NodeStore {
		return NewNodeStore()
	})
}

func TestNodeStore_UnreadablePageFailsLoad(t *testing.T) {
	storetest.RunUnreadablePageContract(t,
		func(t *testing.T) ports.NodeStore { return NewNodeStore() },
		func(t *testing.T, s ports.NodeStore, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) {
			store := s.(*NodeStore)
			i, err := store.find(sitemapID, nodeID)
			require.NoError(t, err)
			self := nodeID
			store.nodes[sitemapID][i].ParentID = &self
		})
}

func TestNodeStore_Sitemaps(t *testing.T) {
	s := NewNodeStore()
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, fixtures.NewNodeBuilder(1).WithSitemapID(9).AsRoot().MustBuild()))
	require.NoError(t, s.Upsert(ctx, fixtures.NewNodeBuilder(1).AsRoot().MustBuild()))

	assert.Equal(t, []valueobjects.SitemapID{valueobjects.MustSitemapID(1), valueobjects.MustSitemapID(9)}, s.Sitemaps())
}

func TestSessionStore_ReturnsIndependentCopies(t *testing.T) {
	// Arrange
	ctx := context.Background()
	store := NewSessionStore(time.Hour)
	sess := session.New("u", fixtures.MustSitemap(fixtures.PositionedTree()), 1, layout.LeftToRight, time.Now())
	require.NoError(t, store.Put(ctx, sess))

	// Act
	first, err := store.Get(ctx, sess.ID())
	require.NoError(t, err)
	require.NoError(t, first.Sitemap().MoveNode(valueobjects.MustNodeID(2), valueobjects.MustPosition(900, 900)))
	second, err := store.Get(ctx, sess.ID())

	// Assert
	require.NoError(t, err)
	assert.True(t, first.IsDirty())
	assert.False(t, second.IsDirty(), "an unsaved copy does not leak into the store")
}

func TestSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Minute)
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	sess := session.New("u", fixtures.MustSitemap(fixtures.PositionedTree()), 1, layout.LeftToRight, clock)
	require.NoError(t, store.Put(ctx, sess))

	clock = clock.Add(59 * time.Second)
	_, err := store.Get(ctx, sess.ID())
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	_, err = store.Get(ctx, sess.ID())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSessionExpired))
	assert.Equal(t, 0, store.Len())

	_, err = store.Get(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}
