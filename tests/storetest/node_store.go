// Package storetest holds the behaviour every ports.NodeStore must share
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-backend/application/ports"
	"sitemap-backend/domain/core/valueobjects"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/tests/fixtures"
)

// RunNodeStoreContract exercises a store built fresh by newStore for each case
func RunNodeStoreContract(t *testing.T, newStore func(t *testing.T) ports.NodeStore) {
	sitemapID := valueobjects.MustSitemapID(fixtures.DefaultSitemapID)
	id := valueobjects.MustNodeID

	seeded := func(t *testing.T) ports.NodeStore {
		s := newStore(t)
		for _, n := range fixtures.SampleTree() {
			require.NoError(t, s.Upsert(context.Background(), n))
		}
		return s
	}

	t.Run("lists in insertion order", func(t *testing.T) {
		s := seeded(t)

		nodes, err := s.ListBySitemap(context.Background(), sitemapID)

		require.NoError(t, err)
		require.Len(t, nodes, 5)
		for i, n := range nodes {
			assert.Equal(t, int64(i+1), n.ID().Int64())
			assert.False(t, n.HasPosition())
		}
		assert.True(t, nodes[0].IsRoot())
		parent, ok := nodes[3].ParentID()
		require.True(t, ok)
		assert.Equal(t, id(2), parent)
		assert.Equal(t, "Plumbing", nodes[3].Content().Title())
		assert.Equal(t, "/services/plumbing", nodes[3].Content().Path())
	})

	t.Run("unknown sitemap is empty", func(t *testing.T) {
		s := seeded(t)

		nodes, err := s.ListBySitemap(context.Background(), valueobjects.MustSitemapID(999))

		require.NoError(t, err)
		assert.Empty(t, nodes)
	})

	t.Run("update position round trips", func(t *testing.T) {
		ctx := context.Background()
		s := seeded(t)

		require.NoError(t, s.UpdatePosition(ctx, sitemapID, id(4), valueobjects.MustPosition(612.5, -40)))

		nodes, err := s.ListBySitemap(ctx, sitemapID)
		require.NoError(t, err)
		pos, ok := nodes[3].Position()
		require.True(t, ok)
		assert.Equal(t, valueobjects.MustPosition(612.5, -40), pos)
	})

	t.Run("update position of unknown node", func(t *testing.T) {
		s := seeded(t)

		err := s.UpdatePosition(context.Background(), sitemapID, id(77), valueobjects.Origin())

		assert.True(t, pkgerrors.IsNotFound(err), "got %v", err)
	})

	t.Run("update parent", func(t *testing.T) {
		ctx := context.Background()
		s := seeded(t)

		require.NoError(t, s.UpdateParent(ctx, sitemapID, id(5), id(3)))

		nodes, err := s.ListBySitemap(ctx, sitemapID)
		require.NoError(t, err)
		parent, _ := nodes[4].ParentID()
		assert.Equal(t, id(3), parent)
		assert.Greater(t, nodes[4].Version(), 1)

		assert.True(t, pkgerrors.IsNotFound(s.UpdateParent(ctx, sitemapID, id(5), id(88))))
	})

	t.Run("delete", func(t *testing.T) {
		ctx := context.Background()
		s := seeded(t)

		require.NoError(t, s.Delete(ctx, sitemapID, id(3)))

		nodes, err := s.ListBySitemap(ctx, sitemapID)
		require.NoError(t, err)
		assert.Len(t, nodes, 4)
		assert.True(t, pkgerrors.IsNotFound(s.Delete(ctx, sitemapID, id(3))))
	})

	t.Run("upsert replaces in place", func(t *testing.T) {
		ctx := context.Background()
		s := seeded(t)

		renamed := fixtures.NewNodeBuilder(2).WithParent(1).WithTitle("Our services").
			WithPosition(300, 50).WithAttribute("template", "landing").MustBuild()
		require.NoError(t, s.Upsert(ctx, renamed))

		nodes, err := s.ListBySitemap(ctx, sitemapID)
		require.NoError(t, err)
		require.Len(t, nodes, 5)
		assert.Equal(t, id(2), nodes[1].ID())
		assert.Equal(t, "Our services", nodes[1].Content().Title())
		assert.Equal(t, "landing", nodes[1].Attributes()["template"])
	})
}

// RunUnreadablePageContract checks that a stored page which no longer forms
// a valid node fails the whole load instead of silently thinning the tree.
// corrupt must damage the stored page so that it names itself as parent.
func RunUnreadablePageContract(
	t *testing.T,
	newStore func(t *testing.T) ports.NodeStore,
	corrupt func(t *testing.T, s ports.NodeStore, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID),
) {
	ctx := context.Background()
	sitemapID := valueobjects.MustSitemapID(fixtures.DefaultSitemapID)
	other := valueobjects.MustSitemapID(fixtures.DefaultSitemapID + 1)

	s := newStore(t)
	for _, n := range fixtures.SampleTree() {
		require.NoError(t, s.Upsert(ctx, n))
	}
	require.NoError(t, s.Upsert(ctx, fixtures.NewNodeBuilder(1).WithSitemapID(other.Int64()).AsRoot().MustBuild()))
	corrupt(t, s, sitemapID, valueobjects.MustNodeID(4))

	nodes, err := s.ListBySitemap(ctx, sitemapID)

	assert.Nil(t, nodes)
	RequireUnreadablePage(t, err, 4)

	untouched, err := s.ListBySitemap(ctx, other)
	require.NoError(t, err)
	assert.Len(t, untouched, 1)
}

// RequireUnreadablePage asserts err reports nodeID as an unreadable page
func RequireUnreadablePage(t *testing.T, err error, nodeID int64) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDatabase), "got %v", err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.EqualValues(t, nodeID, appErr.Details["node_id"])
}
