package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitemap-backend/application/ports"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/tests/fixtures"
	"sitemap-backend/tests/storetest"
)

func newTestStore(t *testing.T) *NodeStore {
	t.Helper()
	s, err := NewNodeStore(filepath.Join(t.TempDir(), "pages.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNodeStore_Contract(t *testing.T) {
	storetest.RunNodeStoreContract(t, func(t *testing.T) ports.NodeStore {
		return newTestStore(t)
	})
}

func TestNodeStore_UnreadablePageFailsLoad(t *testing.T) {
	storetest.RunUnreadablePageContract(t,
		func(t *testing.T) ports.NodeStore { return newTestStore(t) },
		func(t *testing.T, s ports.NodeStore, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) {
			_, err := s.(*NodeStore).db.Exec(`UPDATE pages SET parent_id = id WHERE sitemap_id = ? AND id = ?;`,
				sitemapID.Int64(), nodeID.Int64())
			require.NoError(t, err)
		})
}

func TestNodeStore_SurvivesReopen(t *testing.T) {
	// Arrange
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "pages.db")
	s, err := NewNodeStore(path, zap.NewNop())
	require.NoError(t, err)
	for _, n := range fixtures.PositionedTree() {
		require.NoError(t, s.Upsert(ctx, n))
	}
	require.NoError(t, s.Close())

	// Act
	reopened, err := NewNodeStore(path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()
	nodes, err := reopened.ListBySitemap(ctx, valueobjects.MustSitemapID(fixtures.DefaultSitemapID))

	// Assert
	require.NoError(t, err)
	require.Len(t, nodes, 5)
	pos, ok := nodes[2].Position()
	require.True(t, ok)
	assert.Equal(t, valueobjects.MustPosition(300, 200), pos)
	assert.NoError(t, reopened.Ping(ctx))
}
