package session_test

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-backend/application/session"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/domain/services/selection"
	"sitemap-backend/tests/fixtures"
)

var opened = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNew_BaselineFromStoredPositions(t *testing.T) {
	sess := session.New("user-1", fixtures.MustSitemap(fixtures.PositionedTree()), 1, layout.LeftToRight, opened)

	assert.NotEmpty(t, sess.ID())
	assert.False(t, sess.IsDirty())
	assert.Len(t, sess.Baseline(), 5)
}

func TestStateRoundTrip(t *testing.T) {
	// Arrange
	sess := session.New("user-1", fixtures.MustSitemap(fixtures.PositionedTree()), 1, layout.TopToBottom, opened)
	require.NoError(t, sess.Sitemap().MoveNode(valueobjects.MustNodeID(4), valueobjects.MustPosition(650, 20)))
	sess.Selection().Toggle(sess.Sitemap(), valueobjects.MustNodeID(2))
	src := valueobjects.MustNodeID(3)
	sess.SetInteraction(session.InteractionContext{ConnectSource: &src})

	// Act
	raw, err := json.Marshal(sess.ToState())
	require.NoError(t, err)
	var st session.State
	require.NoError(t, json.Unmarshal(raw, &st))
	restored, err := session.FromState(&st)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), restored.ID())
	assert.Equal(t, "user-1", restored.UserID())
	assert.Equal(t, layout.TopToBottom, restored.Direction())
	assert.Equal(t, fixtures.IDs(4), restored.Moved())
	assert.Equal(t, fixtures.IDs(2, 4, 5), restored.Selection().ForList())
	require.NotNil(t, restored.Interaction().ConnectSource)
	assert.Equal(t, src, *restored.Interaction().ConnectSource)
	assert.True(t, opened.Equal(restored.CreatedAt()))

	pos, ok := restored.Sitemap().Nodes()[3].Position()
	require.True(t, ok)
	assert.Equal(t, valueobjects.MustPosition(650, 20), pos)
}

func TestStateKeepsBaselineOfRemovedNodes(t *testing.T) {
	sess := session.New("", fixtures.MustSitemap(fixtures.PositionedTree()), 1, layout.LeftToRight, opened)
	require.NoError(t, sess.Sitemap().Remove(valueobjects.MustNodeID(5)))

	restored, err := session.FromState(sess.ToState())

	require.NoError(t, err)
	assert.True(t, restored.IsDirty(), "a node gone from the live set keeps the session dirty")
	assert.Len(t, restored.Baseline(), 5)
}

func TestReplaceSitemap_PrunesSelectionAndInteraction(t *testing.T) {
	sess := session.New("", fixtures.MustSitemap(fixtures.PositionedTree()), 1, layout.LeftToRight, opened)
	sess.Selection().Replace(sess.Sitemap(), selection.SourceGraph, fixtures.IDs(3, 5))
	pending := valueobjects.MustNodeID(5)
	sess.SetInteraction(session.InteractionContext{PendingChildOf: &pending})

	reloaded := fixtures.PositionedTree()[:4]
	sess.ReplaceSitemap(fixtures.MustSitemap(reloaded))

	assert.Equal(t, fixtures.IDs(3), sess.Selection().ForList())
	assert.Nil(t, sess.Interaction().PendingChildOf)
	assert.False(t, sess.IsDirty())
}

func TestCanvas_MarksSelectedVertices(t *testing.T) {
	sess := session.New("", fixtures.MustSitemap(fixtures.PositionedTree()), 1, layout.LeftToRight, opened)
	sess.Selection().Toggle(sess.Sitemap(), valueobjects.MustNodeID(2))

	vertices, edges := sess.Canvas()

	selected := map[int64]bool{}
	for _, v := range vertices {
		selected[v.ID.Int64()] = v.Selected
	}
	assert.Equal(t, map[int64]bool{1: false, 2: true, 3: false, 4: true, 5: true}, selected)
	assert.Len(t, edges, 4)
}
