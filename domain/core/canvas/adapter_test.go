package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/tests/fixtures"
)

func TestToNodes_OneVertexPerNode(t *testing.T) {
	// Arrange
	nodes := []*entities.Node{
		fixtures.NewNodeBuilder(1).AsRoot().WithTitle("Home").WithPath("/").WithPosition(10, 20).MustBuild(),
		fixtures.NewNodeBuilder(2).WithParent(1).WithTitle("Blog").WithStatus(entities.StatusDrafted).MustBuild(),
	}

	// Act
	vertices := ToNodes(nodes)

	// Assert
	require.Len(t, vertices, 2)
	assert.Equal(t, valueobjects.MustNodeID(1), vertices[0].ID)
	assert.Equal(t, TypeRoot, vertices[0].Type)
	assert.Equal(t, Point{X: 10, Y: 20}, vertices[0].Position)
	assert.True(t, vertices[0].Data.IsRoot)
	assert.Equal(t, "/", vertices[0].Data.Path)

	assert.Equal(t, TypePage, vertices[1].Type)
	assert.Equal(t, Point{}, vertices[1].Position, "absent coordinates render at the origin")
	assert.Equal(t, entities.StatusDrafted, vertices[1].Data.Status)
	assert.False(t, vertices[1].Selected)
}

func TestToNodes_Empty(t *testing.T) {
	assert.Empty(t, ToNodes(nil))
	assert.Empty(t, ToEdges(nil))
}

func TestToEdges_OnePerParentReference(t *testing.T) {
	// Arrange
	nodes := fixtures.SampleTree()

	// Act
	edges := ToEdges(nodes)

	// Assert
	require.Len(t, edges, 4)
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID.String()
		assert.Equal(t, EdgeTypeSmoothStep, e.Type)
	}
	assert.Equal(t, []string{"e1-2", "e1-3", "e2-4", "e2-5"}, ids)
	assert.Equal(t, valueobjects.MustNodeID(2), edges[2].Source)
	assert.Equal(t, valueobjects.MustNodeID(4), edges[2].Target)
}

func TestToEdges_StableAcrossCalls(t *testing.T) {
	nodes := fixtures.SampleTree()
	assert.Equal(t, ToEdges(nodes), ToEdges(nodes))
}

func TestToEdges_RootAndOrphansHaveNoInboundEdge(t *testing.T) {
	nodes := []*entities.Node{
		fixtures.NewNodeBuilder(1).AsRoot().MustBuild(),
		fixtures.NewNodeBuilder(7).MustBuild(),
	}

	assert.Empty(t, ToEdges(nodes))
}

func TestToEdges_DanglingParentStillEmitted(t *testing.T) {
	nodes := []*entities.Node{
		fixtures.NewNodeBuilder(3).WithParent(99).MustBuild(),
	}

	edges := ToEdges(nodes)

	require.Len(t, edges, 1)
	assert.Equal(t, valueobjects.EdgeID("e99-3"), edges[0].ID)
}

func TestPositions(t *testing.T) {
	vertices := ToNodes(fixtures.PositionedTree())

	positions := Positions(vertices)

	assert.Len(t, positions, 5)
	assert.Equal(t, Point{X: 600, Y: 100}, positions[valueobjects.MustNodeID(5)])
}
