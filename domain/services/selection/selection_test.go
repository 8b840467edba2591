package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"sitemap-backend/domain/core/canvas"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/tests/fixtures"
)

func id(v int64) valueobjects.NodeID { return valueobjects.MustNodeID(v) }

func TestDescendants_IncludesNodeAndSubtree(t *testing.T) {
	tree := fixtures.MustSitemap(fixtures.SampleTree())

	assert.Equal(t, NewSet(fixtures.IDs(2, 4, 5)...), Descendants(tree, id(2)))
	assert.Equal(t, NewSet(fixtures.IDs(1, 2, 3, 4, 5)...), Descendants(tree, id(1)))
	assert.Equal(t, NewSet(id(3)), Descendants(tree, id(3)))
}

func TestDescendants_UnknownID(t *testing.T) {
	tree := fixtures.MustSitemap(fixtures.SampleTree())

	assert.Empty(t, Descendants(tree, id(42)))
}

func TestDescendants_CyclicInputTerminates(t *testing.T) {
	nodes := []*entities.Node{
		fixtures.NewNodeBuilder(1).WithParent(2).MustBuild(),
		fixtures.NewNodeBuilder(2).WithParent(1).MustBuild(),
	}
	tree := fixtures.MustSitemap(nodes)

	assert.Equal(t, NewSet(id(1), id(2)), Descendants(tree, id(1)))
}

func TestToggleSubtree(t *testing.T) {
	tree := fixtures.MustSitemap(fixtures.SampleTree())

	tests := []struct {
		name    string
		current Set
		target  int64
		want    Set
	}{
		{
			name:    "selects whole subtree",
			current: Set{},
			target:  2,
			want:    NewSet(fixtures.IDs(2, 4, 5)...),
		},
		{
			name:    "fully selected subtree is cleared",
			current: NewSet(fixtures.IDs(2, 4, 5)...),
			target:  2,
			want:    Set{},
		},
		{
			name:    "partial subtree is completed",
			current: NewSet(id(4)),
			target:  2,
			want:    NewSet(fixtures.IDs(2, 4, 5)...),
		},
		{
			name:    "unrelated selections survive",
			current: NewSet(id(3)),
			target:  2,
			want:    NewSet(fixtures.IDs(2, 3, 4, 5)...),
		},
		{
			name:    "unknown id is a no-op",
			current: NewSet(id(3)),
			target:  42,
			want:    NewSet(id(3)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.current.Clone()

			got := ToggleSubtree(tree, id(tt.target), tt.current)

			assert.Equal(t, tt.want, got)
			assert.Equal(t, before, tt.current, "input set must not be modified")
		})
	}
}

func TestToggleSubtree_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "size")
		nodes := []*entities.Node{fixtures.NewNodeBuilder(1).AsRoot().MustBuild()}
		for i := int64(2); i <= int64(n); i++ {
			parent := rapid.Int64Range(1, i-1).Draw(t, "parent")
			nodes = append(nodes, fixtures.NewNodeBuilder(i).WithParent(parent).MustBuild())
		}
		tree := fixtures.MustSitemap(nodes)

		current := Set{}
		for i := int64(1); i <= int64(n); i++ {
			if rapid.Bool().Draw(t, "selected") {
				current[id(i)] = struct{}{}
			}
		}
		target := id(rapid.Int64Range(1, int64(n)).Draw(t, "target"))
		subtree := Descendants(tree, target)

		once := ToggleSubtree(tree, target, current)

		// all-or-nothing over the subtree
		if !once.ContainsAll(subtree) {
			for m := range subtree {
				if once.Has(m) {
					t.Fatalf("subtree of %s partially selected after toggle", target)
				}
			}
		}
		// outside the subtree nothing changes
		for i := int64(1); i <= int64(n); i++ {
			if subtree.Has(id(i)) {
				continue
			}
			if once.Has(id(i)) != current.Has(id(i)) {
				t.Fatalf("node %d outside the subtree changed", i)
			}
		}
		// toggling twice from an all-or-nothing state restores it
		twice := ToggleSubtree(tree, target, once)
		thrice := ToggleSubtree(tree, target, twice)
		if len(thrice) != len(once) || !thrice.ContainsAll(once) {
			t.Fatalf("toggle is not an involution once the subtree is uniform")
		}
	})
}

func TestState_ProjectionsAgree(t *testing.T) {
	// Arrange
	nodes := fixtures.SampleTree()
	tree := fixtures.MustSitemap(nodes)
	state := NewState(nil)

	// Act
	state.Toggle(tree, id(2))
	vertices := state.ForGraph(canvas.ToNodes(nodes))

	// Assert
	var fromGraph []valueobjects.NodeID
	for _, v := range vertices {
		if v.Selected {
			fromGraph = append(fromGraph, v.ID)
		}
	}
	assert.Equal(t, fixtures.IDs(2, 4, 5), fromGraph)
	assert.Equal(t, fixtures.IDs(2, 4, 5), state.ForList())
}

func TestState_ReplaceFromEitherView(t *testing.T) {
	tree := fixtures.MustSitemap(fixtures.SampleTree())
	state := NewState(NewSet(id(1)))

	state.Replace(tree, SourceList, fixtures.IDs(3, 5, 77))
	assert.Equal(t, fixtures.IDs(3, 5), state.ForList(), "unknown ids are dropped")

	state.Replace(tree, SourceGraph, fixtures.IDs(4))
	assert.Equal(t, fixtures.IDs(4), state.ForList())
}

func TestState_Prune(t *testing.T) {
	state := NewState(NewSet(fixtures.IDs(1, 5)...))
	smaller := fixtures.MustSitemap(fixtures.SampleTree()[:3])

	state.Prune(smaller)

	assert.Equal(t, fixtures.IDs(1), state.ForList())
}
