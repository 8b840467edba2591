// Package selection implements the subtree selection rules shared by the
// graph view and the list view.
package selection

import (
	"sort"

	"sitemap-backend/domain/core/canvas"
	"sitemap-backend/domain/core/valueobjects"
)

// Tree is the read side of a parent->children index
type Tree interface {
	Contains(id valueobjects.NodeID) bool
	Children(id valueobjects.NodeID) []valueobjects.NodeID
}

// Set is an unordered set of selected node ids
type Set map[valueobjects.NodeID]struct{}

// NewSet builds a set from ids
func NewSet(ids ...valueobjects.NodeID) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership
func (s Set) Has(id valueobjects.NodeID) bool {
	_, ok := s[id]
	return ok
}

// Clone returns an independent copy
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the members sorted ascending
func (s Set) IDs() []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Int64() < out[j].Int64() })
	return out
}

// ContainsAll reports whether every id of other is in s
func (s Set) ContainsAll(other Set) bool {
	for id := range other {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Descendants returns id together with every node reachable through child
// links. An id missing from the tree yields an empty set. Visited nodes are
// skipped so malformed cyclic input terminates.
func Descendants(tree Tree, id valueobjects.NodeID) Set {
	out := Set{}
	if !tree.Contains(id) {
		return out
	}
	queue := []valueobjects.NodeID{id}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if out.Has(curr) {
			continue
		}
		out[curr] = struct{}{}
		queue = append(queue, tree.Children(curr)...)
	}
	return out
}

// ToggleSubtree flips the selection of id's whole subtree: if every
// member is already selected they are all removed, otherwise they are all
// added. Other selections are untouched. current is not modified.
func ToggleSubtree(tree Tree, id valueobjects.NodeID, current Set) Set {
	next := current.Clone()
	subtree := Descendants(tree, id)
	if len(subtree) == 0 {
		return next
	}
	if current.ContainsAll(subtree) {
		for member := range subtree {
			delete(next, member)
		}
		return next
	}
	for member := range subtree {
		next[member] = struct{}{}
	}
	return next
}

// Source names the view a selection change came from
type Source string

const (
	SourceGraph Source = "graph"
	SourceList  Source = "list"
)

// State is the single source of truth for what is selected. Both views
// write the same set and both projections read it.
type State struct {
	selected Set
}

// NewState starts with the given selection
func NewState(initial Set) *State {
	if initial == nil {
		initial = Set{}
	}
	return &State{selected: initial.Clone()}
}

// Selected returns a copy of the current set
func (s *State) Selected() Set {
	return s.selected.Clone()
}

// Replace installs the selection reported by either view. Ids unknown to
// tree are dropped.
func (s *State) Replace(tree Tree, _ Source, ids []valueobjects.NodeID) {
	next := make(Set, len(ids))
	for _, id := range ids {
		if tree.Contains(id) {
			next[id] = struct{}{}
		}
	}
	s.selected = next
}

// Toggle applies ToggleSubtree to the state
func (s *State) Toggle(tree Tree, id valueobjects.NodeID) {
	s.selected = ToggleSubtree(tree, id, s.selected)
}

// Prune drops ids no longer present in tree
func (s *State) Prune(tree Tree) {
	for id := range s.selected {
		if !tree.Contains(id) {
			delete(s.selected, id)
		}
	}
}

// ForGraph marks the selected vertices and returns the updated copy
func (s *State) ForGraph(vertices []canvas.Node) []canvas.Node {
	out := make([]canvas.Node, len(vertices))
	for i, v := range vertices {
		v.Selected = s.selected.Has(v.ID)
		out[i] = v
	}
	return out
}

// ForList returns the selected ids in list order (ascending id)
func (s *State) ForList() []valueobjects.NodeID {
	return s.selected.IDs()
}
