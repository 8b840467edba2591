package validators

import (
	"fmt"
	"sort"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
)

// IssueCode classifies a structural problem in a loaded node set
type IssueCode string

const (
	IssueMissingRoot    IssueCode = "MISSING_ROOT"
	IssueDanglingParent IssueCode = "DANGLING_PARENT"
	IssueOrphan         IssueCode = "ORPHAN"
	IssueCycle          IssueCode = "CYCLE"
)

// Issue is one structural finding. None of them block loading; the editor
// renders what it can and reports the rest.
type Issue struct {
	Code    IssueCode
	NodeID  valueobjects.NodeID
	Message string
}

// TreeValidator inspects the parent references of a node set
type TreeValidator struct{}

// NewTreeValidator creates a tree validator
func NewTreeValidator() *TreeValidator {
	return &TreeValidator{}
}

// Validate reports structural issues, ordered by node id
func (v *TreeValidator) Validate(nodes []*entities.Node) []Issue {
	if len(nodes) == 0 {
		return nil
	}

	byID := make(map[valueobjects.NodeID]*entities.Node, len(nodes))
	hasRoot := false
	for _, n := range nodes {
		byID[n.ID()] = n
		if n.IsRoot() {
			hasRoot = true
		}
	}

	var issues []Issue
	if !hasRoot {
		issues = append(issues, Issue{Code: IssueMissingRoot, Message: "no node is marked as root"})
	}

	for _, n := range nodes {
		parent, ok := n.ParentID()
		switch {
		case !ok && !n.IsRoot():
			issues = append(issues, Issue{
				Code:    IssueOrphan,
				NodeID:  n.ID(),
				Message: fmt.Sprintf("page %s has no parent and is not the root", n.ID()),
			})
		case ok && byID[parent] == nil:
			issues = append(issues, Issue{
				Code:    IssueDanglingParent,
				NodeID:  n.ID(),
				Message: fmt.Sprintf("page %s references missing parent %s", n.ID(), parent),
			})
		}
	}

	for _, id := range v.cyclicNodes(nodes, byID) {
		issues = append(issues, Issue{
			Code:    IssueCycle,
			NodeID:  id,
			Message: fmt.Sprintf("page %s is its own ancestor", id),
		})
	}

	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].NodeID.Int64() < issues[j].NodeID.Int64()
	})
	return issues
}

// cyclicNodes walks each parent chain, colouring nodes so every chain is
// followed once
func (v *TreeValidator) cyclicNodes(nodes []*entities.Node, byID map[valueobjects.NodeID]*entities.Node) []valueobjects.NodeID {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[valueobjects.NodeID]int, len(nodes))
	inCycle := make(map[valueobjects.NodeID]bool)

	for _, start := range nodes {
		var path []valueobjects.NodeID
		current := start
		for current != nil && state[current.ID()] == unvisited {
			state[current.ID()] = onPath
			path = append(path, current.ID())
			parent, ok := current.ParentID()
			if !ok {
				current = nil
				break
			}
			current = byID[parent]
		}
		if current != nil && state[current.ID()] == onPath {
			// everything from the repeated node to the end of the path is the cycle
			for i := len(path) - 1; i >= 0; i-- {
				inCycle[path[i]] = true
				if path[i].Equals(current.ID()) {
					break
				}
			}
		}
		for _, id := range path {
			state[id] = done
		}
	}

	out := make([]valueobjects.NodeID, 0, len(inCycle))
	for id := range inCycle {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Int64() < out[j].Int64() })
	return out
}
