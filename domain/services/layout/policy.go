package layout

import "sitemap-backend/domain/core/entities"

// NeedsLayout reports whether a freshly loaded node set must be laid out:
// true when any non-root node has no position, or sits exactly at the
// origin and originIsUnset is on. The root is exempt since a laid-out tree
// legitimately places it on the origin axis.
func NeedsLayout(nodes []*entities.Node, originIsUnset bool) bool {
	for _, n := range nodes {
		if n.IsRoot() {
			continue
		}
		pos, ok := n.Position()
		if !ok {
			return true
		}
		if originIsUnset && pos.IsOrigin() {
			return true
		}
	}
	return false
}
