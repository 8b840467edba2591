// Package dirty decides whether the live node positions diverge from the
// last persisted baseline.
package dirty

import (
	"sort"

	"sitemap-backend/domain/core/canvas"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
)

// DefaultTolerance absorbs sub-unit jitter from the renderer
const DefaultTolerance = 1.0

// Snapshot maps node ids to the positions last known to be persisted
type Snapshot map[valueobjects.NodeID]valueobjects.Position

// FromNodes captures the current positions of nodes. Absent positions are
// recorded as the origin, matching how they are rendered.
func FromNodes(nodes []*entities.Node) Snapshot {
	snap := make(Snapshot, len(nodes))
	for _, n := range nodes {
		snap[n.ID()] = n.PositionOrOrigin()
	}
	return snap
}

// FromCanvas captures positions from rendered vertices
func FromCanvas(vertices []canvas.Node) Snapshot {
	snap := make(Snapshot, len(vertices))
	for _, v := range vertices {
		snap[v.ID] = valueobjects.MustPosition(v.Position.X, v.Position.Y)
	}
	return snap
}

// Clone returns an independent copy
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// IsDirty reports whether some snapshot node is missing from live, or moved
// by more than DefaultTolerance on either axis
func IsDirty(live []*entities.Node, snap Snapshot) bool {
	return len(Moved(live, snap, DefaultTolerance)) > 0
}

// Moved lists the snapshot nodes that are missing from live or differ by
// more than tol, sorted by id. Live nodes absent from the snapshot are not
// reported.
func Moved(live []*entities.Node, snap Snapshot, tol float64) []valueobjects.NodeID {
	current := make(map[valueobjects.NodeID]valueobjects.Position, len(live))
	for _, n := range live {
		current[n.ID()] = n.PositionOrOrigin()
	}

	var moved []valueobjects.NodeID
	for id, baseline := range snap {
		pos, ok := current[id]
		if !ok || !pos.WithinTolerance(baseline, tol) {
			moved = append(moved, id)
		}
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].Int64() < moved[j].Int64() })
	return moved
}

// Tracker holds the baseline for one editing session
type Tracker struct {
	baseline  Snapshot
	tolerance float64
}

// NewTracker creates a tracker over an initial baseline
func NewTracker(baseline Snapshot, tolerance float64) *Tracker {
	if baseline == nil {
		baseline = Snapshot{}
	}
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	return &Tracker{baseline: baseline.Clone(), tolerance: tolerance}
}

// Baseline returns a copy of the current baseline
func (t *Tracker) Baseline() Snapshot {
	return t.baseline.Clone()
}

// Tolerance returns the per-axis tolerance
func (t *Tracker) Tolerance() float64 {
	return t.tolerance
}

// IsDirty evaluates live against the baseline
func (t *Tracker) IsDirty(live []*entities.Node) bool {
	return len(t.Moved(live)) > 0
}

// Moved lists the dirty node ids
func (t *Tracker) Moved(live []*entities.Node) []valueobjects.NodeID {
	return Moved(live, t.baseline, t.tolerance)
}

// Rebaseline replaces the baseline with the current positions of live
func (t *Tracker) Rebaseline(live []*entities.Node) {
	t.baseline = FromNodes(live)
}

// Replace installs an explicit baseline
func (t *Tracker) Replace(snap Snapshot) {
	t.baseline = snap.Clone()
}
