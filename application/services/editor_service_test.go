package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitemap-backend/application/ports"
	"sitemap-backend/application/services"
	"sitemap-backend/domain/config"
	"sitemap-backend/domain/core/canvas"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/events"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/domain/services/selection"
	"sitemap-backend/infrastructure/locking"
	"sitemap-backend/infrastructure/messaging"
	"sitemap-backend/infrastructure/persistence/memory"
	"sitemap-backend/pkg/common"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/pkg/observability"
	"sitemap-backend/tests/fixtures"
)

var sitemapID = valueobjects.MustSitemapID(fixtures.DefaultSitemapID)

func nid(v int64) valueobjects.NodeID { return valueobjects.MustNodeID(v) }

// failingStore fails the failAt-th position write (1-based)
type failingStore struct {
	*memory.NodeStore
	failAt int32
	calls  atomic.Int32
}

func (s *failingStore) UpdatePosition(ctx context.Context, id valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error {
	if s.calls.Add(1) == s.failAt {
		return pkgerrors.NewDatabaseError("update_position", errors.New("connection reset"))
	}
	return s.NodeStore.UpdatePosition(ctx, id, nodeID, pos)
}

// blockingStore parks every position write until released
type blockingStore struct {
	*memory.NodeStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) UpdatePosition(ctx context.Context, id valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.NodeStore.UpdatePosition(ctx, id, nodeID, pos)
}

type harness struct {
	svc       *services.EditorService
	store     *memory.NodeStore
	sessions  *memory.SessionStore
	publisher *messaging.RecordingPublisher
}

func seed(t *testing.T, nodes []*entities.Node) *memory.NodeStore {
	t.Helper()
	store := memory.NewNodeStore()
	for _, n := range nodes {
		require.NoError(t, store.Upsert(context.Background(), n))
	}
	return store
}

func newHarness(t *testing.T, store *memory.NodeStore, override ...ports.NodeStore) *harness {
	t.Helper()
	h := &harness{
		store:     store,
		sessions:  memory.NewSessionStore(time.Hour),
		publisher: messaging.NewRecordingPublisher(),
	}
	var ns ports.NodeStore = store
	if len(override) > 0 {
		ns = override[0]
	}
	cfg := config.DefaultDomainConfig()
	h.svc = services.NewEditorService(
		ns,
		h.sessions,
		h.publisher,
		locking.NewLocalGuard(),
		layout.NewEngine(layout.OptionsFromConfig(cfg)),
		cfg,
		observability.NewCollector("test"),
		zap.NewNop(),
	)
	return h
}

func positionsOf(vertices []canvas.Node) map[int64]canvas.Point {
	out := make(map[int64]canvas.Point, len(vertices))
	for id, p := range canvas.Positions(vertices) {
		out[id.Int64()] = p
	}
	return out
}

func TestOpen_AutoLayoutWhenPositionsMissing(t *testing.T) {
	// Arrange
	h := newHarness(t, seed(t, fixtures.SampleTree()))

	// Act
	view, err := h.svc.Open(context.Background(), services.OpenParams{SitemapID: sitemapID})

	// Assert
	require.NoError(t, err)
	pos := positionsOf(view.Nodes)
	assert.Equal(t, canvas.Point{X: 0, Y: 125}, pos[1])
	assert.Equal(t, canvas.Point{X: 300, Y: 50}, pos[2])
	assert.Equal(t, canvas.Point{X: 300, Y: 200}, pos[3])
	assert.Equal(t, canvas.Point{X: 600, Y: 0}, pos[4])
	assert.Equal(t, canvas.Point{X: 600, Y: 100}, pos[5])
	assert.True(t, view.Dirty, "a layout on load is unsaved until the user saves")
	assert.Len(t, view.Edges, 4)
	assert.Equal(t, []string{events.TypeLayoutApplied}, h.publisher.Types())
}

func TestOpen_PartiallyPositionedTreeIsLaidOutWhole(t *testing.T) {
	// Arrange: the root and page 2 are placed, pages 3, 4 and 5 are not
	ctx := context.Background()
	placed := fixtures.PositionedTree()
	nodes := fixtures.SampleTree()
	nodes[0], nodes[1] = placed[0], placed[1]
	h := newHarness(t, seed(t, nodes))

	// Act
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})

	// Assert
	require.NoError(t, err)
	pos := positionsOf(view.Nodes)
	assert.Less(t, pos[1].X, pos[2].X)
	assert.Equal(t, pos[2].X, pos[3].X)
	assert.Less(t, pos[2].X, pos[4].X)
	assert.Equal(t, pos[4].X, pos[5].X)
	assert.True(t, view.Dirty)
	assert.Equal(t, fixtures.IDs(1, 3, 4, 5), view.Moved, "page 2 already sat where the layout puts it")

	outcome, err := h.svc.Save(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 5, outcome.Persisted)
	assert.False(t, outcome.Dirty)

	reloaded, err := h.svc.Reload(ctx, view.SessionID)
	require.NoError(t, err)
	assert.False(t, reloaded.Dirty)
	assert.Equal(t, pos, positionsOf(reloaded.Nodes))
}

func TestSession_OnlyOwnerOrAdmin(t *testing.T) {
	// Arrange
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	owner := common.WithUserID(context.Background(), "alice")
	view, err := h.svc.Open(owner, services.OpenParams{SitemapID: sitemapID, UserID: "alice"})
	require.NoError(t, err)

	other := common.WithUserID(context.Background(), "bob")
	admin := common.WithUserRoles(other, []string{"editor", common.RoleAdmin})

	// Act
	_, ownerErr := h.svc.View(owner, view.SessionID)
	_, otherErr := h.svc.MoveNode(other, view.SessionID, nid(4), 10, 10)
	_, adminErr := h.svc.View(admin, view.SessionID)
	_, anonErr := h.svc.View(context.Background(), view.SessionID)

	// Assert
	assert.NoError(t, ownerErr)
	assert.True(t, pkgerrors.IsType(otherErr, pkgerrors.ErrorTypeForbidden), "got %v", otherErr)
	assert.NoError(t, adminErr)
	assert.NoError(t, anonErr)

	state, err := h.svc.Dirty(owner, view.SessionID)
	require.NoError(t, err)
	assert.False(t, state.Dirty, "the refused move left the session untouched")
}

func TestOpen_KeepsStoredPositions(t *testing.T) {
	h := newHarness(t, seed(t, fixtures.PositionedTree()))

	view, err := h.svc.Open(context.Background(), services.OpenParams{SitemapID: sitemapID})

	require.NoError(t, err)
	assert.False(t, view.Dirty)
	assert.Equal(t, canvas.Point{X: 300, Y: 200}, positionsOf(view.Nodes)[3])
	assert.Empty(t, h.publisher.Types())
}

func TestOpen_OriginCountsAsUnset(t *testing.T) {
	nodes := fixtures.PositionedTree()
	nodes[2] = fixtures.NewNodeBuilder(3).WithParent(1).WithPosition(0, 0).MustBuild()
	h := newHarness(t, seed(t, nodes))

	view, err := h.svc.Open(context.Background(), services.OpenParams{SitemapID: sitemapID})

	require.NoError(t, err)
	assert.Equal(t, []string{events.TypeLayoutApplied}, h.publisher.Types())
	assert.True(t, view.Dirty)
}

func TestOpen_EmptySitemap(t *testing.T) {
	h := newHarness(t, memory.NewNodeStore())

	view, err := h.svc.Open(context.Background(), services.OpenParams{SitemapID: sitemapID})

	require.NoError(t, err)
	assert.Empty(t, view.Nodes)
	assert.Empty(t, view.Edges)
	assert.False(t, view.Dirty)
}

func TestMoveNode_Tolerance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	state, err := h.svc.MoveNode(ctx, view.SessionID, nid(4), 600.5, 0.9)
	require.NoError(t, err)
	assert.False(t, state.Dirty, "sub-unit jitter is ignored")

	state, err = h.svc.MoveNode(ctx, view.SessionID, nid(4), 640, 0)
	require.NoError(t, err)
	assert.True(t, state.Dirty)
	assert.Equal(t, fixtures.IDs(4), state.Moved)

	state, err = h.svc.MoveNode(ctx, view.SessionID, nid(4), 600, 0)
	require.NoError(t, err)
	assert.False(t, state.Dirty, "moving back clears the dirty flag")

	_, err = h.svc.MoveNode(ctx, view.SessionID, nid(99), 1, 1)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSave_PersistsAndRebaselines(t *testing.T) {
	// Arrange
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.SampleTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	// Act
	outcome, err := h.svc.Save(ctx, view.SessionID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 5, outcome.Persisted)
	assert.False(t, outcome.Dirty)

	stored, err := h.store.ListBySitemap(ctx, sitemapID)
	require.NoError(t, err)
	assert.Equal(t, positionsOf(view.Nodes), positionsOf(canvas.ToNodes(stored)))

	dirtyState, err := h.svc.Dirty(ctx, view.SessionID)
	require.NoError(t, err)
	assert.False(t, dirtyState.Dirty)
	assert.Contains(t, h.publisher.Types(), events.TypeLayoutSaved)

	reopened, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)
	assert.False(t, reopened.Dirty, "saved layout is not laid out again")
}

func TestSave_PartialFailureStaysDirty(t *testing.T) {
	// Arrange
	ctx := context.Background()
	base := seed(t, fixtures.SampleTree())
	flaky := &failingStore{NodeStore: base, failAt: 3}
	h := newHarness(t, base, flaky)
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	// Act
	_, err = h.svc.Save(ctx, view.SessionID)

	// Assert
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodePartialSave))
	var saveErr *services.SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, 2, saveErr.Persisted)
	assert.Equal(t, nid(3), saveErr.FailedNodeID)

	state, err := h.svc.Dirty(ctx, view.SessionID)
	require.NoError(t, err)
	assert.True(t, state.Dirty)

	stored, _ := base.ListBySitemap(ctx, sitemapID)
	assert.True(t, stored[0].HasPosition(), "writes before the failure stay written")
	assert.True(t, stored[1].HasPosition())
	assert.False(t, stored[2].HasPosition())
	assert.Contains(t, h.publisher.Types(), events.TypeLayoutSaveFailed)

	// a retry succeeds and clears the flag
	outcome, err := h.svc.Save(ctx, view.SessionID)
	require.NoError(t, err)
	assert.False(t, outcome.Dirty)
}

func TestSave_RejectsConcurrentSave(t *testing.T) {
	ctx := context.Background()
	base := seed(t, fixtures.PositionedTree())
	blocking := &blockingStore{NodeStore: base, started: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, base, blocking)
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Save(ctx, view.SessionID)
		done <- err
	}()
	<-blocking.started

	_, err = h.svc.Save(ctx, view.SessionID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeSaveInProgress))

	// the session stays usable while the save is in flight
	_, err = h.svc.View(ctx, view.SessionID)
	assert.NoError(t, err)

	close(blocking.release)
	require.NoError(t, <-done)
}

func TestSave_MoveDuringSaveStaysDirty(t *testing.T) {
	ctx := context.Background()
	base := seed(t, fixtures.PositionedTree())
	blocking := &blockingStore{NodeStore: base, started: make(chan struct{}), release: make(chan struct{})}
	h := newHarness(t, base, blocking)
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Save(ctx, view.SessionID)
		done <- err
	}()
	<-blocking.started
	_, err = h.svc.MoveNode(ctx, view.SessionID, nid(5), 900, 900)
	require.NoError(t, err)
	close(blocking.release)
	require.NoError(t, <-done)

	state, err := h.svc.Dirty(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, fixtures.IDs(5), state.Moved)
}

func TestClose_NavigationGuard(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)
	_, err = h.svc.MoveNode(ctx, view.SessionID, nid(2), 10, 10)
	require.NoError(t, err)

	err = h.svc.Close(ctx, view.SessionID, false)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsavedChanges))

	require.NoError(t, h.svc.Close(ctx, view.SessionID, true))
	_, err = h.svc.View(ctx, view.SessionID)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSelection_ToggleAndReplace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	selected, err := h.svc.ToggleSubtree(ctx, view.SessionID, nid(2))
	require.NoError(t, err)
	assert.Equal(t, fixtures.IDs(2, 4, 5), selected)

	selected, err = h.svc.ToggleSubtree(ctx, view.SessionID, nid(42))
	require.NoError(t, err)
	assert.Equal(t, fixtures.IDs(2, 4, 5), selected, "unknown ids are a no-op")

	selected, err = h.svc.ToggleSubtree(ctx, view.SessionID, nid(2))
	require.NoError(t, err)
	assert.Empty(t, selected)

	selected, err = h.svc.SetSelection(ctx, view.SessionID, selection.SourceList, fixtures.IDs(3, 77))
	require.NoError(t, err)
	assert.Equal(t, fixtures.IDs(3), selected)

	current, err := h.svc.View(ctx, view.SessionID)
	require.NoError(t, err)
	for _, v := range current.Nodes {
		assert.Equal(t, v.ID == nid(3), v.Selected, "graph projection of node %s", v.ID)
	}

	desc, err := h.svc.Descendants(ctx, view.SessionID, nid(2))
	require.NoError(t, err)
	assert.Equal(t, fixtures.IDs(2, 4, 5), desc)
}

func TestConnect_Reparents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	require.NoError(t, h.svc.BeginConnect(ctx, view.SessionID, nid(3)))
	target := nid(4)
	updated, err := h.svc.EndConnect(ctx, view.SessionID, &target)
	require.NoError(t, err)

	stored, _ := h.store.ListBySitemap(ctx, sitemapID)
	parent, ok := stored[3].ParentID()
	require.True(t, ok)
	assert.Equal(t, nid(3), parent)
	assert.Nil(t, updated.Interaction.ConnectSource)
	assert.Contains(t, h.publisher.Types(), events.TypeNodeReparented)
}

func TestConnect_RejectsInvalidTargets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	_, err = h.svc.EndConnect(ctx, view.SessionID, nil)
	assert.True(t, pkgerrors.IsValidation(err), "no drag in progress")

	require.NoError(t, h.svc.BeginConnect(ctx, view.SessionID, nid(4)))
	ancestor := nid(2)
	_, err = h.svc.EndConnect(ctx, view.SessionID, &ancestor)
	assert.True(t, pkgerrors.IsValidation(err), "source inside target subtree")

	root := nid(1)
	_, err = h.svc.EndConnect(ctx, view.SessionID, &root)
	assert.True(t, pkgerrors.IsValidation(err), "root cannot move")

	stored, _ := h.store.ListBySitemap(ctx, sitemapID)
	parent, _ := stored[1].ParentID()
	assert.Equal(t, nid(1), parent, "store untouched")
}

func TestConnect_DropOnCanvasRecordsIntent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	require.NoError(t, h.svc.BeginConnect(ctx, view.SessionID, nid(3)))
	updated, err := h.svc.EndConnect(ctx, view.SessionID, nil)

	require.NoError(t, err)
	require.NotNil(t, updated.Interaction.PendingChildOf)
	assert.Equal(t, nid(3), *updated.Interaction.PendingChildOf)
	assert.Nil(t, updated.Interaction.ConnectSource)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	_, err = h.svc.DeleteNode(ctx, view.SessionID, nid(2))
	assert.True(t, pkgerrors.IsConflict(err), "page with children")

	_, err = h.svc.DeleteNode(ctx, view.SessionID, nid(1))
	assert.True(t, pkgerrors.IsValidation(err), "root")

	updated, err := h.svc.DeleteNode(ctx, view.SessionID, nid(5))
	require.NoError(t, err)
	assert.Len(t, updated.Nodes, 4)
	stored, _ := h.store.ListBySitemap(ctx, sitemapID)
	assert.Len(t, stored, 4)
}

func TestDeleteSelected_RemovesOnlyFirstNonRoot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)
	_, err = h.svc.SetSelection(ctx, view.SessionID, selection.SourceGraph, fixtures.IDs(1, 3, 4))
	require.NoError(t, err)

	result, err := h.svc.DeleteSelected(ctx, view.SessionID)

	require.NoError(t, err)
	require.NotNil(t, result.Deleted)
	assert.Equal(t, nid(3), *result.Deleted)
	assert.Equal(t, fixtures.IDs(1, 4), result.Skipped)

	current, err := h.svc.View(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, fixtures.IDs(1, 4), current.Selected, "deleted id is pruned from the selection")
}

func TestAutoLayout_SwitchesDirection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, seed(t, fixtures.PositionedTree()))
	view, err := h.svc.Open(ctx, services.OpenParams{SitemapID: sitemapID})
	require.NoError(t, err)

	updated, err := h.svc.AutoLayout(ctx, view.SessionID, layout.TopToBottom)

	require.NoError(t, err)
	assert.Equal(t, layout.TopToBottom, updated.Direction)
	assert.Equal(t, 0.0, positionsOf(updated.Nodes)[1].Y, "root sits on the first rank")
	assert.True(t, updated.Dirty)
}
