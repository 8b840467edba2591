package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"sitemap-backend/application/ports"
	"sitemap-backend/application/session"
	"sitemap-backend/domain/config"
	"sitemap-backend/domain/core/aggregates"
	"sitemap-backend/domain/core/canvas"
	"sitemap-backend/domain/core/validators"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/events"
	"sitemap-backend/domain/services/layout"
	"sitemap-backend/domain/services/selection"
	"sitemap-backend/pkg/common"
	pkgerrors "sitemap-backend/pkg/errors"
	"sitemap-backend/pkg/observability"
)

// View is everything a client needs to render a session
type View struct {
	SessionID   string                     `json:"sessionId"`
	SitemapID   valueobjects.SitemapID     `json:"sitemapId"`
	Direction   layout.Direction           `json:"direction"`
	Nodes       []canvas.Node              `json:"nodes"`
	Edges       []canvas.Edge              `json:"edges"`
	Selected    []valueobjects.NodeID      `json:"selected"`
	Dirty       bool                       `json:"dirty"`
	Moved       []valueobjects.NodeID      `json:"moved"`
	Interaction session.InteractionContext `json:"interaction"`
	Issues      []validators.Issue         `json:"issues,omitempty"`
}

// DirtyState reports whether a session has unsaved layout changes
type DirtyState struct {
	Dirty bool                  `json:"dirty"`
	Moved []valueobjects.NodeID `json:"moved"`
}

// DeleteSelectedResult reports what a bulk delete actually removed
type DeleteSelectedResult struct {
	Deleted *valueobjects.NodeID  `json:"deleted,omitempty"`
	Skipped []valueobjects.NodeID `json:"skipped"`
}

// SaveOutcome is returned by a successful save
type SaveOutcome struct {
	Persisted int  `json:"persisted"`
	Dirty     bool `json:"dirty"`
}

// OpenParams describes a new session
type OpenParams struct {
	SitemapID valueobjects.SitemapID
	UserID    string
	Direction layout.Direction
}

// EditorService runs the editor operations. Every operation on one session
// is serialized by that session's mutex. Saves hold the mutex only while
// reading and rebaselining, never across store writes.
type EditorService struct {
	nodes     ports.NodeStore
	sessions  ports.SessionStore
	publisher ports.EventPublisher
	guard     ports.SaveGuard
	bridge    *PersistenceBridge
	engine    *layout.Engine
	validator *validators.TreeValidator
	cfg       *config.DomainConfig
	metrics   *observability.Collector
	logger    *zap.Logger
	now       func() time.Time

	locks sync.Map
}

// NewEditorService creates the editor service
func NewEditorService(
	nodes ports.NodeStore,
	sessions ports.SessionStore,
	publisher ports.EventPublisher,
	guard ports.SaveGuard,
	engine *layout.Engine,
	cfg *config.DomainConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) *EditorService {
	return &EditorService{
		nodes:     nodes,
		sessions:  sessions,
		publisher: publisher,
		guard:     guard,
		bridge:    NewPersistenceBridge(nodes, logger),
		engine:    engine,
		validator: validators.NewTreeValidator(),
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *EditorService) lockFor(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// withSession loads the session under its lock, runs fn and stores the
// result when fn succeeds and persist is set
func (s *EditorService) withSession(ctx context.Context, op, id string, persist bool, fn func(ctx context.Context, sess *session.Session) error) error {
	ctx, span := observability.StartSpan(ctx, "EditorService."+op, attribute.String("session.id", id))

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		observability.EndSpan(span, err)
		return err
	}
	if err := authorize(ctx, sess); err != nil {
		s.logger.Warn("Session access denied",
			zap.String("session_id", id),
			zap.String("operation", op),
			zap.String("owner", sess.UserID()),
		)
		observability.EndSpan(span, err)
		return err
	}
	if err := fn(ctx, sess); err != nil {
		observability.EndSpan(span, err)
		return err
	}
	if persist {
		sess.Touch(s.now())
		if err := s.sessions.Put(ctx, sess); err != nil {
			observability.EndSpan(span, err)
			return err
		}
	}
	observability.EndSpan(span, nil)
	return nil
}

// authorize lets only the opening user, or an admin, act on a session.
// Requests without a user and sessions opened anonymously are not checked.
func authorize(ctx context.Context, sess *session.Session) error {
	caller, ok := common.GetUserID(ctx)
	if !ok || sess.UserID() == "" || caller == sess.UserID() || common.HasRole(ctx, common.RoleAdmin) {
		return nil
	}
	return pkgerrors.NewForbiddenError("session belongs to another user")
}

func (s *EditorService) loadSitemap(ctx context.Context, sitemapID valueobjects.SitemapID) (*aggregates.Sitemap, []validators.Issue, error) {
	nodes, err := s.nodes.ListBySitemap(ctx, sitemapID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "failed to load sitemap")
	}
	if s.cfg.MaxNodesPerSitemap > 0 && len(nodes) > s.cfg.MaxNodesPerSitemap {
		return nil, nil, pkgerrors.NewValidationError(
			fmt.Sprintf("sitemap has %d pages, the editor supports at most %d", len(nodes), s.cfg.MaxNodesPerSitemap),
		).WithCode(pkgerrors.CodeTreeTooLarge)
	}

	issues := s.validator.Validate(nodes)
	if len(issues) > 0 {
		s.logger.Warn("Sitemap has structural issues",
			zap.Int64("sitemap_id", sitemapID.Int64()),
			zap.Int("issues", len(issues)),
			zap.String("first_issue", issues[0].Message),
		)
	}

	sitemap, err := aggregates.NewSitemap(sitemapID, nodes)
	if err != nil {
		return nil, nil, err
	}
	return sitemap, issues, nil
}

// autoLayout lays out all nodes of sess in its direction and applies the result
func (s *EditorService) autoLayout(ctx context.Context, sess *session.Session, trigger string) error {
	nodes := sess.Nodes()
	result := s.engine.Layout(canvas.ToNodes(nodes), canvas.ToEdges(nodes), sess.Direction())
	if result.Cyclic {
		s.logger.Warn("Layout input contains a cycle",
			zap.String("session_id", sess.ID()),
			zap.Int64("sitemap_id", sess.SitemapID().Int64()),
		)
	}
	if err := sess.ApplyLayout(result.Nodes); err != nil {
		return err
	}

	s.metrics.ObserveLayout(trigger, len(nodes))
	s.publish(ctx, events.NewLayoutApplied(sess.SitemapID(), sess.ID(), trigger, string(sess.Direction()), len(nodes), s.now()))
	return nil
}

func (s *EditorService) publish(ctx context.Context, evts ...events.DomainEvent) {
	if len(evts) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, evts...); err != nil {
		s.logger.Warn("Failed to publish events", zap.Int("count", len(evts)), zap.Error(err))
	}
}

func (s *EditorService) view(sess *session.Session, issues []validators.Issue) *View {
	nodes, edges := sess.Canvas()
	moved := sess.Moved()
	if moved == nil {
		moved = []valueobjects.NodeID{}
	}
	return &View{
		SessionID:   sess.ID(),
		SitemapID:   sess.SitemapID(),
		Direction:   sess.Direction(),
		Nodes:       nodes,
		Edges:       edges,
		Selected:    sess.Selection().ForList(),
		Dirty:       len(moved) > 0,
		Moved:       moved,
		Interaction: sess.Interaction(),
		Issues:      issues,
	}
}

// Open loads a sitemap into a new session. Missing or origin positions
// trigger an automatic layout, which leaves the session dirty until saved.
func (s *EditorService) Open(ctx context.Context, params OpenParams) (*View, error) {
	ctx, span := observability.StartSpan(ctx, "EditorService.Open",
		attribute.Int64("sitemap.id", params.SitemapID.Int64()))

	dir := params.Direction
	if dir == "" {
		dir = layout.Direction(s.cfg.LayoutDirection)
	}

	sitemap, issues, err := s.loadSitemap(ctx, params.SitemapID)
	if err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}

	sess := session.New(params.UserID, sitemap, s.cfg.DirtyTolerance, dir, s.now())
	if layout.NeedsLayout(sitemap.Nodes(), s.cfg.OriginIsUnset) {
		if err := s.autoLayout(ctx, sess, events.TriggerLoad); err != nil {
			observability.EndSpan(span, err)
			return nil, err
		}
	}

	if err := s.sessions.Put(ctx, sess); err != nil {
		observability.EndSpan(span, err)
		return nil, err
	}
	s.metrics.SessionsOpen.Inc()

	s.logger.Info("Editor session opened",
		zap.String("session_id", sess.ID()),
		zap.Int64("sitemap_id", params.SitemapID.Int64()),
		zap.Int("nodes", sitemap.Len()),
		zap.Bool("dirty", sess.IsDirty()),
	)
	observability.EndSpan(span, nil)
	return s.view(sess, issues), nil
}

// Reload replaces the session's nodes and baseline with the stored state
func (s *EditorService) Reload(ctx context.Context, sessionID string) (*View, error) {
	var out *View
	err := s.withSession(ctx, "Reload", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		issues, err := s.reload(ctx, sess)
		if err != nil {
			return err
		}
		out = s.view(sess, issues)
		return nil
	})
	return out, err
}

func (s *EditorService) reload(ctx context.Context, sess *session.Session) ([]validators.Issue, error) {
	sitemap, issues, err := s.loadSitemap(ctx, sess.SitemapID())
	if err != nil {
		return nil, err
	}
	sess.ReplaceSitemap(sitemap)
	if layout.NeedsLayout(sitemap.Nodes(), s.cfg.OriginIsUnset) {
		if err := s.autoLayout(ctx, sess, events.TriggerLoad); err != nil {
			return nil, err
		}
	}
	return issues, nil
}

// AutoLayout lays out every node on request. An empty direction keeps the
// session's current one.
func (s *EditorService) AutoLayout(ctx context.Context, sessionID string, dir layout.Direction) (*View, error) {
	var out *View
	err := s.withSession(ctx, "AutoLayout", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		if dir != "" {
			sess.SetDirection(dir)
		}
		if err := s.autoLayout(ctx, sess, events.TriggerManual); err != nil {
			return err
		}
		out = s.view(sess, nil)
		return nil
	})
	return out, err
}

// MoveNode records the end of a drag
func (s *EditorService) MoveNode(ctx context.Context, sessionID string, nodeID valueobjects.NodeID, x, y float64) (*DirtyState, error) {
	pos, err := valueobjects.NewPosition(x, y)
	if err != nil {
		return nil, err
	}

	var out *DirtyState
	err = s.withSession(ctx, "MoveNode", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		node, ok := sess.Sitemap().Node(nodeID)
		if !ok {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", nodeID))
		}
		old := node.PositionOrOrigin()
		if err := sess.Sitemap().MoveNode(nodeID, pos); err != nil {
			return err
		}
		s.publish(ctx, events.NewNodeMoved(sess.SitemapID(), nodeID, old, pos, s.now()))
		out = dirtyState(sess)
		return nil
	})
	return out, err
}

// ToggleSubtree selects or clears a node together with all its descendants
func (s *EditorService) ToggleSubtree(ctx context.Context, sessionID string, nodeID valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	var out []valueobjects.NodeID
	err := s.withSession(ctx, "ToggleSubtree", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		sess.Selection().Toggle(sess.Sitemap(), nodeID)
		out = sess.Selection().ForList()
		return nil
	})
	return out, err
}

// SetSelection replaces the selection as reported by the graph or list view
func (s *EditorService) SetSelection(ctx context.Context, sessionID string, source selection.Source, ids []valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	var out []valueobjects.NodeID
	err := s.withSession(ctx, "SetSelection", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		sess.Selection().Replace(sess.Sitemap(), source, ids)
		out = sess.Selection().ForList()
		return nil
	})
	return out, err
}

// Descendants returns nodeID and everything beneath it, ascending by id
func (s *EditorService) Descendants(ctx context.Context, sessionID string, nodeID valueobjects.NodeID) ([]valueobjects.NodeID, error) {
	var out []valueobjects.NodeID
	err := s.withSession(ctx, "Descendants", sessionID, false, func(ctx context.Context, sess *session.Session) error {
		out = selection.Descendants(sess.Sitemap(), nodeID).IDs()
		return nil
	})
	return out, err
}

// BeginConnect records the node a connection drag started from
func (s *EditorService) BeginConnect(ctx context.Context, sessionID string, source valueobjects.NodeID) error {
	return s.withSession(ctx, "BeginConnect", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		if !sess.Sitemap().Contains(source) {
			return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", source))
		}
		src := source
		sess.SetInteraction(session.InteractionContext{ConnectSource: &src})
		return nil
	})
}

// EndConnect finishes a connection drag. Dropping on a node moves that node
// under the drag source. Dropping on empty canvas records that the next
// created page goes under the source.
func (s *EditorService) EndConnect(ctx context.Context, sessionID string, target *valueobjects.NodeID) (*View, error) {
	var out *View
	err := s.withSession(ctx, "EndConnect", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		ic := sess.Interaction()
		if ic.ConnectSource == nil {
			return pkgerrors.NewValidationError("no connection in progress")
		}
		source := *ic.ConnectSource

		if target == nil {
			sess.SetInteraction(session.InteractionContext{PendingChildOf: &source})
			out = s.view(sess, nil)
			return nil
		}

		if err := sess.Sitemap().Reparent(*target, source); err != nil {
			return err
		}
		if err := s.nodes.UpdateParent(ctx, sess.SitemapID(), *target, source); err != nil {
			return pkgerrors.Wrap(err, "failed to move page")
		}
		reparented := sess.Sitemap().GetUncommittedEvents()
		sess.Sitemap().MarkEventsAsCommitted()

		sess.SetInteraction(session.InteractionContext{})
		issues, err := s.reload(ctx, sess)
		if err != nil {
			return err
		}
		s.publish(ctx, reparented...)
		out = s.view(sess, issues)
		return nil
	})
	return out, err
}

// DeleteNode removes a childless, non-root page and reloads
func (s *EditorService) DeleteNode(ctx context.Context, sessionID string, nodeID valueobjects.NodeID) (*View, error) {
	var out *View
	err := s.withSession(ctx, "DeleteNode", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		issues, err := s.deleteNode(ctx, sess, nodeID)
		if err != nil {
			return err
		}
		out = s.view(sess, issues)
		return nil
	})
	return out, err
}

func (s *EditorService) deleteNode(ctx context.Context, sess *session.Session, nodeID valueobjects.NodeID) ([]validators.Issue, error) {
	if err := sess.Sitemap().Remove(nodeID); err != nil {
		return nil, err
	}
	if err := s.nodes.Delete(ctx, sess.SitemapID(), nodeID); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to delete page")
	}
	deleted := sess.Sitemap().GetUncommittedEvents()
	sess.Sitemap().MarkEventsAsCommitted()

	issues, err := s.reload(ctx, sess)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, deleted...)
	return issues, nil
}

// DeleteSelected removes only the first selected non-root page, in
// ascending id order. The other selected pages are reported as skipped.
func (s *EditorService) DeleteSelected(ctx context.Context, sessionID string) (*DeleteSelectedResult, error) {
	var out *DeleteSelectedResult
	err := s.withSession(ctx, "DeleteSelected", sessionID, true, func(ctx context.Context, sess *session.Session) error {
		result := &DeleteSelectedResult{Skipped: []valueobjects.NodeID{}}
		for _, id := range sess.Selection().ForList() {
			node, ok := sess.Sitemap().Node(id)
			if result.Deleted != nil || !ok || node.IsRoot() {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			target := id
			result.Deleted = &target
		}
		if result.Deleted != nil {
			if _, err := s.deleteNode(ctx, sess, *result.Deleted); err != nil {
				return err
			}
		}
		out = result
		return nil
	})
	return out, err
}

// Save persists every live position. A second save of the same session
// while one is running is rejected.
func (s *EditorService) Save(ctx context.Context, sessionID string) (*SaveOutcome, error) {
	release, ok, err := s.guard.TryAcquire(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to acquire save guard")
	}
	if !ok {
		return nil, pkgerrors.NewConflictError("a save is already in progress").WithCode(pkgerrors.CodeSaveInProgress)
	}
	defer release()

	var working *session.Session
	if err := s.withSession(ctx, "Save.Read", sessionID, false, func(_ context.Context, sess *session.Session) error {
		working = sess
		return nil
	}); err != nil {
		return nil, err
	}

	result, saveErr := s.bridge.Save(ctx, working)

	var outcome *SaveOutcome
	err = s.withSession(context.WithoutCancel(ctx), "Save.Rebaseline", sessionID, saveErr == nil, func(ctx context.Context, sess *session.Session) error {
		if saveErr == nil {
			sess.Rebaseline(result.Written)
		}
		outcome = &SaveOutcome{Persisted: result.Persisted, Dirty: sess.IsDirty()}
		return nil
	})
	if err != nil && !pkgerrors.IsNotFound(err) {
		return nil, err
	}

	if saveErr != nil {
		s.metrics.ObserveSave("partial", result.Persisted)
		failed := valueobjects.NodeID{}
		if se := asSaveError(saveErr); se != nil {
			failed = se.FailedNodeID
		}
		s.publish(ctx, events.NewLayoutSaveFailed(working.SitemapID(), sessionID, result.Persisted, failed, saveErr.Error(), s.now()))
		return nil, saveErr
	}

	s.metrics.ObserveSave("success", result.Persisted)
	s.publish(ctx, events.NewLayoutSaved(working.SitemapID(), sessionID, result.Persisted, s.now()))
	if outcome == nil {
		outcome = &SaveOutcome{Persisted: result.Persisted}
	}
	return outcome, nil
}

// Close ends a session. With unsaved changes it refuses unless forced.
func (s *EditorService) Close(ctx context.Context, sessionID string, force bool) error {
	err := s.withSession(ctx, "Close", sessionID, false, func(ctx context.Context, sess *session.Session) error {
		if moved := sess.Moved(); len(moved) > 0 && !force {
			ids := make([]int64, len(moved))
			for i, id := range moved {
				ids[i] = id.Int64()
			}
			return pkgerrors.NewConflictError("the layout has unsaved changes").
				WithCode(pkgerrors.CodeUnsavedChanges).
				WithDetails(map[string]interface{}{"moved": ids})
		}
		return s.sessions.Delete(ctx, sessionID)
	})
	if err != nil {
		return err
	}
	s.locks.Delete(sessionID)
	s.metrics.SessionsOpen.Dec()
	s.logger.Info("Editor session closed", zap.String("session_id", sessionID), zap.Bool("forced", force))
	return nil
}

// View renders the current session
func (s *EditorService) View(ctx context.Context, sessionID string) (*View, error) {
	var out *View
	err := s.withSession(ctx, "View", sessionID, false, func(ctx context.Context, sess *session.Session) error {
		out = s.view(sess, nil)
		return nil
	})
	return out, err
}

// Dirty reports the unsaved state of a session
func (s *EditorService) Dirty(ctx context.Context, sessionID string) (*DirtyState, error) {
	var out *DirtyState
	err := s.withSession(ctx, "Dirty", sessionID, false, func(ctx context.Context, sess *session.Session) error {
		out = dirtyState(sess)
		return nil
	})
	return out, err
}

func dirtyState(sess *session.Session) *DirtyState {
	moved := sess.Moved()
	if moved == nil {
		moved = []valueobjects.NodeID{}
	}
	return &DirtyState{Dirty: len(moved) > 0, Moved: moved}
}

func asSaveError(err error) *SaveError {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		return nil
	}
	se, _ := appErr.Cause.(*SaveError)
	return se
}
