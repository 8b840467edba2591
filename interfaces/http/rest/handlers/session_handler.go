package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"sitemap-backend/application/commands"
	"sitemap-backend/application/commands/bus"
	"sitemap-backend/application/queries"
	querybus "sitemap-backend/application/queries/bus"
	"sitemap-backend/application/services"
	"sitemap-backend/pkg/common"
	pkgerrors "sitemap-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

// SessionHandler serves the editor session endpoints
type SessionHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	errHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		errors:     errHandler,
		logger:     logger,
	}
}

// Routes mounts the session endpoints on r
func (h *SessionHandler) Routes(r chi.Router) {
	r.Post("/sitemaps/{sitemapID}/sessions", h.OpenSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(stampSession)
		r.Get("/", h.GetSession)
		r.Delete("/", h.CloseSession)
		r.Post("/reload", h.ReloadSession)
		r.Post("/layout", h.AutoLayout)
		r.Get("/dirty", h.GetDirty)
		r.Post("/save", h.Save)

		r.Put("/nodes/{nodeID}/position", h.MoveNode)
		r.Delete("/nodes/{nodeID}", h.DeleteNode)
		r.Get("/nodes/{nodeID}/descendants", h.GetDescendants)

		r.Put("/selection", h.SetSelection)
		r.Post("/selection/toggle", h.ToggleSubtree)
		r.Post("/selection/delete", h.DeleteSelected)

		r.Post("/connect/start", h.BeginConnect)
		r.Post("/connect/end", h.EndConnect)
	})
}

// OpenSessionRequest is the optional body of POST /sitemaps/{sitemapID}/sessions
type OpenSessionRequest struct {
	Direction string `json:"direction,omitempty"`
}

// LayoutRequest is the optional body of POST /sessions/{id}/layout
type LayoutRequest struct {
	Direction string `json:"direction,omitempty"`
}

// MoveNodeRequest is the body of PUT /sessions/{id}/nodes/{nodeID}/position
type MoveNodeRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// ToggleRequest is the body of POST /sessions/{id}/selection/toggle
type ToggleRequest struct {
	NodeID int64 `json:"nodeId"`
}

// SelectionRequest is the body of PUT /sessions/{id}/selection
type SelectionRequest struct {
	Source  string  `json:"source"`
	NodeIDs []int64 `json:"nodeIds"`
}

// ConnectStartRequest is the body of POST /sessions/{id}/connect/start
type ConnectStartRequest struct {
	SourceID int64 `json:"sourceId"`
}

// ConnectEndRequest is the body of POST /sessions/{id}/connect/end. A
// missing target means the drag ended on empty canvas.
type ConnectEndRequest struct {
	TargetID *int64 `json:"targetId"`
}

// OpenSession handles POST /sitemaps/{sitemapID}/sessions
func (h *SessionHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	sitemapID, err := pathInt(r, "sitemapID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req OpenSessionRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	userID, _ := common.GetUserID(r.Context())
	result, err := h.commandBus.Send(r.Context(), commands.OpenSessionCommand{
		SitemapID: sitemapID,
		UserID:    userID,
		Direction: req.Direction,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusCreated, result)
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.GetSessionViewQuery{SessionID: chi.URLParam(r, "sessionID")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK, result)
}

// CloseSession handles DELETE /sessions/{sessionID}?force=true
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	h.send(w, r, http.StatusNoContent, commands.CloseSessionCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Force:     force,
	})
}

// ReloadSession handles POST /sessions/{sessionID}/reload
func (h *SessionHandler) ReloadSession(w http.ResponseWriter, r *http.Request) {
	result, err := h.commandBus.Send(r.Context(), commands.ReloadSessionCommand{SessionID: chi.URLParam(r, "sessionID")})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK, result)
}

// AutoLayout handles POST /sessions/{sessionID}/layout
func (h *SessionHandler) AutoLayout(w http.ResponseWriter, r *http.Request) {
	var req LayoutRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	result, err := h.commandBus.Send(r.Context(), commands.AutoLayoutCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Direction: req.Direction,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK, result)
}

// GetDirty handles GET /sessions/{sessionID}/dirty
func (h *SessionHandler) GetDirty(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.queryBus.Ask(r.Context(), queries.GetDirtyStateQuery{SessionID: sessionID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondDirty(w, r, sessionID, result)
}

// Save handles POST /sessions/{sessionID}/save
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.commandBus.Send(r.Context(), commands.SaveLayoutCommand{SessionID: sessionID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	meta := &common.MetaInfo{SessionID: sessionID}
	if outcome, ok := result.(*services.SaveOutcome); ok {
		meta.Dirty = &outcome.Dirty
	}
	common.RespondWithMeta(w, r, http.StatusOK, result, meta)
}

// MoveNode handles PUT /sessions/{sessionID}/nodes/{nodeID}/position
func (h *SessionHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathInt(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req MoveNodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.X == nil || req.Y == nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("x and y are required"))
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.commandBus.Send(r.Context(), commands.MoveNodeCommand{
		SessionID: sessionID,
		NodeID:    nodeID,
		X:         *req.X,
		Y:         *req.Y,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondDirty(w, r, sessionID, result)
}

// DeleteNode handles DELETE /sessions/{sessionID}/nodes/{nodeID}
func (h *SessionHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathInt(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	result, err := h.commandBus.Send(r.Context(), commands.DeleteNodeCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    nodeID,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK, result)
}

// GetDescendants handles GET /sessions/{sessionID}/nodes/{nodeID}/descendants
func (h *SessionHandler) GetDescendants(w http.ResponseWriter, r *http.Request) {
	nodeID, err := pathInt(r, "nodeID")
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	result, err := h.queryBus.Ask(r.Context(), queries.GetDescendantsQuery{SessionID: sessionID, NodeID: nodeID})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondWithMeta(w, r, http.StatusOK, result, &common.MetaInfo{SessionID: sessionID})
}

// SetSelection handles PUT /sessions/{sessionID}/selection
func (h *SessionHandler) SetSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.sendSelection(w, r, commands.SetSelectionCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		Source:    req.Source,
		NodeIDs:   req.NodeIDs,
	})
}

// ToggleSubtree handles POST /sessions/{sessionID}/selection/toggle
func (h *SessionHandler) ToggleSubtree(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.sendSelection(w, r, commands.ToggleSubtreeCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		NodeID:    req.NodeID,
	})
}

// DeleteSelected handles POST /sessions/{sessionID}/selection/delete
func (h *SessionHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	h.send(w, r, http.StatusOK, commands.DeleteSelectedCommand{SessionID: chi.URLParam(r, "sessionID")})
}

// BeginConnect handles POST /sessions/{sessionID}/connect/start
func (h *SessionHandler) BeginConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectStartRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.send(w, r, http.StatusNoContent, commands.BeginConnectCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		SourceID:  req.SourceID,
	})
}

// EndConnect handles POST /sessions/{sessionID}/connect/end
func (h *SessionHandler) EndConnect(w http.ResponseWriter, r *http.Request) {
	var req ConnectEndRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	result, err := h.commandBus.Send(r.Context(), commands.EndConnectCommand{
		SessionID: chi.URLParam(r, "sessionID"),
		TargetID:  req.TargetID,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK, result)
}

func (h *SessionHandler) send(w http.ResponseWriter, r *http.Request, status int, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	common.RespondWithMeta(w, r, status, result, &common.MetaInfo{SessionID: chi.URLParam(r, "sessionID")})
}

func (h *SessionHandler) sendSelection(w http.ResponseWriter, r *http.Request, cmd bus.Command) {
	result, err := h.commandBus.Send(r.Context(), cmd)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondWithMeta(w, r, http.StatusOK, map[string]interface{}{"selected": result},
		&common.MetaInfo{SessionID: chi.URLParam(r, "sessionID")})
}

func (h *SessionHandler) respondView(w http.ResponseWriter, r *http.Request, status int, result interface{}) {
	meta := &common.MetaInfo{}
	if view, ok := result.(*services.View); ok {
		meta.SessionID = view.SessionID
		meta.Dirty = &view.Dirty
	}
	common.RespondWithMeta(w, r, status, result, meta)
}

func (h *SessionHandler) respondDirty(w http.ResponseWriter, r *http.Request, sessionID string, result interface{}) {
	meta := &common.MetaInfo{SessionID: sessionID}
	if state, ok := result.(*services.DirtyState); ok {
		meta.Dirty = &state.Dirty
	}
	common.RespondWithMeta(w, r, http.StatusOK, result, meta)
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := common.ParseJSONBody(r, v, maxBodyBytes); err != nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// decodeOptional accepts an empty body
func (h *SessionHandler) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := common.ParseJSONBody(r, v, maxBodyBytes); err != nil && !errors.Is(err, io.EOF) {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// stampSession puts the session id on the context for command and error logs
func stampSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := common.WithSessionID(r.Context(), chi.URLParam(r, "sessionID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func pathInt(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, pkgerrors.NewValidationError(name + " must be a positive integer")
	}
	return v, nil
}
