package errors_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"sitemap-backend/pkg/common"
	pkgerrors "sitemap-backend/pkg/errors"
)

func newHandler(debug bool) (*pkgerrors.ErrorHandler, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return pkgerrors.NewErrorHandler(zap.New(core), debug), logs
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) pkgerrors.ErrorResponse {
	t.Helper()
	var body pkgerrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHandle_AppErrorCarriesCodeAndSession(t *testing.T) {
	// Arrange
	h, logs := newHandler(false)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/abc", nil)
	req = req.WithContext(common.WithSessionID(req.Context(), "abc"))
	rec := httptest.NewRecorder()
	err := pkgerrors.NewConflictError("the layout has unsaved changes").
		WithCode(pkgerrors.CodeUnsavedChanges).
		WithDetails(map[string]interface{}{"moved": []int64{4}})

	// Act
	h.Handle(rec, req, err)

	// Assert
	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "CONFLICT", body.Type)
	assert.Equal(t, pkgerrors.CodeUnsavedChanges, body.Code)
	assert.NotContains(t, body.Details, "stack_trace")

	entries := logs.FilterField(zap.String("session_id", "abc")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, pkgerrors.CodeUnsavedChanges, entries[0].ContextMap()["error_code"])
}

func TestHandle_MasksUnknownErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	quiet, _ := newHandler(false)
	rec := httptest.NewRecorder()
	quiet.Handle(rec, req, errors.New("disk full"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "An internal error occurred", decodeBody(t, rec).Message)

	debug, _ := newHandler(true)
	rec = httptest.NewRecorder()
	debug.Handle(rec, req, errors.New("disk full"))
	assert.Equal(t, "disk full", decodeBody(t, rec).Message)
}

func TestHandle_ForbiddenAndDebugStack(t *testing.T) {
	h, _ := newHandler(true)
	rec := httptest.NewRecorder()

	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), pkgerrors.NewForbiddenError(""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "forbidden", body.Message)
	assert.Contains(t, body.Details, "stack_trace")
}

func TestHandleStatus(t *testing.T) {
	tests := []struct {
		status int
		want   pkgerrors.ErrorType
	}{
		{http.StatusNotFound, pkgerrors.ErrorTypeNotFound},
		{http.StatusMethodNotAllowed, pkgerrors.ErrorTypeValidation},
		{http.StatusInternalServerError, pkgerrors.ErrorTypeInternal},
		{http.StatusBadGateway, pkgerrors.ErrorTypeExternal},
		{http.StatusTeapot, pkgerrors.ErrorTypeInternal},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			h, logs := newHandler(false)
			rec := httptest.NewRecorder()

			h.HandleStatus(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tt.status, "nope")

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, string(tt.want), decodeBody(t, rec).Type)
			assert.Equal(t, 1, logs.Len())
		})
	}
}

func TestMiddleware_RecoversPanics(t *testing.T) {
	h, logs := newHandler(false)
	rec := httptest.NewRecorder()

	h.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", decodeBody(t, rec).Type)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, pkgerrors.Wrap(nil, "load"))

	wrapped := pkgerrors.Wrap(pkgerrors.NewNotFoundError("sitemap 4"), "failed to load sitemap")
	assert.True(t, pkgerrors.IsNotFound(wrapped))
	assert.Equal(t, "failed to load sitemap: sitemap 4 not found", pkgerrors.GetAppError(wrapped).Message)

	plain := pkgerrors.Wrap(errors.New("eof"), "failed to load sitemap")
	assert.True(t, pkgerrors.IsType(plain, pkgerrors.ErrorTypeInternal))
	assert.EqualError(t, errors.Unwrap(plain), "eof")
}
