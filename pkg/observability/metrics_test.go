package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_IndependentRegistries(t *testing.T) {
	a := NewCollector("sitemap")
	b := NewCollector("sitemap")

	a.ObserveSave("success", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SaveAttempts.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(a.NodesPersisted))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.NodesPersisted))
}

func TestCollector_ObserveStore(t *testing.T) {
	c := NewCollector("sitemap")

	c.ObserveStore("update_position", "memory", nil, time.Millisecond)
	c.ObserveStore("update_position", "memory", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("update_position", "memory", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperations.WithLabelValues("update_position", "memory", "error")))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("sitemap")
	c.ObserveLayout("load", 12)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sitemap_layout_runs_total{trigger="load"} 1`)
}
