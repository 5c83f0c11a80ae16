package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RecordsAndExposes(t *testing.T) {
	m := NewManager()

	m.ObserveAPIRequest("guild", 200, 150*time.Millisecond)
	m.ObserveAPIRequest("guild", 429, 10*time.Millisecond)
	m.IncAPIRetry("guild")
	m.ObserveReconcile("Aequitas", "ok", 10, 2, 1, 3*time.Second)
	m.IncRollover()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.apiRequests.WithLabelValues("guild", "429")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reconcileMembers.WithLabelValues("Aequitas", "created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollovers))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "superlatives_game_api_requests_total")
	assert.Contains(t, rec.Body.String(), "superlatives_period_rollovers_total 1")
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.ObserveAPIRequest("player", 500, time.Second)
		m.IncSnapshot("primary")
		m.ObserveHTTP("/health", "GET", 200, time.Millisecond)
	})
}
