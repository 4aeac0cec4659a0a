package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.Connections.Inc()
	m.Relayed.WithLabelValues("courseMoved").Add(2)
	m.AuthFailures.WithLabelValues("ws", "no_credential").Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(m.Connections), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Relayed.WithLabelValues("courseMoved")), 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "relay_frames_relayed_total"))
	assert.True(t, strings.Contains(body, `reason="no_credential"`))
}

func TestNewIsIsolated(t *testing.T) {
	a, b := New(), New()
	a.Joins.Inc()
	assert.InDelta(t, 0, testutil.ToFloat64(b.Joins), 0)
}
