package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFeedRequest("listing", "ok", time.Second)
	m.CacheLookup(true)
	m.DashboardTransition("ready")
	m.DetailLoad("superseded")
	m.StreamClientDelta(1)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rr.Code)
}

func TestCounters(t *testing.T) {
	m := New("")
	m.ObserveFeedRequest("listing", "ok", 120*time.Millisecond)
	m.ObserveFeedRequest("listing", "timeout", 10*time.Second)
	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedRequests.WithLabelValues("listing", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New("dash_test")
	m.DashboardTransition("ready")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)

	body, _ := io.ReadAll(rr.Body)
	assert.Contains(t, string(body), `dash_test_dashboard_transitions_total{state="ready"} 1`)
}
