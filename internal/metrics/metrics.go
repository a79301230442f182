// Package metrics exposes Prometheus instrumentation for the feed and the
// controllers. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	FeedRequests        *prometheus.CounterVec
	FeedRequestDuration *prometheus.HistogramVec

	CacheLookups         *prometheus.CounterVec
	DashboardTransitions *prometheus.CounterVec
	DetailLoads          *prometheus.CounterVec
	StreamClients        prometheus.Gauge
}

// New registers all collectors on a fresh registry under namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "crypto_dash"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FeedRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "requests_total",
			Help:      "Feed requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		FeedRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "request_duration_seconds",
			Help:      "Feed request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Listing cache lookups on mount by result (hit, miss)",
		}, []string{"result"}),
		DashboardTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "transitions_total",
			Help:      "Dashboard state transitions by target state",
		}, []string{"state"}),
		DetailLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detail",
			Name:      "loads_total",
			Help:      "Detail loads by outcome (ready, failed, superseded)",
		}, []string{"outcome"}),
		StreamClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected dashboard stream clients",
		}),
	}
}

func (m *Metrics) ObserveFeedRequest(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FeedRequests.WithLabelValues(endpoint, outcome).Inc()
	m.FeedRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) DashboardTransition(state string) {
	if m == nil {
		return
	}
	m.DashboardTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) DetailLoad(outcome string) {
	if m == nil {
		return
	}
	m.DetailLoads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StreamClientDelta(delta float64) {
	if m == nil {
		return
	}
	m.StreamClients.Add(delta)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
