// Package metrics exposes Prometheus instrumentation for the order
// registry and its HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles all collectors on a dedicated (non-global) registry
// so tests can construct as many instances as they need.
type Metrics struct {
	registry *prometheus.Registry

	OrdersAdded      *prometheus.CounterVec
	EventsDispatched *prometheus.CounterVec
	RiskRejections   prometheus.Counter
	CallbackFailures prometheus.Counter
	SinkFailures     prometheus.Counter
	SnapshotDuration prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		OrdersAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderledger_orders_added_total",
			Help: "Orders admitted to the registry, by admission status.",
		}, []string{"status"}),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderledger_events_dispatched_total",
			Help: "Order lifecycle events dispatched, by event type.",
		}, []string{"event"}),
		RiskRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderledger_risk_rejections_total",
			Help: "Orders rejected by the risk check pipeline.",
		}),
		CallbackFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderledger_callback_failures_total",
			Help: "Callback handlers that panicked during dispatch.",
		}),
		SinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderledger_sink_failures_total",
			Help: "Audit sink deliveries that failed or panicked.",
		}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderledger_snapshot_duration_seconds",
			Help:    "Wall time of registry snapshot saves.",
			Buckets: prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderledger_http_requests_total",
			Help: "HTTP requests served, by method and status code.",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		m.OrdersAdded,
		m.EventsDispatched,
		m.RiskRejections,
		m.CallbackFailures,
		m.SinkFailures,
		m.SnapshotDuration,
		m.HTTPRequests,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this instance's
// registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSnapshot records the duration of one snapshot save.
func (m *Metrics) ObserveSnapshot(start time.Time) {
	m.SnapshotDuration.Observe(time.Since(start).Seconds())
}

// CountRequest records one served HTTP request.
func (m *Metrics) CountRequest(method string, status int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
