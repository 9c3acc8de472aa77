// Package metrics exposes Prometheus collectors for the inventory service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry     *prometheus.Registry
	itemEvents   *prometheus.CounterVec
	importRows   *prometheus.CounterVec
	importRuns   prometheus.Counter
	httpRequests *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		itemEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "popis",
			Name:      "item_events_total",
			Help:      "Item mutations by action.",
		}, []string{"action"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "popis",
			Name:      "import_rows_total",
			Help:      "Imported rows by outcome.",
		}, []string{"result"}),
		importRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "popis",
			Name:      "import_runs_total",
			Help:      "Bulk import runs.",
		}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "popis",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.itemEvents,
		m.importRows,
		m.importRuns,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ItemEvent counts n item mutations of the given action.
func (m *Metrics) ItemEvent(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.itemEvents.WithLabelValues(action).Add(float64(n))
}

// ImportRun counts one import run and its row outcomes.
func (m *Metrics) ImportRun(succeeded, failed int) {
	if m == nil {
		return
	}
	m.importRuns.Inc()
	m.importRows.WithLabelValues("success").Add(float64(succeeded))
	m.importRows.WithLabelValues("error").Add(float64(failed))
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
