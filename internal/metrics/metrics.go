// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kodeverk"

// Save outcomes.
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultInvalid  = "invalid"
	ResultError    = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// requestDuration measures HTTP handling time.
	// Labels: method, route, status
	requestDuration *prometheus.HistogramVec

	// saves counts save attempts by document kind and outcome.
	// Labels: kind, result
	saves *prometheus.CounterVec

	// findings tracks the number of findings from the last consistency run.
	// Labels: check
	findings *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		saves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "saves_total",
			Help:      "Document save attempts by kind and result",
		}, []string{"kind", "result"}),
		findings: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "consistency",
			Name:      "findings",
			Help:      "Findings reported by the last consistency check",
		}, []string{"check"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one handled HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// IncSave counts a save attempt.
func (m *Metrics) IncSave(kind, result string) {
	if m == nil {
		return
	}
	m.saves.WithLabelValues(kind, result).Inc()
}

// SetFindings records the size of one consistency finding set.
func (m *Metrics) SetFindings(check string, n int) {
	if m == nil {
		return
	}
	m.findings.WithLabelValues(check).Set(float64(n))
}
