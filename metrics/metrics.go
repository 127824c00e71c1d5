// Package metrics exposes Prometheus instrumentation for extraction
// runs. Each Metrics value owns its registry, so the HTTP handler serves
// exactly these series and tests never fight over global registration.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/semharvest/harvest"
)

// Metrics holds the extraction counters and timings.
type Metrics struct {
	registry *prometheus.Registry

	documents *prometheus.CounterVec
	tokens    prometheus.Counter
	issues    *prometheus.CounterVec
	duration  prometheus.Histogram
}

// New creates a Metrics with a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		documents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semharvest",
			Name:      "documents_total",
			Help:      "Documents processed, by outcome.",
		}, []string{"status"}),
		tokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "semharvest",
			Name:      "tokens_total",
			Help:      "Canonical tokens processed across all documents.",
		}),
		issues: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semharvest",
			Name:      "collector_issues_total",
			Help:      "Non-fatal collector failures, by collector and kind.",
		}, []string{"collector", "kind"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "semharvest",
			Name:      "dispatch_duration_seconds",
			Help:      "Wall time of the collector dispatch pass.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves this Metrics' registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one extraction outcome. Safe on nil.
func (m *Metrics) Observe(res *harvest.Result, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.documents.WithLabelValues("error").Inc()
		return
	}

	m.documents.WithLabelValues("ok").Inc()
	m.tokens.Add(float64(res.Report.TokenCount))
	m.duration.Observe(float64(res.Report.DurationMs) / 1000)
	for _, issue := range res.Report.Issues {
		m.issues.WithLabelValues(issue.Collector, string(issue.Kind)).Inc()
	}
}
