// Package metrics exposes Prometheus collectors for the intake pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	submissions        *prometheus.CounterVec
	extractions        *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	findings           *prometheus.CounterVec
	commitRows         *prometheus.CounterVec
	deadLetters        prometheus.Counter
	dlqDepth           prometheus.Gauge
	failureRate        prometheus.Gauge
	gatherer           prometheus.Gatherer
}

// New registers the collectors with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "submissions_created_total",
			Help:      "Submissions created, by document kind.",
		}, []string{"kind"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "extractions_total",
			Help:      "Extraction attempts, by document kind and outcome.",
		}, []string{"kind", "outcome"}),
		extractionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "intake",
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of extraction attempts.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"kind"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "findings_total",
			Help:      "Validation findings attached to drafts, by code.",
		}, []string{"kind", "code"}),
		commitRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "commit_rows_total",
			Help:      "Canonical rows written on confirm, by outcome.",
		}, []string{"kind", "outcome"}),
		deadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "intake",
			Name:      "dead_letters_total",
			Help:      "Extraction tasks parked because they could not be dispatched.",
		}),
		dlqDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intake",
			Name:      "dlq_depth",
			Help:      "Dead-lettered extraction tasks at the last health check.",
		}),
		failureRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "intake",
			Name:      "extraction_failure_ratio",
			Help:      "Failed over finished extractions in the health check lookback window.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(m.submissions, m.extractions, m.extractionDuration, m.findings, m.commitRows, m.deadLetters,
		m.dlqDepth, m.failureRate,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// SubmissionCreated counts an upload.
func (m *Metrics) SubmissionCreated(kind string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
}

// Extraction records one extraction attempt.
func (m *Metrics) Extraction(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(kind, outcome).Inc()
	m.extractionDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Finding counts a finding code.
func (m *Metrics) Finding(kind, code string) {
	if m == nil {
		return
	}
	m.findings.WithLabelValues(kind, code).Inc()
}

// CommitRows adds n rows with the given outcome.
func (m *Metrics) CommitRows(kind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.commitRows.WithLabelValues(kind, outcome).Add(float64(n))
}

// DeadLetter counts a parked task.
func (m *Metrics) DeadLetter() {
	if m == nil {
		return
	}
	m.deadLetters.Inc()
}

// Health sets the gauges refreshed by the alert checker.
func (m *Metrics) Health(failureRatio float64, dlqDepth int) {
	if m == nil {
		return
	}
	m.failureRate.Set(failureRatio)
	m.dlqDepth.Set(float64(dlqDepth))
}
