package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the DOL
// inference engine.
type Metrics struct {
	InferenceRequests *prometheus.CounterVec // labels: outcome={ok,no_signal,invalid_location,cancelled}
	InferenceDuration prometheus.Histogram
	Confidence        prometheus.Histogram

	// Collector metrics.
	CollectorRequests *prometheus.CounterVec   // labels: source, outcome={success,soft_fail}
	CollectorDuration *prometheus.HistogramVec // labels: source
	EventsCollected   *prometheus.CounterVec   // labels: source
	EventsRejected    *prometheus.CounterVec   // labels: source (empty geometry at ingestion)

	// Pipeline metrics.
	EventsMerged prometheus.Counter     // events collapsed away by dedup
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,error}
	AuditRecords *prometheus.CounterVec // labels: outcome={published,error}
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.InferenceRequests,
		m.InferenceDuration,
		m.Confidence,
		m.CollectorRequests,
		m.CollectorDuration,
		m.EventsCollected,
		m.EventsRejected,
		m.EventsMerged,
		m.CacheLookups,
		m.AuditRecords,
	)
	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		InferenceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dol",
			Name:      "inference_requests_total",
			Help:      "Date-of-loss inference requests by outcome.",
		}, []string{"outcome"}),
		InferenceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_dol",
			Name:      "inference_duration_seconds",
			Help:      "End-to-end duration of one inference request.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		Confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storm_dol",
			Name:      "inference_confidence",
			Help:      "Distribution of confidence values on returned results.",
			Buckets:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		}),
		CollectorRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dol",
			Name:      "collector_requests_total",
			Help:      "Collector fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		CollectorDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storm_dol",
			Name:      "collector_duration_seconds",
			Help:      "Upstream fetch duration by source.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"source"}),
		EventsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dol",
			Name:      "events_collected_total",
			Help:      "Normalized events returned by each source.",
		}, []string{"source"}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dol",
			Name:      "events_rejected_total",
			Help:      "Events rejected at ingestion (empty geometry).",
		}, []string{"source"}),
		EventsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storm_dol",
			Name:      "events_merged_total",
			Help:      "Events collapsed into cluster representatives by dedup.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dol",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by result.",
		}, []string{"result"}),
		AuditRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storm_dol",
			Name:      "audit_records_total",
			Help:      "Audit records published to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}
