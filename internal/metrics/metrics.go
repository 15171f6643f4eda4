// Package metrics exposes Prometheus collectors for ingestion, embedding and
// search. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finrag"

type Metrics struct {
	registry *prometheus.Registry

	documentsIngested *prometheus.CounterVec
	chunksWritten     prometheus.Counter
	backendFailures   *prometheus.CounterVec
	fallbackVectors   prometheus.Counter
	searches          *prometheus.CounterVec
	searchLatency     *prometheus.HistogramVec
	answers           *prometheus.CounterVec
}

// New registers every collector on a private registry so tests can build
// as many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documentsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_ingested_total",
				Help:      "Documents processed by the ingestion pipeline",
			},
			[]string{"outcome"},
		),
		chunksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_written_total",
			Help:      "Chunks persisted by ingestion and reindexing",
		}),
		backendFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_backend_failures_total",
				Help:      "Failed embedding backend calls",
			},
			[]string{"model"},
		),
		fallbackVectors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_fallbacks_total",
			Help:      "Texts that received a fallback vector",
		}),
		searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Search requests by requested mode, executed mode and degradation",
			},
			[]string{"mode", "mode_used", "degraded"},
		),
		searchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "End to end search latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode_used"},
		),
		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "answers_total",
				Help:      "Synthesized answers by source",
			},
			[]string{"source"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.documentsIngested,
		m.chunksWritten,
		m.backendFailures,
		m.fallbackVectors,
		m.searches,
		m.searchLatency,
		m.answers,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// DocumentIngested counts a finished ingestion; outcome is complete,
// degraded or failed.
func (m *Metrics) DocumentIngested(outcome string) {
	if m == nil {
		return
	}
	m.documentsIngested.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ChunksWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksWritten.Add(float64(n))
}

// BackendFailed implements embedding.Observer.
func (m *Metrics) BackendFailed(model string) {
	if m == nil {
		return
	}
	m.backendFailures.WithLabelValues(model).Inc()
}

// FallbackUsed implements embedding.Observer.
func (m *Metrics) FallbackUsed(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.fallbackVectors.Add(float64(count))
}

func (m *Metrics) SearchServed(mode, modeUsed string, degraded bool, took time.Duration) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode, modeUsed, strconv.FormatBool(degraded)).Inc()
	m.searchLatency.WithLabelValues(modeUsed).Observe(took.Seconds())
}

// AnswerSynthesized counts answers; source is model, local or empty.
func (m *Metrics) AnswerSynthesized(source string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(source).Inc()
}
