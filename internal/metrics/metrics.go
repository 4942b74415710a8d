// Package metrics holds the Prometheus instruments of the service.
//
// All recording methods are safe on a nil *Metrics so components can be
// constructed without instrumentation in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "confidant"

// Result labels.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultRejected = "rejected"
	ResultEmpty    = "empty"
	ResultCached   = "cached"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	MemorySaves       *prometheus.CounterVec
	MemoryRetrievals  *prometheus.CounterVec
	MemoryClears      *prometheus.CounterVec
	EmbeddingRequests *prometheus.CounterVec
	Replies           *prometheus.CounterVec
	PackedChars       prometheus.Histogram
	PackedItems       prometheus.Histogram
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		MemorySaves: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "memory_saves_total",
			Help:      "Turn writes by role and result.",
		}, []string{"role", "result"}),
		MemoryRetrievals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "memory_retrievals_total",
			Help:      "Memory reads by kind (relevant, recent, recent_user) and result.",
		}, []string{"kind", "result"}),
		MemoryClears: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "memory_clears_total",
			Help:      "Memory resets by result.",
		}, []string{"result"}),
		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding gateway calls by result.",
		}, []string{"result"}),
		Replies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "replies_total",
			Help:      "Bot replies by kind.",
		}, []string{"kind"}),
		PackedChars: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "packed_history_chars",
			Help:      "Characters of history packed into a relevant-history result.",
			Buckets:   []float64{0, 250, 500, 1000, 2000, 3000, 4000, 8000},
		}),
		PackedItems: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "packed_history_items",
			Help:      "Messages in a relevant-history result.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SaveObserved(role, result string) {
	if m == nil {
		return
	}
	m.MemorySaves.WithLabelValues(role, result).Inc()
}

func (m *Metrics) RetrievalObserved(kind, result string) {
	if m == nil {
		return
	}
	m.MemoryRetrievals.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ClearObserved(result string) {
	if m == nil {
		return
	}
	m.MemoryClears.WithLabelValues(result).Inc()
}

func (m *Metrics) EmbeddingObserved(result string) {
	if m == nil {
		return
	}
	m.EmbeddingRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) ReplyObserved(kind string) {
	if m == nil {
		return
	}
	m.Replies.WithLabelValues(kind).Inc()
}

// PackObserved records the size of a packed history.
func (m *Metrics) PackObserved(items, chars int) {
	if m == nil {
		return
	}
	m.PackedItems.Observe(float64(items))
	m.PackedChars.Observe(float64(chars))
}
