package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Handler() http.Handler {
	h := promhttp.Handler()
	return h
}

// Indexer holds the processing collectors. A nil *Indexer records nothing
type Indexer struct {
	Events         *prometheus.CounterVec
	FlushedRecords *prometheus.CounterVec
	FlushErrors    prometheus.Counter
	FlushDuration  prometheus.Histogram
	LastHeight     prometheus.Gauge
	Ingested       *prometheus.CounterVec
}

func NewIndexer(reg prometheus.Registerer) *Indexer {
	m := &Indexer{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Name:      "events_total",
			Help:      "Raw events by name and outcome (processed, skipped, failed).",
		}, []string{"event", "outcome"}),
		FlushedRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Name:      "flushed_records_total",
			Help:      "Records persisted per kind.",
		}, []string{"kind"}),
		FlushErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "indexer",
			Name:      "flush_errors_total",
			Help:      "Failed batch flushes.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "indexer",
			Name:      "flush_duration_seconds",
			Help:      "Batch flush latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		LastHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "indexer",
			Name:      "last_block_height",
			Help:      "Height of the last processed event.",
		}),
		Ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "indexer",
			Name:      "ingested_messages_total",
			Help:      "Transport messages by outcome (accepted, duplicate, malformed).",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(m.Events, m.FlushedRecords, m.FlushErrors, m.FlushDuration, m.LastHeight, m.Ingested)
	}
	return m
}

func (m *Indexer) ObserveEvent(name, outcome string, height uint64) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(name, outcome).Inc()
	m.LastHeight.Set(float64(height))
}

func (m *Indexer) ObserveFlush(perKind map[string]int, seconds float64, err error) {
	if m == nil {
		return
	}
	m.FlushDuration.Observe(seconds)
	if err != nil {
		m.FlushErrors.Inc()
		return
	}
	for kind, n := range perKind {
		m.FlushedRecords.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Indexer) ObserveIngest(outcome string) {
	if m == nil {
		return
	}
	m.Ingested.WithLabelValues(outcome).Inc()
}
