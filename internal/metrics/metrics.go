// Package metrics defines the Prometheus collectors of the analyzer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/naf-analyzer/internal/model"
)

const namespace = "naf"

// Metrics holds the analyzer's collectors.
type Metrics struct {
	Classifications  *prometheus.CounterVec   // by source and label
	RecordFailures   prometheus.Counter       // records that could not be classified
	Confidence       prometheus.Histogram     // decision confidence
	BatchDuration    prometheus.Histogram     // wall time of ClassifyBatch
	GeocodeLookups   *prometheus.CounterVec   // by cache outcome
	GeocodeLatency   *prometheus.HistogramVec // by provider
	ReferenceEntries *prometheus.GaugeVec     // loaded reference list sizes

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry served by Handler.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on registry.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classified records by decision source and label.",
		}, []string{"source", "label"}),
		RecordFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_failures_total",
			Help:      "Records that could not be classified.",
		}),
		Confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_confidence",
			Help:      "Confidence of classification decisions.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a classification batch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		GeocodeLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      "Coordinate cache lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_provider_latency_seconds",
			Help:      "Latency of geocoding provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		ReferenceEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reference_entries",
			Help:      "Entries in each loaded reference list.",
		}, []string{"list"}),
		gatherer: registry,
	}
}

// ObserveDecision records one classification outcome.
func (m *Metrics) ObserveDecision(c model.Classification) {
	if m == nil {
		return
	}
	if c.Failed() {
		m.RecordFailures.Inc()
		return
	}
	label := "0"
	if c.Label == 1 {
		label = "1"
	}
	m.Classifications.WithLabelValues(string(c.Source), label).Inc()
	m.Confidence.Observe(c.Confidence)
}

// ObserveBatch records the duration of a batch.
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// SetReferenceSize records the size of a reference list.
func (m *Metrics) SetReferenceSize(list string, n int) {
	if m == nil {
		return
	}
	m.ReferenceEntries.WithLabelValues(list).Set(float64(n))
}

// CacheLookup implements geocode.Observer.
func (m *Metrics) CacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.GeocodeLookups.WithLabelValues(outcome).Inc()
}

// ProviderLatency implements geocode.Observer.
func (m *Metrics) ProviderLatency(provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.GeocodeLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
