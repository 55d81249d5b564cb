package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics counts captured entries and embedding outcomes.
type CaptureMetrics struct {
	entriesTotal   *prometheus.CounterVec
	embeddingTotal *prometheus.CounterVec
	photoSize      prometheus.Histogram
	collectionSize prometheus.Gauge
	embedDuration  prometheus.Histogram
}

// NewCaptureMetrics creates and registers capture metrics.
func NewCaptureMetrics(registry *prometheus.Registry) (*CaptureMetrics, error) {
	m := &CaptureMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register capture metrics: %w", err)
	}
	return m, nil
}

func (m *CaptureMetrics) initMetrics() {
	m.entriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "entries_captured_total",
		Help:      "Total number of captured survey entries",
	}, []string{"health", "gps"})

	m.embeddingTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "metadata_embedding_total",
		Help:      "Metadata embedding attempts by outcome",
	}, []string{"status"})

	m.photoSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "photo_size_bytes",
		Help:      "Size of captured photos after embedding",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount10),
	})

	m.collectionSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "collection_entries",
		Help:      "Number of entries currently held in the collection",
	})

	m.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "metadata_embedding_duration_seconds",
		Help:      "Time taken to create an entry including metadata embedding",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	})
}

// RecordCapture records one created entry.
func (m *CaptureMetrics) RecordCapture(health string, hasGPS bool, embedStatus string, photoBytes int, seconds float64) {
	gps := "no"
	if hasGPS {
		gps = "yes"
	}
	m.entriesTotal.WithLabelValues(health, gps).Inc()
	m.embeddingTotal.WithLabelValues(embedStatus).Inc()
	m.photoSize.Observe(float64(photoBytes))
	m.embedDuration.Observe(seconds)
}

// SetCollectionSize updates the collection gauge.
func (m *CaptureMetrics) SetCollectionSize(n int) {
	m.collectionSize.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.entriesTotal.Describe(ch)
	m.embeddingTotal.Describe(ch)
	m.photoSize.Describe(ch)
	m.collectionSize.Describe(ch)
	m.embedDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	m.entriesTotal.Collect(ch)
	m.embeddingTotal.Collect(ch)
	m.photoSize.Collect(ch)
	m.collectionSize.Collect(ch)
	m.embedDuration.Collect(ch)
}
