package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ExportMetrics tracks artifact builds per format.
type ExportMetrics struct {
	exportsTotal   *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	artifactSize   *prometheus.HistogramVec
}

// NewExportMetrics creates and registers export metrics.
func NewExportMetrics(registry *prometheus.Registry) (*ExportMetrics, error) {
	m := &ExportMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register export metrics: %w", err)
	}
	return m, nil
}

func (m *ExportMetrics) initMetrics() {
	m.exportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "exports_total",
		Help:      "Total number of export builds",
	}, []string{"format", "status"}) // status: success, partial, error

	m.exportDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "export_duration_seconds",
		Help:      "Time taken to build an export artifact",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	}, []string{"format"})

	m.artifactSize = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "export_artifact_size_bytes",
		Help:      "Size of built export artifacts",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1KB, BucketFactor4, BucketCount10),
	}, []string{"format"})
}

// RecordExport implements export.Recorder.
func (m *ExportMetrics) RecordExport(format, status string, seconds float64, sizeBytes int) {
	m.exportsTotal.WithLabelValues(format, status).Inc()
	m.exportDuration.WithLabelValues(format).Observe(seconds)
	if status != StatusError {
		m.artifactSize.WithLabelValues(format).Observe(float64(sizeBytes))
	}
}

// Describe implements the prometheus.Collector interface.
func (m *ExportMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.exportsTotal.Describe(ch)
	m.exportDuration.Describe(ch)
	m.artifactSize.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ExportMetrics) Collect(ch chan<- prometheus.Metric) {
	m.exportsTotal.Collect(ch)
	m.exportDuration.Collect(ch)
	m.artifactSize.Collect(ch)
}
