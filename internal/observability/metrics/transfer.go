package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TransferMetrics tracks data leaving the device: per-entry uploads and
// published export artifacts.
type TransferMetrics struct {
	uploadsTotal    *prometheus.CounterVec
	uploadDuration  *prometheus.HistogramVec
	uploadBytes     *prometheus.CounterVec
	publishesTotal  *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	publishBytes    *prometheus.CounterVec
}

// NewTransferMetrics creates and registers upload and publish metrics.
func NewTransferMetrics(registry *prometheus.Registry) (*TransferMetrics, error) {
	m := &TransferMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register transfer metrics: %w", err)
	}
	return m, nil
}

func (m *TransferMetrics) initMetrics() {
	m.uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "uploads_total",
		Help:      "Entry uploads by channel and outcome",
	}, []string{"channel", "status"}) // channel: http, mqtt

	m.uploadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "upload_duration_seconds",
		Help:      "Time taken to upload one entry",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	}, []string{"channel"})

	m.uploadBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upload_bytes_total",
		Help:      "Payload bytes successfully uploaded",
	}, []string{"channel"})

	m.publishesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "publishes_total",
		Help:      "Artifact publishes by target and outcome",
	}, []string{"target", "status"}) // target: local, ftp, sftp, gdrive

	m.publishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "publish_duration_seconds",
		Help:      "Time taken to store one artifact on a target",
		Buckets:   prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
	}, []string{"target"})

	m.publishBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "publish_bytes_total",
		Help:      "Artifact bytes successfully published",
	}, []string{"target"})
}

// RecordUpload implements upload.Recorder.
func (m *TransferMetrics) RecordUpload(channel, status string, seconds float64, sizeBytes int) {
	m.uploadsTotal.WithLabelValues(channel, status).Inc()
	m.uploadDuration.WithLabelValues(channel).Observe(seconds)
	if status == StatusSuccess {
		m.uploadBytes.WithLabelValues(channel).Add(float64(sizeBytes))
	}
}

// RecordPublish implements publish.Recorder.
func (m *TransferMetrics) RecordPublish(target, status string, seconds float64, sizeBytes int) {
	m.publishesTotal.WithLabelValues(target, status).Inc()
	m.publishDuration.WithLabelValues(target).Observe(seconds)
	if status == StatusSuccess {
		m.publishBytes.WithLabelValues(target).Add(float64(sizeBytes))
	}
}

// Describe implements the prometheus.Collector interface.
func (m *TransferMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.uploadsTotal.Describe(ch)
	m.uploadDuration.Describe(ch)
	m.uploadBytes.Describe(ch)
	m.publishesTotal.Describe(ch)
	m.publishDuration.Describe(ch)
	m.publishBytes.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *TransferMetrics) Collect(ch chan<- prometheus.Metric) {
	m.uploadsTotal.Collect(ch)
	m.uploadDuration.Collect(ch)
	m.uploadBytes.Collect(ch)
	m.publishesTotal.Collect(ch)
	m.publishDuration.Collect(ch)
	m.publishBytes.Collect(ch)
}
