package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewCaptureMetrics(reg)
	require.NoError(t, err)

	m.RecordCapture("Sehat", true, StatusSuccess, 2048, 0.01)
	m.RecordCapture("Sehat", true, StatusSuccess, 4096, 0.02)
	m.RecordCapture("Merana", false, StatusError, 1024, 0.01)
	m.SetCollectionSize(3)

	assert.InDelta(t, 2, testutil.ToFloat64(m.entriesTotal.WithLabelValues("Sehat", "yes")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.entriesTotal.WithLabelValues("Merana", "no")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.embeddingTotal.WithLabelValues(StatusError)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.collectionSize), 0)

	_, err = NewCaptureMetrics(reg)
	assert.Error(t, err, "second registration must fail")
}

func TestExportMetricsSkipsSizeOnError(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewExportMetrics(reg)
	require.NoError(t, err)

	m.RecordExport("csv", StatusSuccess, 0.1, 512)
	m.RecordExport("zip", StatusError, 0.1, 0)

	assert.Equal(t, 2, testutil.CollectAndCount(m.exportsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.artifactSize))
}

func TestMQTTMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewMQTTMetrics(reg)
	require.NoError(t, err)

	m.UpdateConnectionStatus(true)
	m.IncrementMessagesDelivered()
	m.IncrementMessagesDelivered()
	m.IncrementErrors()
	m.ObserveMessageSize(300)
	m.ObservePublishLatency(0.004)

	assert.InDelta(t, 1, testutil.ToFloat64(m.ConnectionStatus), 0)
	assert.Positive(t, testutil.ToFloat64(m.LastConnectTime))
	assert.InDelta(t, 2, testutil.ToFloat64(m.MessagesDelivered), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)

	m.UpdateConnectionStatus(false)
	assert.InDelta(t, 0, testutil.ToFloat64(m.ConnectionStatus), 0)
}

func TestTransferMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewTransferMetrics(reg)
	require.NoError(t, err)

	m.RecordUpload("http", StatusSuccess, 0.2, 700)
	m.RecordUpload("http", StatusError, 0.2, 700)
	m.RecordPublish("sftp", StatusSuccess, 1.5, 4096)

	assert.InDelta(t, 700, testutil.ToFloat64(m.uploadBytes.WithLabelValues("http")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.uploadsTotal.WithLabelValues("http", StatusError)), 0)
	assert.InDelta(t, 4096, testutil.ToFloat64(m.publishBytes.WithLabelValues("sftp")), 0)
}

func TestHTTPMetricsHistogram(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	m.RecordHTTPRequest("GET", "/api/v1/entries", 200, 0.05, 1200)
	m.RecordHTTPRequest("GET", "/api/v1/entries", 200, 0.07, 800)

	assert.InDelta(t, 2, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/api/v1/entries", "200")), 0)

	families, err := reg.Gather()
	require.NoError(t, err)

	var duration *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == Namespace+"_http_request_duration_seconds" {
			duration = f
		}
	}
	require.NotNil(t, duration)
	require.Len(t, duration.GetMetric(), 1)
	assert.Equal(t, uint64(2), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNotificationAndDatastoreMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	n, err := NewNotificationMetrics(reg)
	require.NoError(t, err)
	d, err := NewDatastoreMetrics(reg)
	require.NoError(t, err)

	n.RecordNotification(StatusSuccess)
	d.RecordDBOperation("save", StatusSuccess, 0.003)
	d.RecordDBOperation("save", StatusError, 0.003)

	assert.InDelta(t, 1, testutil.ToFloat64(n.sentTotal.WithLabelValues(StatusSuccess)), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(d.dbOperationsTotal))
}
