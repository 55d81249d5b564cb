package app

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/export"
	"github.com/tphakala/treesurvey/internal/survey"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := conf.Defaults()
	settings.Main.DataDir = t.TempDir()
	settings.Datastore.SQLite.Path = "survey.db"
	settings.Metrics.Enabled = false
	return settings
}

func tinyJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func TestOpenLoadsStoredEntries(t *testing.T) {
	settings := testSettings(t)

	first, err := Open(t.Context(), settings, &buildinfo.Context{}, Options{})
	require.NoError(t, err)
	_, err = first.Processor.Capture(t.Context(), survey.Form{Species: "Jati"}, nil, tinyJPEG(t))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(t.Context(), settings, &buildinfo.Context{}, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	assert.Equal(t, 1, second.Processor.Collection().Len())
	assert.Equal(t, 1, second.Analytics.Summary().Total)
	assert.Nil(t, second.Metrics)
	assert.FileExists(t, filepath.Join(settings.Main.DataDir, "survey.db"))
}

func TestOpenWithMetricsRecordsCaptures(t *testing.T) {
	settings := testSettings(t)

	a, err := Open(t.Context(), settings, nil, Options{Metrics: true, Upload: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NotNil(t, a.Metrics)

	_, err = a.Processor.Capture(t.Context(), survey.Form{Species: "Jati"}, nil, tinyJPEG(t))
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(a.Metrics.Registry(), "treesurvey_entries_captured_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExportManagerPublishesLocally(t *testing.T) {
	settings := testSettings(t)
	settings.Publish.Local.Enabled = true
	settings.Publish.Local.Path = "published"

	a, err := Open(t.Context(), settings, nil, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, err = a.Processor.Capture(t.Context(), survey.Form{Species: "Jati"}, nil, tinyJPEG(t))
	require.NoError(t, err)

	manager, err := a.ExportManager(t.Context(), ExportOptions{Publish: true, Notify: true})
	require.NoError(t, err)

	job, err := manager.Run(t.Context(), []export.Format{export.FormatCSV}, export.RunOptions{Publish: true, Notify: true})
	require.NoError(t, err)
	require.NoError(t, job.PublishErr)

	files, err := os.ReadDir(filepath.Join(settings.Main.DataDir, "published"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, job.Artifacts[0].FileName, files[0].Name())
}
