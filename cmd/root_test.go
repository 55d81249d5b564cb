package cmd

import (
	"bytes"
	"encoding/json"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/exif"
	"github.com/tphakala/treesurvey/internal/logger"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	settings := conf.Defaults()
	settings.Main.DataDir = t.TempDir()
	settings.Logging.FileOutput = &logger.FileOutput{Enabled: false}
	settings.Logging.ModuleOutputs = map[string]logger.ModuleOutput{}
	t.Cleanup(func() { _ = logger.Global().Close() })
	return settings
}

func writePhoto(t *testing.T, dir string, data []byte) string {
	t.Helper()
	if data == nil {
		var buf bytes.Buffer
		require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
		data = buf.Bytes()
	}
	path := filepath.Join(dir, "tree.jpg")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func execute(t *testing.T, settings *conf.Settings, args ...string) (string, error) {
	t.Helper()
	root := RootCommand(settings, &buildinfo.Context{Version: "test"})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestCaptureListAnalyticsExportReset(t *testing.T) {
	settings := testSettings(t)
	photo := writePhoto(t, t.TempDir(), nil)

	out, err := execute(t, settings, "capture", photo,
		"--species", "jati", "--height", "120", "--health", "merana",
		"--lat=-6.2", "--lon=106.8", "--accuracy", "4", "--no-upload")
	require.NoError(t, err)
	assert.Contains(t, out, "Captured ")
	assert.Contains(t, out, "Merana")
	assert.Contains(t, out, "Metadata: embedded")
	assert.Contains(t, out, "Coordinates: -6.2,106.8")
	assert.Contains(t, out, "Collection size: 1")

	out, err = execute(t, settings, "entries", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "jati")
	assert.Contains(t, out, "120 cm")
	assert.Contains(t, out, "Page 1 of 1 (1 entries)")

	out, err = execute(t, settings, "analytics", "--json")
	require.NoError(t, err)
	var summary struct {
		Total   int `json:"total"`
		WithGPS int `json:"with_gps"`
		Species []struct {
			Species string `json:"species"`
			Count   int    `json:"count"`
		} `json:"species"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.WithGPS)
	require.Len(t, summary.Species, 1)
	assert.Equal(t, "Jati", summary.Species[0].Species)

	out, err = execute(t, settings, "analytics")
	require.NoError(t, err)
	assert.Contains(t, out, "Area (ha)")
	assert.Contains(t, out, "N/A")

	outDir := t.TempDir()
	out, err = execute(t, settings, "export", "-f", "csv", "-f", "kmz", "-f", "csv", "--out", outDir)
	require.NoError(t, err)
	csvFiles, err := filepath.Glob(filepath.Join(outDir, "survey_*.csv"))
	require.NoError(t, err)
	assert.Len(t, csvFiles, 1)
	kmzFiles, err := filepath.Glob(filepath.Join(outDir, "survey_*.kmz"))
	require.NoError(t, err)
	assert.Len(t, kmzFiles, 1)
	assert.Contains(t, out, "Wrote ")

	_, err = execute(t, settings, "entries", "reset")
	require.Error(t, err)

	out, err = execute(t, settings, "entries", "reset", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 entries.")

	out, err = execute(t, settings, "entries", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries recorded.")
}

func TestExportEmptyCollectionWritesDefaultDir(t *testing.T) {
	settings := testSettings(t)

	_, err := execute(t, settings, "export", "--format", "csv")
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(settings.Main.DataDir, "exports", "survey_*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestCommandValidation(t *testing.T) {
	settings := testSettings(t)
	photo := writePhoto(t, t.TempDir(), nil)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown health", []string{"capture", photo, "--species", "Jati", "--health", "sick"}},
		{"non-numeric height", []string{"capture", photo, "--height", "tall"}},
		{"non-numeric year", []string{"capture", photo, "--year", "2024a"}},
		{"lat without lon", []string{"capture", photo, "--species", "Jati", "--lat", "1"}},
		{"lon without lat", []string{"capture", photo, "--lon", "1"}},
		{"latitude out of range", []string{"capture", photo, "--species", "Jati", "--lat", "91", "--lon", "0"}},
		{"missing photo", []string{"capture", filepath.Join(t.TempDir(), "none.jpg"), "--species", "Jati"}},
		{"unknown format", []string{"export", "--format", "pdf"}},
		{"inspect without args", []string{"inspect"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, settings, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCaptureAcceptsInputAsEntered(t *testing.T) {
	settings := testSettings(t)
	photo := writePhoto(t, t.TempDir(), nil)

	out, err := execute(t, settings, "capture", photo, "--height=-5", "--year", "1850", "--no-upload")
	require.NoError(t, err)
	assert.Contains(t, out, "-5 cm")
	assert.Contains(t, out, "("+settings.Survey.Species[0]+",")
	assert.Contains(t, out, "Collection size: 1")
}

func TestInspect(t *testing.T) {
	settings := testSettings(t)

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	embedded, result := exif.Embed(buf.Bytes(), exif.Metadata{
		HeightCm:   85,
		Species:    "Mahoni",
		Health:     "Sehat",
		Supervisor: "Budi",
		CapturedAt: time.Date(2024, 3, 1, 10, 15, 0, 0, time.Local),
	})
	require.True(t, result.OK())
	photo := writePhoto(t, t.TempDir(), embedded)

	out, err := execute(t, settings, "inspect", photo)
	require.NoError(t, err)
	assert.Contains(t, out, "Mahoni")
	assert.Contains(t, out, "85 cm")
	assert.Contains(t, out, "Budi")
	assert.Contains(t, out, "2024-03-01 10:15:00")
	assert.Contains(t, out, "N/A")

	notJPEG := writePhoto(t, t.TempDir(), []byte("plain text"))
	_, err = execute(t, settings, "inspect", notJPEG)
	assert.Error(t, err)
}
