package capture

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/datastore"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/exif"
	"github.com/tphakala/treesurvey/internal/survey"
)

func tinyJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))
	return buf.Bytes()
}

func openStore(t *testing.T) *datastore.SQLiteStore {
	t.Helper()
	settings := conf.Defaults()
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "survey.db")
	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type fakeUploader struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (u *fakeUploader) Dispatch(_ context.Context, entry *survey.Entry) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ids = append(u.ids, entry.ID)
	return u.err
}

type captureRecorder struct {
	captures []string
	size     int
}

func (r *captureRecorder) RecordCapture(health string, _ bool, embedStatus string, _ int, _ float64) {
	r.captures = append(r.captures, health+":"+embedStatus)
}

func (r *captureRecorder) SetCollectionSize(n int) { r.size = n }

func fixedClock(sec int) func() time.Time {
	return func() time.Time { return time.Date(2024, 3, 1, 10, 15, sec, 0, time.Local) }
}

func form() survey.Form {
	return survey.Form{HeightCm: 120, PlantingYear: 2024, Species: "Jati", Health: survey.Healthy, Team: "Tim 1"}
}

func TestCaptureStoresAppendsAndUploads(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	up := &fakeUploader{}
	rec := &captureRecorder{}
	p := NewProcessor(store, nil, WithUploader(up), WithRecorder(rec), WithClock(fixedClock(0)))

	gps := &survey.GeoFix{Latitude: -6.9, Longitude: 107.6, AccuracyMeters: 4}
	res, err := p.Capture(t.Context(), form(), gps, tinyJPEG(t))
	require.NoError(t, err)

	assert.Equal(t, "20240301-101500", res.Entry.ID)
	assert.True(t, res.Embedding.OK())
	assert.NoError(t, res.UploadErr)
	assert.Equal(t, 1, p.Collection().Len())
	assert.Equal(t, []string{"20240301-101500"}, up.ids)
	assert.Equal(t, []string{"healthy:embedded"}, rec.captures)
	assert.Equal(t, 1, rec.size)

	meta, err := exif.Read(res.Entry.Photo)
	require.NoError(t, err)
	assert.Equal(t, "Jati", meta.Species)

	stored, err := store.Get(t.Context(), res.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Entry.Photo, stored.Photo)
}

func TestCaptureUploadFailureKeepsEntry(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	up := &fakeUploader{err: assert.AnError}
	p := NewProcessor(store, nil, WithUploader(up), WithClock(fixedClock(1)))

	res, err := p.Capture(t.Context(), form(), nil, tinyJPEG(t))
	require.NoError(t, err)
	assert.ErrorIs(t, res.UploadErr, assert.AnError)
	assert.Equal(t, 1, p.Collection().Len())
}

func TestCaptureNonJPEGStillStored(t *testing.T) {
	t.Parallel()

	p := NewProcessor(openStore(t), nil, WithClock(fixedClock(2)))
	raw := []byte("not an image")

	res, err := p.Capture(t.Context(), form(), nil, raw)
	require.NoError(t, err)
	assert.False(t, res.Embedding.OK())
	assert.Equal(t, raw, res.Entry.Photo)
}

func TestCaptureValidation(t *testing.T) {
	t.Parallel()

	p := NewProcessor(openStore(t), nil)

	_, err := p.Capture(t.Context(), form(), nil, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = p.Capture(t.Context(), form(), &survey.GeoFix{Latitude: 95}, tinyJPEG(t))
	require.Error(t, err)
	assert.Equal(t, 0, p.Collection().Len())
}

func TestLoadAndReset(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	first := NewProcessor(store, nil, WithClock(fixedClock(3)))
	_, err := first.Capture(t.Context(), form(), nil, tinyJPEG(t))
	require.NoError(t, err)

	rec := &captureRecorder{}
	second := NewProcessor(store, nil, WithRecorder(rec))
	require.NoError(t, second.Load(t.Context()))
	assert.Equal(t, 1, second.Collection().Len())
	assert.Equal(t, 1, rec.size)

	require.NoError(t, second.Reset(t.Context()))
	assert.Equal(t, 0, second.Collection().Len())
	entries, err := store.All(t.Context())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
