package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"image"
	"image/jpeg"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/survey"
)

func photo(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

func fixtures(t *testing.T) []*survey.Entry {
	t.Helper()
	base := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	gps := func(lat, lon float64) *survey.GeoFix {
		return &survey.GeoFix{Latitude: lat, Longitude: lon, AccuracyMeters: 5}
	}

	specs := []struct {
		species string
		health  survey.Health
		gps     *survey.GeoFix
	}{
		{"Jati", survey.Healthy, gps(-6.2, 106.8)},
		{`Sengon, "laut"`, survey.Struggling, nil},
		{"Mahoni", survey.Dead, gps(-6.21, 106.81)},
		{"Akasia", survey.Healthy, nil},
		{"Jati", survey.Struggling, gps(-6.22, 106.82)},
	}

	entries := make([]*survey.Entry, len(specs))
	for i, s := range specs {
		at := base.Add(time.Duration(i) * time.Minute)
		entries[i] = &survey.Entry{
			ID:           at.Format(survey.IDLayout),
			CapturedAt:   at,
			HeightCm:     30 + i*10,
			PlantingYear: 2024,
			Species:      s.species,
			Health:       s.health,
			Location:     "Blok A",
			JobName:      "Rehabilitasi",
			Supervisor:   "Dewi",
			Vendor:       "CV Tunas",
			Team:         "Tim 3",
			GPS:          s.gps,
			Photo:        photo(t),
		}
	}
	return entries
}

func TestToCSVRoundTrip(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)
	wib := time.FixedZone("WIB", 7*60*60)
	entries[3].CapturedAt = time.Date(2024, 5, 10, 15, 3, 0, 0, wib)
	entries[3].Location = "Blok B,\nlereng \"utara\""
	entries[3].HeightCm = -4

	data, err := ToCSV(entries)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, len(entries)+1)
	assert.Equal(t, Columns, records[0])

	for i, e := range entries {
		rec := records[i+1]
		require.Len(t, rec, len(Columns))
		assert.Equal(t, e.ID, rec[0])

		at, err := time.Parse(time.RFC3339, rec[1])
		require.NoError(t, err)
		assert.True(t, e.CapturedAt.Equal(at), "timestamp %s", rec[1])
		_, wantOffset := e.CapturedAt.Zone()
		_, gotOffset := at.Zone()
		assert.Equal(t, wantOffset, gotOffset)

		height, err := strconv.Atoi(rec[2])
		require.NoError(t, err)
		assert.Equal(t, e.HeightCm, height)

		assert.Equal(t, e.Species, rec[3])
		health, err := survey.ParseHealth(rec[4])
		require.NoError(t, err)
		assert.Equal(t, e.Health, health)
		assert.Equal(t, e.Location, rec[5])

		year, err := strconv.Atoi(rec[6])
		require.NoError(t, err)
		assert.Equal(t, e.PlantingYear, year)

		assert.Equal(t, e.JobName, rec[7])
		assert.Equal(t, e.Supervisor, rec[8])
		assert.Equal(t, e.Vendor, rec[9])
		assert.Equal(t, e.Team, rec[10])
		assert.Equal(t, e.Coordinates(), rec[11])
	}
	assert.Equal(t, `Sengon, "laut"`, records[2][3])
	assert.Equal(t, "N/A", records[2][11])
	assert.Equal(t, "-6.2,106.8", records[1][11])
	assert.Equal(t, "2024-05-10T15:03:00+07:00", records[4][1])

	again, err := ToCSV(entries)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestToCSVEmpty(t *testing.T) {
	t.Parallel()

	data, err := ToCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Columns, ",")+"\n", string(data))
}

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	members := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		members[f.Name] = body
	}
	return members
}

func TestToKMZOnlyGPSEntries(t *testing.T) {
	t.Parallel()

	data, err := ToKMZ(fixtures(t))
	require.NoError(t, err)

	members := readZip(t, data)
	require.Contains(t, members, "doc.kml")
	kml := string(members["doc.kml"])

	assert.Equal(t, 3, strings.Count(kml, "<Placemark>"))
	assert.Contains(t, kml, "<coordinates>106.8,-6.2,0</coordinates>")
	assert.Contains(t, kml, "<name>Mahoni (50 cm)</name>")
	assert.Contains(t, kml, "<styleUrl>#health-dead</styleUrl>")
	assert.Contains(t, kml, `<Style id="health-struggling">`)
	assert.Contains(t, kml, "<color>ff0b9ef5</color>")
	assert.Contains(t, kml, `xmlns="http://www.opengis.net/kml/2.2"`)
}

func TestToKMZWithoutGPSIsValid(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)
	noGPS := []*survey.Entry{entries[1], entries[3]}

	data, err := ToKMZ(noGPS)
	require.NoError(t, err)
	kml := string(readZip(t, data)["doc.kml"])
	assert.NotContains(t, kml, "<Placemark>")
	assert.Contains(t, kml, "<Document>")

	again, err := ToKMZ(noGPS)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestToImageArchiveSkipsMissingPhoto(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)[:3]
	entries[1].Photo = nil

	artifact, err := ToImageArchive(entries)
	require.NoError(t, err)
	assert.Equal(t, 2, artifact.Count)
	require.Len(t, artifact.Warnings, 1)
	assert.True(t, errors.Is(artifact.Warnings[0], ErrExportPartial))
	assert.True(t, artifact.Partial())

	members := readZip(t, artifact.Data)
	assert.Len(t, members, 2)
	assert.Contains(t, members, "foto_"+entries[0].ID+".jpg")
	assert.Contains(t, members, "foto_"+entries[2].ID+".jpg")
	assert.Equal(t, entries[0].Photo, members["foto_"+entries[0].ID+".jpg"])
}

func TestToImageArchiveRejectsNonJPEG(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)[:2]
	entries[0].Photo = []byte("not an image")

	artifact, err := ToImageArchive(entries)
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.Count)
	assert.Len(t, artifact.Warnings, 1)
}

func TestToImageArchiveEmptyFails(t *testing.T) {
	t.Parallel()

	_, err := ToImageArchive(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExportFailed))
	assert.True(t, errors.IsCategory(err, errors.CategoryExport))
}

func TestToImageArchiveWithoutReadablePhotos(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)[:2]
	entries[0].Photo = nil
	entries[1].Photo = []byte("not an image")

	artifact, err := ToImageArchive(entries)
	require.NoError(t, err)
	assert.Zero(t, artifact.Count)
	assert.Len(t, artifact.Warnings, 2)
	assert.True(t, artifact.Partial())
	assert.Empty(t, readZip(t, artifact.Data))
}

func TestToImageArchiveDuplicateIDs(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)[:2]
	entries[1].ID = entries[0].ID

	artifact, err := ToImageArchive(entries)
	require.NoError(t, err)
	members := readZip(t, artifact.Data)
	assert.Contains(t, members, "foto_"+entries[0].ID+".jpg")
	assert.Contains(t, members, "foto_"+entries[0].ID+"_2.jpg")
}

func TestToXLSX(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)
	data, err := ToXLSX(entries)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(xlsxSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(entries)+1)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, entries[1].Species, rows[2][3])
	assert.Equal(t, "40", rows[2][2])
}

func TestFileNamesAndContentTypes(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC)
	assert.Equal(t, "survey_20241231_235958.csv", FormatCSV.FileName("", at))
	assert.Equal(t, "survey_20241231_235958.kmz", FormatKMZ.FileName("survey", at))
	assert.Equal(t, "blokA_20241231_235958_photos.zip", FormatZIP.FileName("blokA", at))
	assert.Equal(t, "survey_20241231_235958.xlsx", FormatXLSX.FileName("", at))
	assert.Equal(t, "application/vnd.google-earth.kmz", FormatKMZ.ContentType())

	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	f, err = ParseFormat("photos")
	require.NoError(t, err)
	assert.Equal(t, FormatZIP, f)
	_, err = ParseFormat("pdf")
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

type staticSource []*survey.Entry

func (s staticSource) Snapshot() []*survey.Entry { return s }

type recordingPublisher struct {
	mu    sync.Mutex
	names []string
}

func (p *recordingPublisher) Publish(_ context.Context, a *Artifact) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names = append(p.names, a.FileName)
	return nil
}

type recordingNotifier struct{ jobs []*Job }

func (n *recordingNotifier) NotifyExport(_ context.Context, job *Job) error {
	n.jobs = append(n.jobs, job)
	return nil
}

type countingRecorder struct{ statuses map[string]string }

func (r *countingRecorder) RecordExport(format, status string, _ float64, _ int) {
	r.statuses[format] = status
}

func testManager(source Source, opts ...ManagerOption) *Manager {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	base := []ManagerOption{
		WithClock(func() time.Time { return at }),
		WithLogger(logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC)),
	}
	return NewManager(source, append(base, opts...)...)
}

func TestManagerRunAllFormats(t *testing.T) {
	t.Parallel()

	entries := fixtures(t)
	entries[3].Photo = nil

	pub := &recordingPublisher{}
	notifier := &recordingNotifier{}
	rec := &countingRecorder{statuses: map[string]string{}}
	m := testManager(staticSource(entries), WithPublisher(pub), WithNotifier(notifier), WithRecorder(rec))

	job, err := m.Run(context.Background(), AllFormats, RunOptions{Publish: true, Notify: true})
	require.NoError(t, err)

	assert.True(t, job.Succeeded())
	assert.NotEmpty(t, job.ID)
	assert.Len(t, job.Artifacts, 4)
	assert.Equal(t, 1, job.Warnings())
	assert.Equal(t, 5, job.EntryCount)
	assert.ElementsMatch(t, []string{
		"survey_20240601_120000.csv",
		"survey_20240601_120000.kmz",
		"survey_20240601_120000_photos.zip",
		"survey_20240601_120000.xlsx",
	}, pub.names)
	require.Len(t, notifier.jobs, 1)
	assert.Equal(t, "partial", rec.statuses["zip"])
	assert.Equal(t, "success", rec.statuses["csv"])
}

func TestManagerEmptyCollection(t *testing.T) {
	t.Parallel()

	m := testManager(staticSource(nil))

	job, err := m.Run(context.Background(), []Format{FormatCSV, FormatZIP}, RunOptions{})
	require.NoError(t, err)
	assert.Len(t, job.Artifacts, 1)
	assert.Contains(t, job.Failures, FormatZIP)

	_, err = m.Export(context.Background(), FormatZIP)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExportFailed))
}

func TestManagerCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testManager(staticSource(fixtures(t))).Run(ctx, AllFormats, RunOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
