package notification

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/export"
)

type fakeSender struct {
	mu     sync.Mutex
	block  chan struct{}
	errs   []error
	titles []string
	bodies []string
}

func (f *fakeSender) Send(message string, params *stypes.Params) []error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	title, _ := params.Title()
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, message)
	return f.errs
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *statusRecorder) RecordNotification(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func testJob() *export.Job {
	return &export.Job{
		ID:         "job-1",
		StartedAt:  time.Date(2024, 3, 1, 10, 15, 0, 0, time.UTC),
		EntryCount: 5,
		Artifacts: []*export.Artifact{
			{Format: export.FormatCSV, FileName: "survey_20240301_101500.csv", Data: make([]byte, 300), Count: 5},
			{
				Format:   export.FormatZIP,
				FileName: "survey_20240301_101500_photos.zip",
				Data:     make([]byte, 3*1024),
				Count:    4,
				Warnings: []error{assert.AnError},
			},
		},
		Failures: map[export.Format]error{},
	}
}

func TestExportMessage(t *testing.T) {
	t.Parallel()

	title, body := ExportMessage("Plot-7", testJob())
	assert.Equal(t, "Plot-7: survey export finished with problems", title)

	lines := strings.Split(body, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "5 entries exported at 2024-03-01 10:15:00", lines[0])
	assert.Equal(t, "- survey_20240301_101500.csv (5 entries, 300 B)", lines[1])
	assert.Equal(t, "- survey_20240301_101500_photos.zip (4 entries, 3.0 KiB), 1 skipped", lines[2])

	failed := &export.Job{
		StartedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Failures:  map[export.Format]error{export.FormatZIP: assert.AnError},
	}
	title, body = ExportMessage("Plot-7", failed)
	assert.Equal(t, "Plot-7: survey export failed", title)
	assert.Contains(t, body, "- zip failed: ")

	clean := testJob()
	clean.Artifacts = clean.Artifacts[:1]
	title, _ = ExportMessage("Plot-7", clean)
	assert.Equal(t, "Plot-7: survey export finished", title)
}

func TestNotifyExport(t *testing.T) {
	t.Parallel()

	s := &fakeSender{}
	rec := &statusRecorder{}
	n := newNotifier("", s)
	n.SetRecorder(rec)

	require.NoError(t, n.NotifyExport(context.Background(), testJob()))
	require.Len(t, s.titles, 1)
	assert.Equal(t, "TreeSurvey: survey export finished with problems", s.titles[0])
	assert.Contains(t, s.bodies[0], "5 entries exported")
	assert.Equal(t, []string{"success"}, rec.statuses)

	assert.NoError(t, n.NotifyExport(context.Background(), nil))
}

func TestSendScrubsFailures(t *testing.T) {
	t.Parallel()

	s := &fakeSender{errs: []error{nil, errors.NewStd("post https://hooks.example.com/x?token=abc123 failed")}}
	n := newNotifier("Plot-7", s)

	err := n.Send(context.Background(), "t", "b")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNotification))
	assert.NotContains(t, err.Error(), "abc123")
}

func TestSendHonoursContext(t *testing.T) {
	t.Parallel()

	s := &fakeSender{block: make(chan struct{})}
	defer close(s.block)
	n := newNotifier("Plot-7", s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := n.Send(ctx, "t", "b")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryCancellation))
}

func TestNewValidatesURLs(t *testing.T) {
	t.Parallel()

	_, err := New("x", nil, time.Second)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = New("x", []string{"nosuchservice://token@host"}, time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	n, err := New("x", []string{"generic://127.0.0.1:8080/hook?disabletls=yes"}, time.Second)
	require.NoError(t, err)
	assert.NotNil(t, n)
}

func TestFromSettingsDisabled(t *testing.T) {
	t.Parallel()

	n, err := FromSettings(conf.Defaults())
	require.NoError(t, err)
	assert.Nil(t, n)
}
