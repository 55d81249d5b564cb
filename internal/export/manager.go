package export

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/survey"
)

// Source supplies the entries to export.
type Source interface {
	Snapshot() []*survey.Entry
}

// Publisher delivers finished artifacts somewhere outside the process.
type Publisher interface {
	Publish(ctx context.Context, artifact *Artifact) error
}

// Notifier announces a finished job.
type Notifier interface {
	NotifyExport(ctx context.Context, job *Job) error
}

// Recorder receives export measurements.
type Recorder interface {
	RecordExport(format string, status string, seconds float64, sizeBytes int)
}

// Job is the outcome of one Manager.Run call.
type Job struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	EntryCount int
	Artifacts  []*Artifact
	Failures   map[Format]error
	// PublishErr is set when publishing was requested and failed.
	PublishErr error
}

// Succeeded reports whether every requested format produced an artifact.
func (j *Job) Succeeded() bool {
	return len(j.Failures) == 0
}

// Warnings counts partial-export warnings across artifacts.
func (j *Job) Warnings() int {
	n := 0
	for _, a := range j.Artifacts {
		n += len(a.Warnings)
	}
	return n
}

// RunOptions selects the side effects of a run.
type RunOptions struct {
	Publish bool
	Notify  bool
}

// Manager runs export jobs over a Source.
type Manager struct {
	source    Source
	prefix    string
	publisher Publisher
	notifier  Notifier
	recorder  Recorder
	log       logger.Logger
	now       func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithFilePrefix sets the file name prefix (default "survey").
func WithFilePrefix(prefix string) ManagerOption {
	return func(m *Manager) { m.prefix = prefix }
}

func WithPublisher(p Publisher) ManagerOption {
	return func(m *Manager) { m.publisher = p }
}

func WithNotifier(n Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

func WithLogger(l logger.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithClock replaces time.Now, used for file names.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager reading from source.
func NewManager(source Source, opts ...ManagerOption) *Manager {
	m := &Manager{
		source: source,
		prefix: "survey",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Global().Module("export")
	}
	return m
}

// Export builds a single artifact from a fresh snapshot.
func (m *Manager) Export(ctx context.Context, format Format) (*Artifact, error) {
	job, err := m.Run(ctx, []Format{format}, RunOptions{})
	if err != nil {
		return nil, err
	}
	return job.Artifacts[0], nil
}

// Run exports every format from one snapshot, then optionally publishes the
// artifacts and sends a notification. The returned error is non-nil only
// when no artifact at all could be produced or ctx was cancelled; per
// format failures are listed in Job.Failures.
func (m *Manager) Run(ctx context.Context, formats []Format, opts RunOptions) (*Job, error) {
	start := m.now()
	entries := m.source.Snapshot()
	job := &Job{
		ID:         uuid.NewString(),
		StartedAt:  start,
		EntryCount: len(entries),
		Failures:   make(map[Format]error),
	}
	log := m.log.With(logger.String("job_id", job.ID))
	log.Info("export started",
		logger.Int("entries", len(entries)),
		logger.Int("formats", len(formats)))

	var failures []error
	for _, format := range formats {
		if err := ctx.Err(); err != nil {
			return job, errors.New(err).
				Component("export").
				Category(errors.CategoryCancellation).
				Context("job_id", job.ID).
				Build()
		}

		began := time.Now()
		artifact, err := Build(format, entries, m.prefix, start)
		elapsed := time.Since(began)

		if err != nil {
			job.Failures[format] = err
			failures = append(failures, err)
			m.record(format, "error", elapsed, 0)
			log.Error("export failed", logger.String("format", string(format)), logger.Error(err))
			continue
		}

		status := "success"
		if artifact.Partial() {
			status = "partial"
			for _, w := range artifact.Warnings {
				log.Warn("entry left out of export", logger.String("format", string(format)), logger.Error(w))
			}
		}
		m.record(format, status, elapsed, len(artifact.Data))
		job.Artifacts = append(job.Artifacts, artifact)

		log.Info("artifact built",
			logger.String("format", string(format)),
			logger.String("file", artifact.FileName),
			logger.Int("bytes", len(artifact.Data)),
			logger.Int("count", artifact.Count),
			logger.Duration("elapsed", elapsed))
	}

	if len(job.Artifacts) == 0 {
		job.Duration = m.now().Sub(start)
		if len(failures) == 1 {
			return job, failures[0]
		}
		return job, errors.Join(failures...)
	}

	if opts.Publish && m.publisher != nil {
		for _, artifact := range job.Artifacts {
			if err := m.publisher.Publish(ctx, artifact); err != nil {
				job.PublishErr = errors.Join(job.PublishErr, err)
				log.Error("publish failed", logger.String("file", artifact.FileName), logger.Error(err))
			}
		}
	}

	job.Duration = m.now().Sub(start)

	if opts.Notify && m.notifier != nil {
		if err := m.notifier.NotifyExport(ctx, job); err != nil {
			log.Warn("export notification failed", logger.Error(err))
		}
	}

	log.Info("export finished",
		logger.Int("artifacts", len(job.Artifacts)),
		logger.Int("failures", len(job.Failures)),
		logger.Int("warnings", job.Warnings()),
		logger.Duration("duration", job.Duration))

	return job, nil
}

func (m *Manager) record(format Format, status string, elapsed time.Duration, size int) {
	if m.recorder != nil {
		m.recorder.RecordExport(string(format), status, elapsed.Seconds(), size)
	}
}
