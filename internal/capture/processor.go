// Package capture turns a photo and a filled-in form into a stored survey
// entry: metadata embedding, persistence, the in-memory collection and the
// optional cloud upload run here in that order.
package capture

import (
	"context"
	"time"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/exif"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/survey"
)

// Store is the persistence the processor writes through.
type Store interface {
	Save(ctx context.Context, entry *survey.Entry) error
	All(ctx context.Context) ([]*survey.Entry, error)
	Reset(ctx context.Context) error
}

// Uploader sends a saved entry off the device.
type Uploader interface {
	Dispatch(ctx context.Context, entry *survey.Entry) error
}

// Recorder receives capture measurements.
type Recorder interface {
	RecordCapture(health string, hasGPS bool, embedStatus string, photoBytes int, seconds float64)
	SetCollectionSize(n int)
}

// Result is the outcome of one capture.
type Result struct {
	Entry     *survey.Entry
	Embedding exif.Result
	// UploadErr is set when an enabled upload channel failed. The entry is
	// stored regardless.
	UploadErr error
}

// Processor owns the capture pipeline for one collection.
type Processor struct {
	store      Store
	collection *survey.Collection
	uploader   Uploader
	recorder   Recorder
	log        logger.Logger
	now        func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithUploader enables cloud upload of new entries.
func WithUploader(u Uploader) Option {
	return func(p *Processor) { p.uploader = u }
}

// WithRecorder attaches capture metrics.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

// WithClock overrides the capture clock.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// NewProcessor returns a processor persisting into store and appending to
// collection. A nil collection gets a fresh one.
func NewProcessor(store Store, collection *survey.Collection, opts ...Option) *Processor {
	if collection == nil {
		collection = survey.NewCollection()
	}
	p := &Processor{
		store:      store,
		collection: collection,
		log:        GetLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetLogger returns the capture module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("capture")
}

// Collection returns the collection the processor appends to.
func (p *Processor) Collection() *survey.Collection {
	return p.collection
}

// Load appends every stored entry to the collection. It is meant to run
// once at startup.
func (p *Processor) Load(ctx context.Context) error {
	entries, err := p.store.All(ctx)
	if err != nil {
		return err
	}
	p.collection.Append(entries...)
	p.setSize()
	p.log.Info("entries loaded", logger.Int("count", len(entries)))
	return nil
}

// Capture creates, stores and optionally uploads one entry. An embedding
// failure or an upload failure does not fail the capture; both are
// reported in the result.
func (p *Processor) Capture(ctx context.Context, form survey.Form, gps *survey.GeoFix, photo []byte) (*Result, error) {
	if len(photo) == 0 {
		return nil, errors.Newf("photo is required").
			Component("capture").
			Category(errors.CategoryValidation).
			Build()
	}
	if gps != nil {
		if err := gps.Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	entry, embedding := survey.CreateEntryAt(p.now(), form, gps, photo)
	elapsed := time.Since(start)

	log := p.log.With(logger.String("entry_id", entry.ID))
	if !embedding.OK() {
		log.Warn("photo stored without survey metadata",
			logger.String("status", embedding.Status.String()),
			logger.Error(embedding.Err))
	}

	if err := p.store.Save(ctx, entry); err != nil {
		return nil, err
	}
	p.collection.Append(entry)

	if p.recorder != nil {
		p.recorder.RecordCapture(entry.Health.String(), entry.HasGPS(), embedding.Status.String(), len(entry.Photo), elapsed.Seconds())
	}
	p.setSize()

	log.Info("entry captured",
		logger.String("species", entry.Species),
		logger.Bool("gps", entry.HasGPS()),
		logger.Int("photo_bytes", len(entry.Photo)))

	result := &Result{Entry: entry, Embedding: embedding}
	if p.uploader != nil {
		result.UploadErr = p.uploader.Dispatch(ctx, entry)
	}
	return result, nil
}

// Reset deletes every stored entry and clears the collection.
func (p *Processor) Reset(ctx context.Context) error {
	if err := p.store.Reset(ctx); err != nil {
		return err
	}
	p.collection.Reset()
	p.setSize()
	p.log.Info("local survey data reset")
	return nil
}

func (p *Processor) setSize() {
	if p.recorder != nil {
		p.recorder.SetCollectionSize(p.collection.Len())
	}
}
