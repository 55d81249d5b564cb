// Package upload sends each newly captured entry to the configured remote
// channels. A failed upload never removes or blocks the local entry.
package upload

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/mqtt"
	"github.com/tphakala/treesurvey/internal/survey"
)

// Uploader delivers one entry to a remote channel.
type Uploader interface {
	Name() string
	Upload(ctx context.Context, entry *survey.Entry) error
}

// Recorder receives per-channel upload outcomes.
type Recorder interface {
	RecordUpload(channel, status string, seconds float64, sizeBytes int)
}

// Payload renders the flat field map of entry as a JSON object with the
// keys in their canonical order.
func Payload(entry *survey.Entry) ([]byte, error) {
	if entry == nil {
		return nil, errors.Newf("nil entry").
			Component("upload").
			Category(errors.CategoryValidation).
			Build()
	}
	data, err := json.Marshal(survey.FlatFields(entry))
	if err != nil {
		return nil, errors.New(err).
			Component("upload").
			Category(errors.CategoryUpload).
			Context("entry_id", entry.ID).
			Build()
	}
	return data, nil
}

// Dispatcher fans an entry out to every configured uploader in order.
type Dispatcher struct {
	uploaders []Uploader
	recorder  Recorder
	log       logger.Logger
}

// NewDispatcher returns a dispatcher over uploaders. Nil uploaders are skipped.
func NewDispatcher(rec Recorder, uploaders ...Uploader) *Dispatcher {
	d := &Dispatcher{recorder: rec, log: GetLogger()}
	for _, u := range uploaders {
		if u != nil {
			d.uploaders = append(d.uploaders, u)
		}
	}
	return d
}

// Enabled reports whether at least one channel is configured.
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.uploaders) > 0
}

// Dispatch uploads entry through every channel. Failures are logged as
// warnings and joined into the returned error; the remaining channels are
// still attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, entry *survey.Entry) error {
	if !d.Enabled() || entry == nil {
		return nil
	}

	var errs []error
	for _, u := range d.uploaders {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		start := time.Now()
		err := u.Upload(ctx, entry)
		status := "success"
		if err != nil {
			status = "error"
			d.log.Warn("upload failed, entry kept locally",
				logger.String("channel", u.Name()),
				logger.String("entry_id", entry.ID),
				logger.Error(err))
			errs = append(errs, err)
		} else {
			d.log.Debug("entry uploaded",
				logger.String("channel", u.Name()),
				logger.String("entry_id", entry.ID))
		}
		if d.recorder != nil {
			d.recorder.RecordUpload(u.Name(), status, time.Since(start).Seconds(), len(entry.Photo))
		}
	}
	return errors.Join(errs...)
}

// Close releases channels holding connections.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	for _, u := range d.uploaders {
		if c, ok := u.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// FromSettings builds a dispatcher over the channels enabled in settings.
// mqttMetrics and rec may be nil.
func FromSettings(settings *conf.Settings, mqttMetrics mqtt.Recorder, rec Recorder) *Dispatcher {
	var uploaders []Uploader
	if h := settings.Upload.HTTP; h.Enabled && h.URL != "" {
		uploaders = append(uploaders, NewHTTPUploaderFromSettings(h))
	}
	if m := settings.Upload.MQTT; m.Enabled && m.Broker != "" {
		cfg := mqtt.ConfigFromSettings(settings)
		uploaders = append(uploaders, NewMQTTUploader(mqtt.NewClient(cfg, mqttMetrics), cfg.Topic))
	}
	return NewDispatcher(rec, uploaders...)
}

// GetLogger returns the upload module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("upload")
}
