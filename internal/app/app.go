// Package app assembles the long-lived components shared by every command:
// datastore, collection, capture processor, uploads and metrics.
package app

import (
	"context"
	"time"

	"github.com/tphakala/treesurvey/internal/analytics"
	"github.com/tphakala/treesurvey/internal/buildinfo"
	"github.com/tphakala/treesurvey/internal/capture"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/datastore"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/export"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/mqtt"
	"github.com/tphakala/treesurvey/internal/notification"
	"github.com/tphakala/treesurvey/internal/observability"
	"github.com/tphakala/treesurvey/internal/publish"
	"github.com/tphakala/treesurvey/internal/upload"
)

// analyticsTTL bounds how long a cached summary survives without a new
// capture.
const analyticsTTL = 5 * time.Minute

// Options selects the optional parts of an App.
type Options struct {
	// Upload enables the configured per-entry upload channels.
	Upload bool
	// Metrics creates the Prometheus registry even when the settings leave
	// the endpoint disabled.
	Metrics bool
}

// App holds the components built from one Settings.
type App struct {
	Settings  *conf.Settings
	Build     *buildinfo.Context
	Store     datastore.Interface
	Processor *capture.Processor
	Analytics *analytics.Service
	Metrics   *observability.Metrics
	uploader  *upload.Dispatcher
	log       logger.Logger
}

// Open connects the datastore and loads every stored entry into the
// collection.
func Open(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, opts Options) (*App, error) {
	a := &App{
		Settings: settings,
		Build:    build,
		log:      logger.Global().Module("app"),
	}

	if opts.Metrics || settings.Metrics.Enabled {
		m, err := observability.NewMetrics()
		if err != nil {
			return nil, errors.New(err).
				Component("app").
				Category(errors.CategoryConfiguration).
				Build()
		}
		a.Metrics = m
	}

	store, err := datastore.New(settings)
	if err != nil {
		return nil, err
	}
	if err := store.Open(); err != nil {
		return nil, err
	}
	if a.Metrics != nil {
		if s, ok := store.(interface {
			SetMetrics(datastore.OperationRecorder)
		}); ok {
			s.SetMetrics(a.Metrics.Datastore)
		}
	}
	a.Store = store

	var procOpts []capture.Option
	if a.Metrics != nil {
		procOpts = append(procOpts, capture.WithRecorder(a.Metrics.Capture))
	}
	if opts.Upload {
		a.uploader = a.newUploader()
		if a.uploader.Enabled() {
			procOpts = append(procOpts, capture.WithUploader(a.uploader))
		}
	}

	a.Processor = capture.NewProcessor(store, nil, procOpts...)
	if err := a.Processor.Load(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	a.Analytics = analytics.NewService(a.Processor.Collection(), analyticsTTL)

	return a, nil
}

func (a *App) newUploader() *upload.Dispatcher {
	if a.Metrics == nil {
		return upload.FromSettings(a.Settings, nil, nil)
	}
	var mqttRec mqtt.Recorder = a.Metrics.MQTT
	var rec upload.Recorder = a.Metrics.Transfer
	return upload.FromSettings(a.Settings, mqttRec, rec)
}

// ExportOptions selects export side effects.
type ExportOptions struct {
	Publish bool
	Notify  bool
}

// ExportManager returns a manager over the collection. Publishing targets
// and notification services are built only when requested.
func (a *App) ExportManager(ctx context.Context, opts ExportOptions) (*export.Manager, error) {
	mopts := []export.ManagerOption{export.WithFilePrefix(a.Settings.Export.FilePrefix)}
	if a.Metrics != nil {
		mopts = append(mopts, export.WithRecorder(a.Metrics.Export))
	}

	if opts.Publish {
		var popts []publish.ManagerOption
		if a.Metrics != nil {
			popts = append(popts, publish.WithRecorder(a.Metrics.Transfer))
		}
		publisher, err := publish.FromSettings(ctx, a.Settings, popts...)
		if err != nil {
			return nil, err
		}
		if len(publisher.Targets()) == 0 {
			a.log.Warn("publishing requested but no target is enabled")
		} else {
			mopts = append(mopts, export.WithPublisher(publisher))
		}
	}

	if opts.Notify {
		notifier, err := notification.FromSettings(a.Settings)
		if err != nil {
			return nil, err
		}
		if notifier == nil {
			a.log.Warn("notification requested but no service is configured")
		} else {
			if a.Metrics != nil {
				notifier.SetRecorder(a.Metrics.Notification)
			}
			mopts = append(mopts, export.WithNotifier(notifier))
		}
	}

	return export.NewManager(a.Processor.Collection(), mopts...), nil
}

// Close releases upload connections and the datastore.
func (a *App) Close() error {
	a.uploader.Close()
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
