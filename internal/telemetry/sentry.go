// Package telemetry provides opt-in, privacy-filtered error reporting to
// Sentry.
package telemetry

import (
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
)

const defaultFlushTimeout = 2 * time.Second

var (
	initMu      sync.Mutex
	initialized bool
)

// InitSentry initializes the Sentry SDK and installs it as the error
// reporter of the errors package. Nothing happens unless the user enabled
// it.
func InitSentry(settings *conf.Settings, release string) error {
	log := logger.Global().Module("telemetry")
	if !settings.Sentry.Enabled {
		log.Debug("error telemetry disabled")
		return nil
	}

	initMu.Lock()
	defer initMu.Unlock()

	environment := settings.Sentry.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.Sentry.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          "treesurvey@" + release,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("instance", settings.Main.Name)
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized = true
	log.Info("error telemetry enabled", logger.String("environment", environment))
	return nil
}

// Flush waits for queued events. It is a no-op when Sentry was never
// initialized.
func Flush() {
	initMu.Lock()
	ok := initialized
	initMu.Unlock()
	if ok {
		sentry.Flush(defaultFlushTimeout)
	}
}

// applyPrivacyFilters strips data that could identify the device or the
// surveyed site.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}

	event.Message = errors.Scrub(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = errors.Scrub(event.Exception[i].Value)
	}

	return event
}
