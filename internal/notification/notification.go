// Package notification announces finished export jobs through shoutrrr
// service URLs (Telegram, Slack, ntfy, e-mail, generic webhooks, ...).
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/export"
	"github.com/tphakala/treesurvey/internal/logger"
)

// sender is the part of the shoutrrr router used here.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Recorder counts delivered and failed notifications.
type Recorder interface {
	RecordNotification(status string)
}

// Notifier sends export summaries. It implements export.Notifier.
type Notifier struct {
	instance string
	sender   sender
	recorder Recorder
	log      logger.Logger
}

// New builds a notifier for urls. Invalid URLs fail here rather than on
// first send; error messages never contain the URLs themselves.
func New(instance string, urls []string, timeout time.Duration) (*Notifier, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}

	router, err := shoutrrr.CreateSender(slices.Clone(urls)...)
	if err != nil {
		return nil, errors.Newf("invalid notification URL: %s", errors.Scrub(err.Error())).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if timeout > 0 {
		router.Timeout = timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))

	return newNotifier(instance, router), nil
}

// FromSettings returns nil when notifications are disabled.
func FromSettings(settings *conf.Settings) (*Notifier, error) {
	n := settings.Notification
	if !n.Enabled || len(n.URLs) == 0 {
		return nil, nil
	}
	return New(settings.Main.Name, n.URLs, n.Timeout)
}

func newNotifier(instance string, s sender) *Notifier {
	if instance == "" {
		instance = "TreeSurvey"
	}
	return &Notifier{
		instance: instance,
		sender:   s,
		log:      logger.Global().Module("notification"),
	}
}

// SetRecorder attaches a metrics recorder.
func (n *Notifier) SetRecorder(r Recorder) {
	n.recorder = r
}

// NotifyExport implements export.Notifier.
func (n *Notifier) NotifyExport(ctx context.Context, job *export.Job) error {
	if job == nil {
		return nil
	}
	title, body := ExportMessage(n.instance, job)
	return n.Send(ctx, title, body)
}

// Send delivers one message to every configured service. The router
// applies its own timeout; ctx only aborts the wait.
func (n *Notifier) Send(ctx context.Context, title, body string) error {
	params := stypes.Params{}
	if title != "" {
		params.SetTitle(title)
	}

	done := make(chan []error, 1)
	go func() { done <- n.sender.Send(body, &params) }()

	var errs []error
	select {
	case <-ctx.Done():
		n.record("error")
		return errors.New(ctx.Err()).
			Component("notification").
			Category(errors.CategoryCancellation).
			Build()
	case errs = <-done:
	}

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, fmt.Errorf("%s", errors.Scrub(err.Error())))
		}
	}
	if len(failures) > 0 {
		n.record("error")
		return errors.New(errors.Join(failures...)).
			Component("notification").
			Category(errors.CategoryNotification).
			Context("services", len(errs)).
			Context("failed", len(failures)).
			Build()
	}

	n.record("success")
	n.log.Debug("notification sent", logger.String("title", title))
	return nil
}

func (n *Notifier) record(status string) {
	if n.recorder != nil {
		n.recorder.RecordNotification(status)
	}
}

var _ export.Notifier = (*Notifier)(nil)
