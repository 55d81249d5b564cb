package telemetry

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
)

func TestApplyPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := sentry.NewEvent()
	event.User = sentry.User{ID: "surveyor-1", IPAddress: "10.0.0.5"}
	event.ServerName = "field-tablet"
	event.Contexts = map[string]sentry.Context{"device": {"model": "x"}, "app": {"v": "1"}}
	event.Extra = map[string]any{"component": "export", "path": "/home/user/photos"}
	event.Tags = map[string]string{"hostname": "field-tablet", "category": "export"}
	event.Message = "upload to https://example.com/api?token=secret failed at -6.914744, 107.609810"
	event.Exception = []sentry.Exception{{Type: "Upload Error", Value: "post https://u:p@example.com/x failed"}}

	out := applyPrivacyFilters(event)

	assert.True(t, out.User.IsEmpty())
	assert.Empty(t, out.ServerName)
	assert.NotContains(t, out.Contexts, "device")
	assert.Contains(t, out.Contexts, "app")
	assert.Equal(t, map[string]any{"component": "export"}, out.Extra)
	assert.Equal(t, map[string]string{"category": "export"}, out.Tags)
	assert.NotContains(t, out.Message, "secret")
	assert.NotContains(t, out.Message, "107.609810")
	assert.NotContains(t, out.Exception[0].Value, "u:p@")
}

func TestInitSentryDisabled(t *testing.T) {
	settings := conf.Defaults()
	settings.Sentry.Enabled = false

	require.NoError(t, InitSentry(settings, "test"))
	assert.Nil(t, errors.GetTelemetryReporter())
	Flush()
}
