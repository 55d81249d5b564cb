package mqtt

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
)

type countingRecorder struct {
	mu        sync.Mutex
	errors    int
	delivered int
	status    []bool
}

func (r *countingRecorder) UpdateConnectionStatus(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = append(r.status, connected)
}

func (r *countingRecorder) IncrementMessagesDelivered() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered++
}

func (r *countingRecorder) IncrementErrors() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func (r *countingRecorder) ObserveMessageSize(float64)    {}
func (r *countingRecorder) ObservePublishLatency(float64) {}

// fakeToken satisfies paho.Token.
type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(complete bool, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }
func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := conf.Defaults()
	settings.Main.Name = "Plot-7"
	settings.Upload.MQTT.Broker = "tcp://broker.local:1883"
	settings.Upload.MQTT.ClientID = ""
	settings.Upload.MQTT.Topic = "survey/entries"
	settings.Upload.MQTT.Retain = true

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "tcp://broker.local:1883", cfg.Broker)
	assert.Equal(t, "Plot-7", cfg.ClientID)
	assert.Equal(t, "survey/entries", cfg.Topic)
	assert.True(t, cfg.Retain)
	assert.Equal(t, DefaultConfig().PublishTimeout, cfg.PublishTimeout)
}

func TestConnectRejectsInvalidBroker(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Broker: "not a url"}, nil)
	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.False(t, c.IsConnected())
}

func TestConnectCooldown(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Broker: "::", ReconnectCooldown: time.Hour}, nil)
	require.Error(t, c.Connect(context.Background()))

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTConnection))
	assert.Contains(t, err.Error(), "too recent")
}

func TestPublishWhileDisconnected(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	c := NewClient(Config{Broker: "tcp://127.0.0.1:1883"}, rec)
	err := c.Publish(context.Background(), "survey/entries", []byte(`{"ID":"x"}`))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryMQTTPublish))
	assert.Zero(t, rec.delivered)
}

func TestConnectUnreachableBrokerTimesOut(t *testing.T) {
	t.Parallel()

	rec := &countingRecorder{}
	c := NewClient(Config{
		Broker:         "tcp://127.0.0.1:1",
		ClientID:       "treesurvey-test",
		ConnectTimeout: 200 * time.Millisecond,
	}, rec)
	t.Cleanup(c.Disconnect)

	err := c.Connect(context.Background())
	require.Error(t, err)
	assert.False(t, c.IsConnected())
	assert.Equal(t, 1, rec.errors)
}

func TestWaitToken(t *testing.T) {
	t.Parallel()

	require.NoError(t, waitToken(context.Background(), newFakeToken(true, nil), time.Second))

	failed := newFakeToken(true, assert.AnError)
	assert.ErrorIs(t, waitToken(context.Background(), failed, time.Second), assert.AnError)

	pending := newFakeToken(false, nil)
	err := waitToken(context.Background(), pending, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, waitToken(ctx, pending, time.Second), context.Canceled)
}

func TestDisconnectWithoutConnect(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{Broker: "tcp://127.0.0.1:1883"}, nil)
	c.Disconnect()
	c.Disconnect()
	assert.False(t, c.IsConnected())
}
