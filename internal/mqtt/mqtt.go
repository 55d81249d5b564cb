// Package mqtt provides an abstraction over the MQTT broker connection used
// to publish survey entries.
package mqtt

import (
	"context"
	"time"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/logger"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic. The client must be connected.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // default topic for entry messages
	Retain            bool   // true to retain messages at the broker
	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// Recorder receives connection and delivery statistics.
type Recorder interface {
	UpdateConnectionStatus(connected bool)
	IncrementMessagesDelivered()
	IncrementErrors()
	ObserveMessageSize(sizeBytes float64)
	ObservePublishLatency(seconds float64)
}

type nopRecorder struct{}

func (nopRecorder) UpdateConnectionStatus(bool)   {}
func (nopRecorder) IncrementMessagesDelivered()   {}
func (nopRecorder) IncrementErrors()              {}
func (nopRecorder) ObserveMessageSize(float64)    {}
func (nopRecorder) ObservePublishLatency(float64) {}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings maps the upload.mqtt settings onto a Config. An empty
// client id falls back to the instance name.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := DefaultConfig()
	m := settings.Upload.MQTT
	cfg.Broker = m.Broker
	cfg.ClientID = m.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = settings.Main.Name
	}
	cfg.Username = m.Username
	cfg.Password = m.Password
	cfg.Topic = m.Topic
	cfg.Retain = m.Retain
	return cfg
}

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
