package upload

import (
	"context"

	"github.com/tphakala/treesurvey/internal/mqtt"
	"github.com/tphakala/treesurvey/internal/survey"
)

// MQTTUploader publishes the flat field map of an entry to a broker topic.
type MQTTUploader struct {
	client mqtt.Client
	topic  string
}

// NewMQTTUploader publishes through client to topic.
func NewMQTTUploader(client mqtt.Client, topic string) *MQTTUploader {
	return &MQTTUploader{client: client, topic: topic}
}

// Name implements Uploader.
func (u *MQTTUploader) Name() string { return "mqtt" }

// Upload implements Uploader. The connection is opened on first use.
func (u *MQTTUploader) Upload(ctx context.Context, entry *survey.Entry) error {
	payload, err := Payload(entry)
	if err != nil {
		return err
	}
	if !u.client.IsConnected() {
		if err := u.client.Connect(ctx); err != nil {
			return err
		}
	}
	return u.client.Publish(ctx, u.topic, payload)
}

// Close disconnects from the broker.
func (u *MQTTUploader) Close() {
	u.client.Disconnect()
}
