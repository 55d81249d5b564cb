package upload

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/antonholmquist/jason"
	"github.com/k3a/html2text"

	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/httpclient"
	"github.com/tphakala/treesurvey/internal/logger"
	"github.com/tphakala/treesurvey/internal/survey"
)

const (
	// maxResponseBytes caps how much of a reply is read for diagnostics.
	maxResponseBytes = 64 << 10
	// maxMessageLen caps the server message carried in errors.
	maxMessageLen = 200
)

// HTTPUploader posts the flat field map of an entry as JSON to a spreadsheet
// web app or any endpoint accepting one object per request.
type HTTPUploader struct {
	client *httpclient.Client
	url    string
	log    logger.Logger
}

// NewHTTPUploader creates an uploader posting to url through client.
func NewHTTPUploader(client *httpclient.Client, url string) *HTTPUploader {
	return &HTTPUploader{
		client: client,
		url:    url,
		log:    GetLogger().Module("http"),
	}
}

// NewHTTPUploaderFromSettings builds the uploader from upload.http settings.
// Requests are limited to one per second since script endpoints throttle
// bursts.
func NewHTTPUploaderFromSettings(s conf.HTTPUploadSettings) *HTTPUploader {
	client := httpclient.New(&httpclient.Config{
		DefaultTimeout:    s.Timeout,
		UserAgent:         s.UserAgent,
		RequestsPerSecond: 1,
		Burst:             2,
	})
	return NewHTTPUploader(client, s.URL)
}

// Name implements Uploader.
func (u *HTTPUploader) Name() string { return "http" }

// Upload implements Uploader.
func (u *HTTPUploader) Upload(ctx context.Context, entry *survey.Entry) error {
	payload, err := Payload(entry)
	if err != nil {
		return err
	}

	resp, err := u.client.Post(ctx, u.url, "application/json", payload)
	if err != nil {
		return errors.New(err).
			Component("upload").
			Category(errors.CategoryNetwork).
			Context("entry_id", entry.ID).
			Context("url", u.url).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if readErr != nil {
		u.log.Debug("failed to read upload response", logger.Error(readErr))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return uploadError(fmt.Errorf("upload rejected with status %d: %s",
			resp.StatusCode, responseMessage(body, resp.Header.Get("Content-Type"))),
			entry.ID, resp.StatusCode)
	}

	return u.checkReply(entry.ID, body)
}

// checkReply inspects a 2xx JSON reply. Script endpoints report failures in
// the body with {"result":"error","message":...} and a 200 status.
func (u *HTTPUploader) checkReply(entryID string, body []byte) error {
	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		// non-JSON success replies are accepted as is
		return nil
	}

	result, _ := obj.GetString("result")
	if result == "" {
		result, _ = obj.GetString("status")
	}
	if strings.EqualFold(result, "error") {
		msg, _ := obj.GetString("message")
		if msg == "" {
			msg, _ = obj.GetString("error")
		}
		if msg == "" {
			msg = "unspecified error"
		}
		return uploadError(fmt.Errorf("upload endpoint reported failure: %s", truncate(msg)), entryID, http.StatusOK)
	}

	if row, err := obj.GetInt64("row"); err == nil {
		u.log.Debug("entry stored remotely", logger.String("entry_id", entryID), logger.Int64("row", row))
	}
	return nil
}

// responseMessage extracts a short human readable message from an error
// body. HTML pages are reduced to text.
func responseMessage(body []byte, contentType string) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "text/html" || strings.HasPrefix(strings.ToLower(text), "<!doctype html") || strings.HasPrefix(strings.ToLower(text), "<html"):
		text = html2text.HTML2Text(text)
	case mediaType == "application/json":
		if obj, err := jason.NewObjectFromBytes(body); err == nil {
			for _, key := range []string{"message", "error"} {
				if msg, err := obj.GetString(key); err == nil && msg != "" {
					text = msg
					break
				}
			}
		}
	}
	return truncate(strings.Join(strings.Fields(text), " "))
}

func truncate(s string) string {
	if r := []rune(s); len(r) > maxMessageLen {
		return string(r[:maxMessageLen]) + "..."
	}
	return s
}

func uploadError(err error, entryID string, status int) error {
	return errors.New(err).
		Component("upload").
		Category(errors.CategoryUpload).
		Context("entry_id", entryID).
		Context("status", status).
		Build()
}
