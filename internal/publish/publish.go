// Package publish copies finished export artifacts to one or more storage
// targets: a local or mounted directory, FTP, SFTP and Google Drive.
package publish

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/tphakala/treesurvey/internal/errors"
	"github.com/tphakala/treesurvey/internal/logger"
)

const (
	// PermDir and PermFile apply to locally published files.
	PermDir  = 0o755
	PermFile = 0o644

	DefaultTimeout = 30 * time.Second
	DefaultFTPPort = 21
	DefaultSSHPort = 22

	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second

	// tempPrefix marks partially uploaded files on remote targets.
	tempPrefix = ".upload-"
)

// Target stores one named artifact.
type Target interface {
	Name() string
	Store(ctx context.Context, fileName string, data []byte) error
}

// GetLogger returns the publish module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("publish")
}

// transientErrorPatterns contains substrings that indicate a retriable error
var transientErrorPatterns = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"timeout",
	"temporary",
	"broken pipe",
	"no route to host",
	"EOF",
	"ssh: handshake failed",
	"resource temporarily unavailable",
}

// IsTransientError reports whether err is likely to succeed on retry.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if os.IsTimeout(err) {
		return true
	}

	msg := err.Error()
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryConfig returns a RetryConfig with sensible defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultRetryBackoff,
	}
}

// WithRetry runs op until it succeeds, fails permanently or the attempts
// run out. Backoff grows linearly: 1x, 2x, 3x.
func WithRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}

	var lastErr error
	for attempt := range cfg.MaxRetries {
		if err := ctx.Err(); err != nil {
			return errors.New(err).
				Component("publish").
				Category(errors.CategoryCancellation).
				Build()
		}

		err := op()
		if err == nil {
			return nil
		}
		if !IsTransientError(err) {
			return err
		}
		lastErr = err

		if attempt == cfg.MaxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
		case <-time.After(cfg.Backoff * time.Duration(attempt+1)):
		}
	}

	return errors.New(lastErr).
		Component("publish").
		Category(errors.CategoryRetry).
		Context("attempts", cfg.MaxRetries).
		Build()
}

// validateFileName rejects names that would escape the target directory.
func validateFileName(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return errors.Newf("invalid artifact file name %q", name).
			Component("publish").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func configError(target, msg string) error {
	return errors.Newf("%s: %s", target, msg).
		Component("publish").
		Category(errors.CategoryConfiguration).
		Context("target", target).
		Build()
}

func storeError(err error, target, fileName string) error {
	return errors.New(err).
		Component("publish").
		Category(errors.CategoryPublish).
		Context("target", target).
		Context("file", fileName).
		Build()
}
