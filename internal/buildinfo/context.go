// Package buildinfo carries build-time metadata separate from user
// configuration.
package buildinfo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tphakala/treesurvey/internal/errors"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// instanceIDFile holds the persisted instance id inside the data directory.
const instanceIDFile = ".instance-id"

// Context contains metadata injected at startup via -ldflags.
type Context struct {
	Version   string
	BuildDate string
	// InstanceID identifies one installation, e.g. in exported file
	// metadata and telemetry tags. It carries no user data.
	InstanceID string
}

// GetVersion returns the build version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetInstanceID returns the instance id or UnknownValue.
func (c *Context) GetInstanceID() string {
	if c == nil || c.InstanceID == "" {
		return UnknownValue
	}
	return c.InstanceID
}

// LoadInstanceID reads the instance id stored in dir, creating one on
// first use.
func LoadInstanceID(dir string) (string, error) {
	path := filepath.Join(dir, instanceIDFile)

	data, err := os.ReadFile(path)
	if err == nil {
		if id, parseErr := uuid.Parse(strings.TrimSpace(string(data))); parseErr == nil {
			return id.String(), nil
		}
	} else if !os.IsNotExist(err) {
		return "", fileError(err, path)
	}

	id := uuid.NewString()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fileError(err, dir)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fileError(err, path)
	}
	return id, nil
}

func fileError(err error, path string) error {
	return errors.New(err).
		Component("buildinfo").
		Category(errors.CategoryFileIO).
		Context("path", path).
		Build()
}
