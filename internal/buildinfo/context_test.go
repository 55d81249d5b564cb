package buildinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextGetters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ctx     *Context
		version string
		date    string
	}{
		{"nil context", nil, UnknownValue, UnknownValue},
		{"empty context", &Context{}, UnknownValue, UnknownValue},
		{"populated", &Context{Version: "v1.2.0", BuildDate: "2024-03-01"}, "v1.2.0", "2024-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.date, tt.ctx.GetBuildDate())
		})
	}
	assert.Equal(t, UnknownValue, (*Context)(nil).GetInstanceID())
}

func TestLoadInstanceIDPersists(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "data")

	first, err := LoadInstanceID(dir)
	require.NoError(t, err)
	_, err = uuid.Parse(first)
	require.NoError(t, err)

	second, err := LoadInstanceID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadInstanceIDReplacesGarbage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, instanceIDFile), []byte("garbage"), 0o600))

	id, err := LoadInstanceID(dir)
	require.NoError(t, err)
	assert.NotEqual(t, "garbage", id)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
}
