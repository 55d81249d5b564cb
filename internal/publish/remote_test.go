package publish

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/tphakala/treesurvey/internal/errors"
)

// inMemorySFTP wires a target to an in-process SFTP server sharing one
// in-memory filesystem across sessions.
func inMemorySFTP(t *testing.T) (*SFTPTarget, func() *sftp.Client) {
	t.Helper()

	handlers := sftp.InMemHandler()
	open := func() *sftp.Client {
		serverConn, clientConn := net.Pipe()
		server := sftp.NewRequestServer(serverConn, handlers)
		go func() { _ = server.Serve() }()

		client, err := sftp.NewClientPipe(clientConn, clientConn)
		require.NoError(t, err)
		return client
	}

	target, err := NewSFTPTarget(SFTPConfig{
		Host:           "sftp.example.com",
		Password:       "secret",
		KnownHostsFile: filepath.Join(t.TempDir(), "known_hosts"),
		RemotePath:     "/survey/exports",
	})
	require.NoError(t, err)
	target.dial = func(context.Context) (*sftpSession, error) {
		return &sftpSession{Client: open()}, nil
	}
	return target, open
}

func TestSFTPTargetStore(t *testing.T) {
	t.Parallel()

	target, open := inMemorySFTP(t)
	require.NoError(t, target.Store(context.Background(), "survey_photos.zip", []byte("zip-bytes")))

	client := open()
	defer client.Close()

	f, err := client.Open("/survey/exports/survey_photos.zip")
	require.NoError(t, err)
	defer f.Close()
	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(got))

	entries, err := client.ReadDir("/survey/exports")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasPrefix(entries[0].Name(), tempPrefix))
}

func TestSFTPTargetConfig(t *testing.T) {
	t.Parallel()

	_, err := NewSFTPTarget(SFTPConfig{})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewSFTPTarget(SFTPConfig{Host: "h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "authentication")

	target, err := NewSFTPTarget(SFTPConfig{Host: "h", Password: "p", KnownHostsFile: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.Equal(t, DefaultSSHPort, target.config.Port)

	_, err = target.clientConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known hosts")
}

func TestSFTPClientConfigWithKnownHosts(t *testing.T) {
	t.Parallel()

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, nil, 0o600))

	target, err := NewSFTPTarget(SFTPConfig{Host: "h", Username: "crew", Password: "p", KnownHostsFile: knownHosts})
	require.NoError(t, err)

	cfg, err := target.clientConfig()
	require.NoError(t, err)
	assert.Equal(t, "crew", cfg.User)
	assert.Len(t, cfg.Auth, 1)
	assert.NotNil(t, cfg.HostKeyCallback)
}

func TestFTPTargetConfigAndRefusedConnection(t *testing.T) {
	t.Parallel()

	_, err := NewFTPTarget(FTPConfig{})
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().(*net.TCPAddr)
	require.NoError(t, listener.Close())

	target, err := NewFTPTarget(FTPConfig{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		Timeout: time.Second,
		Retry:   RetryConfig{MaxRetries: 2, Backoff: time.Millisecond},
	})
	require.NoError(t, err)
	assert.Equal(t, "/", target.config.RemotePath)

	err = target.Store(context.Background(), "survey.csv", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryPublish))
}

func TestGDriveTargetStore(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path+"?"+r.URL.RawQuery)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file-1","name":"survey.kmz"}`))
	}))
	defer server.Close()

	target := NewGDriveTargetWithOptions("folder-123",
		option.WithEndpoint(server.URL+"/drive/v3/"),
		option.WithHTTPClient(server.Client()),
		option.WithoutAuthentication())

	require.NoError(t, target.Store(context.Background(), "survey.kmz", []byte("kmz-payload")))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, paths, 1)
	assert.Contains(t, paths[0], "/files")
	assert.Contains(t, paths[0], "uploadType=multipart")
	assert.Contains(t, bodies[0], "folder-123")
	assert.Contains(t, bodies[0], "kmz-payload")
}

func TestGDriveTargetConfig(t *testing.T) {
	t.Parallel()

	_, err := NewGDriveTarget(context.Background(), "", "folder")
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewGDriveTarget(context.Background(), filepath.Join(t.TempDir(), "missing.json"), "folder")
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
