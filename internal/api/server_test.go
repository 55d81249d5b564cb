package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/tphakala/treesurvey/internal/api/v1"
	"github.com/tphakala/treesurvey/internal/capture"
	"github.com/tphakala/treesurvey/internal/conf"
	"github.com/tphakala/treesurvey/internal/datastore"
	"github.com/tphakala/treesurvey/internal/observability"
)

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()

	settings := conf.Defaults()
	settings.Datastore.SQLite.Path = filepath.Join(t.TempDir(), "survey.db")
	store := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	s, err := New(settings, capture.NewProcessor(store, nil), opts...)
	require.NoError(t, err)
	return s
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(method, target, http.NoBody))
	return rec
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Address())

	cfg.BodyLimit = "lots"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Port = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:8080", cfg.Address())
}

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := conf.Defaults()
	settings.WebServer.Port = "9090"
	settings.WebServer.BodyLimit = "5M"
	settings.Metrics.Enabled = true

	cfg := ConfigFromSettings(settings)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "5M", cfg.BodyLimit)
	assert.True(t, cfg.MetricsEnabled)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.InDelta(t, 0, body["entries"], 0)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestUnknownRouteUsesErrorFormat(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := serve(s, http.MethodGet, "/api/v1/nothing")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp v1.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), resp.CorrelationID)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := newTestServer(t, WithMetrics(m))

	require.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/api/v1/entries").Code)

	rec := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `treesurvey_http_requests_total{method="GET",path="/api/v1/entries",status_code="200"} 1`)
}

func TestMetricsEndpointDisabled(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, serve(s, http.MethodGet, "/metrics").Code)
}
