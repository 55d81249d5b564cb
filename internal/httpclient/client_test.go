package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	client := New(&Config{})
	assert.Equal(t, DefaultTimeout, client.defaultTimeout)
	assert.Equal(t, defaultUserAgent, client.userAgent)
	assert.Nil(t, client.limiter)

	custom := New(&Config{DefaultTimeout: 5 * time.Second, UserAgent: "Crew/1.0", RequestsPerSecond: 2})
	assert.Equal(t, 5*time.Second, custom.defaultTimeout)
	assert.Equal(t, "Crew/1.0", custom.userAgent)
	require.NotNil(t, custom.limiter)
	assert.Equal(t, 1, custom.limiter.Burst())
}

func TestDoInjectsUserAgent(t *testing.T) {
	t.Parallel()

	var received string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClientWithConfig(t, &Config{UserAgent: "TreeSurvey/test"})
	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.Equal(t, "TreeSurvey/test", received)
}

// The default timeout context must outlive Do so the body stays readable.
func TestDoBodyReadableAfterReturn(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		_, _ = w.Write([]byte("part one,"))
		if flusher != nil {
			flusher.Flush()
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("part two"))
	})

	client := newTestClient(t)
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "part one,part two", string(body))
}

func TestDoContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	resp, err := client.Get(ctx, server.URL)
	defer closeResponseBody(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoDefaultTimeout(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClientWithConfig(t, &Config{DefaultTimeout: 30 * time.Millisecond})
	resp, err := client.Get(t.Context(), server.URL)
	defer closeResponseBody(t, resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDoContextDeadlineOverridesDefault(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClientWithConfig(t, &Config{DefaultTimeout: 5 * time.Millisecond})
	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	resp, err := client.Get(ctx, server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoConcurrentRequests(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClient(t)
	const workers = 30
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			resp, err := client.Get(t.Context(), server.URL)
			if err != nil {
				errs <- err
				return
			}
			errs <- resp.Body.Close()
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(workers), count.Load())
}

func TestRateLimiterSpacesRequests(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	client := newTestClientWithConfig(t, &Config{RequestsPerSecond: 20, Burst: 1})

	start := time.Now()
	for range 3 {
		resp, err := client.Get(t.Context(), server.URL)
		require.NoError(t, err)
		closeResponseBody(t, resp)
	}
	// two waits of 50ms after the initial token
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestHooks(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t)

	var before, after atomic.Bool
	var status atomic.Int32
	client.SetBeforeRequestHook(func(r *http.Request) { before.Store(true) })
	client.SetAfterResponseHook(func(r *http.Request, resp *http.Response, err error) {
		after.Store(true)
		if resp != nil {
			status.Store(int32(resp.StatusCode)) //nolint:gosec // HTTP status codes fit
		}
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	defer closeResponseBody(t, resp)

	assert.True(t, before.Load())
	assert.True(t, after.Load())
	assert.Equal(t, int32(http.StatusNoContent), status.Load())
}

func TestPostMarshalsJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Jati", payload["species"])
		w.WriteHeader(http.StatusCreated)
	})

	client := newTestClient(t)
	resp, err := client.Post(t.Context(), server.URL, "", map[string]string{"species": "Jati"})
	require.NoError(t, err)
	defer closeResponseBody(t, resp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	client := New(nil)
	client.Close()
	client.Close()
}
