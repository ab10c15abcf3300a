package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcarvalho/tgrelay/internal/session"
	"github.com/lcarvalho/tgrelay/internal/telemetry"
)

func newTestServer(t *testing.T, state session.State) *httptest.Server {
	t.Helper()

	h := NewHealthHandler(func() session.State { return state }, 1<<30, &telemetry.Telemetry{})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestRoot(t *testing.T) {
	srv := newTestServer(t, session.StateAuthenticated)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tgrelay", body["service"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "authenticated", body["session_state"])
	assert.EqualValues(t, 1<<30, body["max_file_size"])
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, session.StateUnauthenticated)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestPing(t *testing.T) {
	srv := newTestServer(t, session.StateUnauthenticated)

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	buf := make([]byte, 16)
	n, _ := resp.Body.Read(buf)
	assert.Equal(t, "pong", string(buf[:n]))
}

func TestMetricsDisabled(t *testing.T) {
	srv := newTestServer(t, session.StateUnauthenticated)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	// Telemetry is disabled in tests; the endpoint exists but serves 404.
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
