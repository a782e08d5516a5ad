package httpmcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarmcp/server/internal/aggregator"
	"github.com/scholarmcp/server/internal/dispatcher"
	"github.com/scholarmcp/server/internal/session"
)

func newTestServer(t *testing.T, mode session.Mode) (*Server, *httptest.Server) {
	t.Helper()
	agg := aggregator.New(aggregator.Config{}, nil, zerolog.Nop())
	d := dispatcher.New(dispatcher.Services{Aggregator: agg}, zerolog.Nop(), nil)
	sessions := session.New(session.Config{Mode: mode, TTL: time.Hour, MaxSessions: 10}, nil, zerolog.Nop())

	srv := New(Config{EndpointPath: "/mcp", HealthPath: "/health"}, d, sessions, zerolog.Nop())
	ts := httptest.NewServer(srv.router)
	return srv, ts
}

func TestHealthEndpointReturnsStatusOK(t *testing.T) {
	_, ts := newTestServer(t, session.ModeStateless)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPreflightReturns204(t *testing.T) {
	_, ts := newTestServer(t, session.ModeStateless)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/mcp", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestStatefulInitCreatesSessionHeader(t *testing.T) {
	_, ts := newTestServer(t, session.ModeStateful)
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"tool": "search_literature_graph", "params": map[string]any{"query": "x"}})
	resp, err := http.Post(ts.URL+"/mcp", "application/json", jsonReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get(sessionHeader))
}

func TestStatefulUnknownSessionReturns404(t *testing.T) {
	_, ts := newTestServer(t, session.ModeStateful)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/mcp", jsonReader([]byte(`{}`)))
	req.Header.Set(sessionHeader, "unknown-session")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatelessMissingSessionIsNotRequired(t *testing.T) {
	_, ts := newTestServer(t, session.ModeStateless)
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"tool": "search_literature_graph", "params": map[string]any{"query": "x"}})
	resp, err := http.Post(ts.URL+"/mcp", "application/json", jsonReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOriginRejectionReturns403(t *testing.T) {
	agg := aggregator.New(aggregator.Config{}, nil, zerolog.Nop())
	d := dispatcher.New(dispatcher.Services{Aggregator: agg}, zerolog.Nop(), nil)
	sessions := session.New(session.Config{Mode: session.ModeStateless, TTL: time.Hour, MaxSessions: 10}, nil, zerolog.Nop())
	srv := New(Config{EndpointPath: "/mcp", HealthPath: "/health", AllowedOrigins: []string{"https://allowed.example"}}, d, sessions, zerolog.Nop())
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/mcp", jsonReader([]byte(`{}`)))
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBearerTokenRequiredWhenConfigured(t *testing.T) {
	agg := aggregator.New(aggregator.Config{}, nil, zerolog.Nop())
	d := dispatcher.New(dispatcher.Services{Aggregator: agg}, zerolog.Nop(), nil)
	sessions := session.New(session.Config{Mode: session.ModeStateless, TTL: time.Hour, MaxSessions: 10}, nil, zerolog.Nop())
	srv := New(Config{EndpointPath: "/mcp", HealthPath: "/health", APIKey: "secret"}, d, sessions, zerolog.Nop())
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/mcp", "application/json", jsonReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func jsonReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
