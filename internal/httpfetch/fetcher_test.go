package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_DoJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	f := New(Config{Retries: 2, RetryDelay: time.Millisecond}, zerolog.Nop())
	req, err := NewJSONRequest(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, f.DoJSON(context.Background(), req, &out))
	assert.Equal(t, "ok", out.Status)
}

func TestFetcher_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	f := New(Config{Retries: 2, RetryDelay: time.Millisecond}, zerolog.Nop())
	req, err := NewJSONRequest(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	var out struct {
		Status string `json:"status"`
	}
	require.NoError(t, f.DoJSON(context.Background(), req, &out))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetcher_ExhaustsRetriesReturnsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	f := New(Config{Retries: 1, RetryDelay: time.Millisecond}, zerolog.Nop())
	req, err := NewJSONRequest(context.Background(), http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	var out struct{}
	err = f.DoJSON(context.Background(), req, &out)
	require.Error(t, err)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusInternalServerError, fe.HTTPStatus)
	assert.Equal(t, "boom", fe.BodySnippet)
}

func TestFetcher_PacesRequestsByMinSpacing(t *testing.T) {
	var timestamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, time.Now())
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := New(Config{MinSpacing: 50 * time.Millisecond}, zerolog.Nop())

	for i := 0; i < 2; i++ {
		req, err := NewJSONRequest(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		var out struct{}
		_ = f.DoJSON(context.Background(), req, &out)
	}

	require.Len(t, timestamps, 2)
	assert.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), 40*time.Millisecond)
}

func TestFetcher_SustainedRateLimitsBeyondBurst(t *testing.T) {
	var timestamps []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, time.Now())
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := New(Config{RateLimit: 20, BurstSize: 1}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		req, err := NewJSONRequest(context.Background(), http.MethodGet, server.URL, nil)
		require.NoError(t, err)
		var out struct{}
		_ = f.DoJSON(context.Background(), req, &out)
	}

	require.Len(t, timestamps, 3)
	assert.GreaterOrEqual(t, timestamps[1].Sub(timestamps[0]), 40*time.Millisecond)
	assert.GreaterOrEqual(t, timestamps[2].Sub(timestamps[1]), 40*time.Millisecond)
}

func TestFetcher_ContextCancellationPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	f := New(Config{}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := NewJSONRequest(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	var out struct{}
	err = f.DoJSON(ctx, req, &out)
	require.Error(t, err)
}
