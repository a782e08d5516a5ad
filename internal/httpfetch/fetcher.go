// Package httpfetch provides a single-flight, per-host-paced HTTP client
// used by every provider adapter to reach an external catalog.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config configures one Fetcher instance. Each provider adapter owns its
// own Fetcher so lastRequestAt is scoped per host, not shared globally.
type Config struct {
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
	MinSpacing   time.Duration
	UserAgent    string
	APIKey       string
	APIKeyHeader string

	// RateLimit is the sustained requests-per-second rate allowed past the
	// MinSpacing gate, enforced by a token bucket.
	RateLimit float64
	// BurstSize is the token bucket's maximum burst.
	BurstSize int
}

// Fetcher issues outbound HTTP requests with per-host pacing, a sustained
// token-bucket rate limit, bounded retries, and response-body truncation on
// error. Safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	log     zerolog.Logger
	limiter *rate.Limiter

	mu            sync.Mutex
	lastRequestAt time.Time
}

// New creates a Fetcher with the given config, applying defaults for any
// zero-valued field.
func New(cfg Config, log zerolog.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ScholarMCP/1.0"
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.BurstSize),
	}
}

// FetchError is returned on retry exhaustion or a non-2xx terminal
// response. Provider adapters wrap it into a domain.ProviderError.
type FetchError struct {
	HTTPStatus  int
	URL         string
	BodySnippet string
	Cause       error
}

func (e *FetchError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("http %d: %s", e.HTTPStatus, e.URL)
	}
	return fmt.Sprintf("%s: %v", e.URL, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

const bodySnippetLimit = 1024

// pace sleeps until minSpacing has elapsed since the previous request
// issued by this Fetcher, then waits on the sustained-rate token bucket,
// then records the post-sleep time as the new lastRequestAt. The spacing
// gate and the token bucket compose: the former bounds the minimum gap
// between any two requests, the latter bounds the sustained rate over time.
func (f *Fetcher) pace(ctx context.Context) error {
	f.mu.Lock()
	wait := f.cfg.MinSpacing - time.Since(f.lastRequestAt)
	f.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	f.lastRequestAt = time.Now()
	f.mu.Unlock()
	return nil
}

// DoJSON issues the request and decodes a JSON response into out. A 2xx
// response with a non-JSON body is an error.
func (f *Fetcher) DoJSON(ctx context.Context, req *http.Request, out interface{}) error {
	resp, body, err := f.do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &FetchError{HTTPStatus: resp.StatusCode, URL: req.URL.String(), Cause: fmt.Errorf("decoding json response: %w", err)}
	}
	return nil
}

// DoRaw issues the request and returns the raw response body and its
// content type, for binary downloads such as PDFs.
func (f *Fetcher) DoRaw(ctx context.Context, req *http.Request) ([]byte, string, error) {
	resp, body, err := f.do(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) do(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	if f.cfg.APIKey != "" && f.cfg.APIKeyHeader != "" {
		req.Header.Set(f.cfg.APIKeyHeader, f.cfg.APIKey)
	}

	var lastErr error
	for attempt := 0; attempt <= f.cfg.Retries; attempt++ {
		if err := f.pace(ctx); err != nil {
			return nil, nil, err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, nil, err
			}
			lastErr = &FetchError{URL: req.URL.String(), Cause: err}
			if attempt < f.cfg.Retries {
				if err := f.sleepRetry(ctx, f.cfg.RetryDelay); err != nil {
					return nil, nil, err
				}
				if err := resetBody(req); err != nil {
					return nil, nil, err
				}
				continue
			}
			return nil, nil, lastErr
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, bodySnippetLimit*64))
		resp.Body.Close()
		if readErr != nil {
			lastErr = &FetchError{HTTPStatus: resp.StatusCode, URL: req.URL.String(), Cause: readErr}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		snippet := body
		if len(snippet) > bodySnippetLimit {
			snippet = snippet[:bodySnippetLimit]
		}
		lastErr = &FetchError{HTTPStatus: resp.StatusCode, URL: req.URL.String(), BodySnippet: string(snippet)}

		if attempt < f.cfg.Retries {
			delay := retryDelayFor(resp, f.cfg.RetryDelay)
			if err := f.sleepRetry(ctx, delay); err != nil {
				return nil, nil, err
			}
			if err := resetBody(req); err != nil {
				return nil, nil, err
			}
			continue
		}
	}
	return nil, nil, lastErr
}

func retryDelayFor(resp *http.Response, fallback time.Duration) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return fallback
	}
	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return fallback
}

func (f *Fetcher) sleepRetry(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func resetBody(req *http.Request) error {
	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("resetting request body for retry: %w", err)
	}
	req.Body = body
	return nil
}

// NewJSONRequest is a small helper for provider adapters building GET
// requests with an Accept: application/json header.
func NewJSONRequest(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return req, nil
}
