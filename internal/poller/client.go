package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// DefaultMaxBodySize caps a single upstream response body.
const DefaultMaxBodySize = 16 << 20

// ErrBodyTooLarge is wrapped by [Response.Error] when the body exceeds the
// client's limit. The truncated body is discarded.
var ErrBodyTooLarge = errors.New("response body too large")

// all pollers talk to the same API host
const (
	defaultMaxIdleConns        = 16
	defaultMaxIdleConnsPerHost = 8
	defaultMaxConnsPerHost     = 8
	defaultIdleConnTimeout     = 60 * time.Second
)

// Response holds the result of one request made by [Client].
type Response struct {
	// Body is the complete response body.
	Body []byte

	// StatusCode is zero if the request failed before a response arrived.
	StatusCode int

	Latency time.Duration

	// Error is set when the request could not be sent or the body could not
	// be read in full. A non-2xx status is not an error at this level.
	Error error
}

// Client is a pooled HTTP client for polling.
//
// Timeouts are applied per request through the context rather than as a
// global client timeout.
type Client struct {
	httpClient  *http.Client
	maxBodySize int64
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithMaxBodySize sets the largest response body accepted, in bytes.
// Values below 1 keep [DefaultMaxBodySize].
func WithMaxBodySize(n int64) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// NewClient creates a [Client] with keep-alive connection pooling.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		maxBodySize: DefaultMaxBodySize,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client so other components (the token
// exchange) share the same connection pool.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Get performs a GET with the given headers and timeout.
//
// Get always returns a Response; failures are reported in its Error field.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string, timeout time.Duration) Response {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	// one byte past the limit tells a body of exactly the limit from a longer one
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}
	if int64(len(body)) > c.maxBodySize {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("%w: exceeds %s", ErrBodyTooLarge, humanize.IBytes(uint64(c.maxBodySize))),
		}
	}

	return Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes idle connections. Safe to call multiple times; the client
// stays usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
