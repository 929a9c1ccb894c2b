// Package fetch retrieves monitored pages over HTTP with a hard timeout.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for fetch failures.
var (
	ErrFetchTimeout = errors.New("fetch timeout")
	ErrFetchFailed  = errors.New("fetch failed")
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	DefaultMaxBodyBytes = 5 << 20

	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
	acceptLanguageHeader = "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"
)

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// Fetcher is the interface the monitoring pipeline depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Config tunes a Client. Zero fields take the package defaults.
type Config struct {
	Timeout      time.Duration
	UserAgent    string
	MaxBodyBytes int64
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Client implements Fetcher with net/http.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a fetch client. The timeout covers the whole exchange,
// body included.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Fetch GETs url with browser-like headers and returns the (size-capped) body.
// Errors wrap ErrFetchTimeout or ErrFetchFailed, or are an *HTTPStatusError.
// A cancelled parent context is returned as-is so callers can tell shutdown
// apart from a slow site.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, classifyError(ctx, err)
	}
	return body, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrFetchFailed, err)
}

// Describe renders a fetch error for the audit ledger.
func Describe(err error) string {
	var statusErr *HTTPStatusError
	switch {
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP %d", statusErr.StatusCode)
	case errors.Is(err, ErrFetchTimeout):
		return "timeout"
	default:
		return err.Error()
	}
}

// Compile-time check that Client implements Fetcher.
var _ Fetcher = (*Client)(nil)
