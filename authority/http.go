package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/evorao/taxonomy"
)

// maxResponseSize limits the authority response body.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// maxErrorBody limits how much of an error body is kept in a StatusError.
const maxErrorBody = 512

// Config configures the HTTP authority client.
type Config struct {
	// Endpoint is the resolve-to-latest URL. The label is sent in the
	// "label" query parameter.
	Endpoint string

	// Timeout bounds a single request.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// HTTPClient resolves labels through the authority's HTTP API.
type HTTPClient struct {
	endpoint   *url.URL
	userAgent  string
	httpClient *http.Client
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(client *HTTPClient) {
		client.httpClient = c
	}
}

// NewHTTPClient creates a client for cfg.Endpoint.
func NewHTTPClient(cfg Config, opts ...HTTPOption) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("authority endpoint is required")
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse authority endpoint: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("authority endpoint must be http or https: %s", cfg.Endpoint)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &HTTPClient{
		endpoint:   endpoint,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewHTTPFactory returns a Factory building a fresh HTTPClient per call.
func NewHTTPFactory(cfg Config, opts ...HTTPOption) Factory {
	return func() (Client, error) {
		return NewHTTPClient(cfg, opts...)
	}
}

// ResolveToLatest implements Client. A 404, or a 200 with a null body, is a
// miss and returns (nil, nil). Any other non-2xx status is a *StatusError.
func (c *HTTPClient) ResolveToLatest(ctx context.Context, label string) (*taxonomy.Result, error) {
	u := *c.endpoint
	q := u.Query()
	q.Set("label", label)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", label, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	var result *taxonomy.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response for %q: %w", label, err)
	}
	return result, nil
}
