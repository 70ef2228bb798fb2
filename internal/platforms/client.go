package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethanbaker/clubsync/pkg/syncerr"
)

// APIClient wraps JSON calls to one external platform's REST API and maps
// HTTP failures onto the shared error taxonomy so the rate limiter can
// classify them
type APIClient struct {
	platform   Platform
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// APIClientOption customizes an APIClient
type APIClientOption func(*APIClient)

// WithHTTPClient substitutes the underlying HTTP client (e.g. an oauth2
// token-refreshing client)
func WithHTTPClient(hc *http.Client) APIClientOption {
	return func(c *APIClient) {
		c.httpClient = hc
	}
}

// WithHeader adds a static request header (API keys, tokens)
func WithHeader(key, value string) APIClientOption {
	return func(c *APIClient) {
		c.headers[key] = value
	}
}

// NewAPIClient creates a client for one platform's API
func NewAPIClient(platform Platform, baseURL string, opts ...APIClientOption) *APIClient {
	c := &APIClient{
		platform:   platform,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetJSON performs a GET request and decodes the response into out
func (c *APIClient) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON performs a POST request with a JSON body
func (c *APIClient) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

// doJSON is a helper to perform JSON requests against the platform API
func (c *APIClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport-level failures are worth a retry
		return fmt.Errorf("%s request failed: %v: %w", c.platform, err, syncerr.ErrTransient)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s '%s %s': %w", c.platform, method, path, syncerr.ErrRateLimited)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s '%s %s': %w", c.platform, method, path, syncerr.ErrNotFound)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s '%s %s' failed: %d: %w", c.platform, method, path, resp.StatusCode, syncerr.ErrTransient)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s '%s %s' failed: %d: %s", c.platform, method, path, resp.StatusCode, string(b))
	}

	if out == nil {
		return nil
	}

	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}
