// ABOUTME: HTTP transport for the Carter API using JSON request/response bodies
// ABOUTME: Single point of network I/O; no retries or timeouts at this layer

package carter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultBaseURL is the production Carter API host.
const DefaultBaseURL = "https://api.carterlabs.ai"

// Client talks to the Carter API. All operations build a JSON envelope,
// POST it to an endpoint under the base URL, and decode the JSON reply.
// The zero value is not usable; construct with New.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host. Used by tests to point at a local server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Carter API client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    http.DefaultClient,
		logger:  slog.Default().With("component", "carter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post sends payload as a JSON POST body to <base>/<endpoint> and decodes the
// response body into T. Connection failure, a non-2xx status, and a body that
// does not decode all surface as one error kind: the caller sees a failed
// round trip, never a partial result.
func post[T any](ctx context.Context, c *Client, endpoint string, payload any) (*T, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", endpoint, err)
	}

	url := c.baseURL + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused; the body may carry a JSON
		// error payload but the contract treats any non-2xx as failure.
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%s request failed: status %d", endpoint, resp.StatusCode)
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}

	c.logger.Debug("request completed", "endpoint", endpoint)
	return &result, nil
}
