// Package collector provides the Transport that posts client events to the
// remote collector endpoint as JSON.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flarelabs/flare-go/pkg/flare"
)

// DefaultPath is the fixed collector route client events are posted to.
const DefaultPath = "/api/client-events"

// defaultTimeout bounds a single delivery attempt. There are no retries and
// no follow-up on a late response; delivery is at-most-once.
const defaultTimeout = 10 * time.Second

// Option configures the collector transport.
type Option func(*config)

type config struct {
	client *http.Client
	path   string
}

// WithHTTPClient sets the HTTP client used for delivery.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) {
		if client != nil {
			c.client = client
		}
	}
}

// WithPath overrides the collector route (default: DefaultPath).
func WithPath(path string) Option {
	return func(c *config) {
		if path != "" {
			c.path = path
		}
	}
}

// transport posts JSON payloads to the collector endpoint.
type transport struct {
	client *http.Client
	url    string
}

// NewTransport creates a Transport that POSTs payloads to baseURL joined
// with the collector path.
func NewTransport(baseURL string, opts ...Option) flare.Transport {
	cfg := &config{
		client: &http.Client{Timeout: defaultTimeout},
		path:   DefaultPath,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &transport{
		client: cfg.client,
		url:    strings.TrimRight(baseURL, "/") + cfg.path,
	}
}

// Send posts one payload. Every status is terminal: non-2xx is returned as
// an error for the dispatch loop to swallow, never retried.
func (t *transport) Send(ctx context.Context, payload flare.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	// No response body is required; drain whatever came back so the
	// connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}
