// Package narrator integrates with the upstream perception/narration service.
// The service observes a visual scene and exposes batches of structured event
// descriptions; this package fetches those payload documents and hands them
// to the ingestion engine.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNoPayload is returned when the upstream service has nothing new to
// report (HTTP 204 or an empty body). Pollers treat it as a quiet tick, not a
// failure.
var ErrNoPayload = errors.New("narrator: no payload available")

// ClientConfig configures the narrator client.
type ClientConfig struct {
	// BaseURL is the payload endpoint of the perception service.
	BaseURL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Timeout bounds each fetch. Default: 10 seconds
	Timeout time.Duration
}

// Client fetches payload documents from the perception service. Calls are
// wrapped with circuit breaker protection so a failing upstream gets a
// back-off window.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	breaker *CircuitBreaker
}

// NewClient creates a narrator client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: NewCircuitBreaker(),
	}
}

// FetchPayload retrieves the next raw payload document. It returns
// ErrNoPayload when the upstream has nothing new, and ErrCircuitOpen while
// the breaker is rejecting calls.
func (c *Client) FetchPayload(ctx context.Context) ([]byte, error) {
	result, err := c.breaker.Execute(ctx, func() (any, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	data := result.([]byte)
	// An empty fetch is a success as far as the breaker is concerned; only
	// the caller needs to know there was nothing to ingest.
	if len(data) == 0 {
		return nil, ErrNoPayload
	}
	return data, nil
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("narrator: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("narrator: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("narrator: upstream returned status %d: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("narrator: failed to read response: %w", err)
	}
	return data, nil
}
