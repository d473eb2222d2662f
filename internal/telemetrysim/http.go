package telemetrysim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/mangacatch/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// getJSON performs a GET request and decodes a JSON body into v.
func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	return json.Unmarshal(body, v)
}

// checkServiceHealth verifies the engine is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking engine health", logger.String("baseURL", config.BaseURL))
	var body map[string]any
	if err := newHTTPClient(config.Timeout).getJSON(ctx, config.BaseURL+"/healthz", &body); err != nil {
		return fmt.Errorf("failed to reach engine: %w", err)
	}
	logger.Get().Info(ctx, "engine is healthy")
	return nil
}

// fetchState reads the engine's latest snapshot.
func fetchState(ctx context.Context, config *Config) (State, error) {
	var s State
	if err := newHTTPClient(config.Timeout).getJSON(ctx, config.BaseURL+"/state", &s); err != nil {
		return State{}, fmt.Errorf("failed to fetch state: %w", err)
	}
	return s, nil
}
