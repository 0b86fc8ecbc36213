// Package gpu controls an existing RunPod pod: start, stop, status, and an
// idle auto-stop armed on every start.
package gpu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"construction-safety-assistant/internal/config"
)

// APIError is a failed or non-success call to the pod-control API.
type APIError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("runpod %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("runpod %s: %v", e.Op, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Client is a minimal pod lifecycle client for one pod id.
type Client struct {
	apiBase    string
	apiKey     string
	podID      string
	httpClient *http.Client
}

func NewClient(rc config.RunpodConfig) *Client {
	return &Client{
		apiBase:    rc.APIBase,
		apiKey:     rc.APIKey,
		podID:      rc.PodID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) StartPod(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "start", http.MethodPost, c.podID+"/start")
}

func (c *Client) StopPod(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "stop", http.MethodPost, c.podID+"/stop")
}

func (c *Client) GetStatus(ctx context.Context) (map[string]any, error) {
	return c.do(ctx, "status", http.MethodGet, c.podID)
}

func (c *Client) do(ctx context.Context, op, method, suffix string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+"/"+suffix, nil)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode}
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &APIError{Op: op, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return data, nil
}
