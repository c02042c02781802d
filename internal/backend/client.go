// Package backend provides the HTTP client for the report backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

// Client talks JSON-over-HTTP to the report backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a backend client. If baseURL is empty, uses the
// NEURAREPORT_BACKEND_URL env var or defaults to localhost:8000.
// Timeout can be configured via NEURAREPORT_CLIENT_TIMEOUT (default 5m,
// discovery over large windows can be slow).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("NEURAREPORT_BACKEND_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	timeout := 5 * time.Minute
	if t := os.Getenv("NEURAREPORT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// do sends one JSON request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, payload, result any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend error: %s - %s", resp.Status, string(raw))
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

// KeyOptions fetches the legal values for a template's filter tokens.
func (c *Client) KeyOptions(ctx context.Context, req KeyOptionsRequest) (*KeyOptionsResponse, error) {
	var resp KeyOptionsResponse
	if err := c.do(ctx, http.MethodPost, "/api/report/keys", req, &resp); err != nil {
		return nil, fmt.Errorf("key options for %s: %w", req.TemplateID, err)
	}
	return &resp, nil
}

// Discover fetches the candidate batches for a template and date range.
func (c *Client) Discover(ctx context.Context, req DiscoveryRequest) (*DiscoveryResponse, error) {
	var resp DiscoveryResponse
	if err := c.do(ctx, http.MethodPost, "/api/report/discover", req, &resp); err != nil {
		return nil, fmt.Errorf("discover %s: %w", req.TemplateID, err)
	}
	return &resp, nil
}

// Run starts generation of one template and returns whichever artifact URLs
// the backend produced.
func (c *Client) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	var resp RunResponse
	if err := c.do(ctx, http.MethodPost, "/api/report/run", req, &resp); err != nil {
		return nil, fmt.Errorf("run %s: %w", req.TemplateID, err)
	}
	return &resp, nil
}

// ListSchedules returns all schedules the backend has stored.
func (c *Client) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	var resp []models.Schedule
	if err := c.do(ctx, http.MethodGet, "/api/schedules", nil, &resp); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return resp, nil
}

// CreateSchedule stores a recurring generation request on the backend.
func (c *Client) CreateSchedule(ctx context.Context, req ScheduleRequest) (*models.Schedule, error) {
	var resp models.Schedule
	if err := c.do(ctx, http.MethodPost, "/api/schedules", req, &resp); err != nil {
		return nil, fmt.Errorf("create schedule %q: %w", req.Name, err)
	}
	return &resp, nil
}

// DeleteSchedule removes a schedule by id.
func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/schedules/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	return nil
}
