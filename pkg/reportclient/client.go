// Package reportclient is a small Go client for the PlanForge API,
// including the polling loops a frontend would run while a report
// generates.
package reportclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the PlanForge API with a bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// New creates a client. baseURL has no trailing slash.
func New(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// CreateReport submits an intake form and returns immediately with the
// queued report.
func (c *Client) CreateReport(ctx context.Context, req *CreateReportRequest) (*CreateReportResponse, error) {
	var result CreateReportResponse
	if err := c.post(ctx, "/api/reports", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStatus reads the report record once.
func (c *Client) GetStatus(ctx context.Context, reportID string) (*ReportStatusResponse, error) {
	var result ReportStatusResponse
	if err := c.get(ctx, fmt.Sprintf("/api/reports/%s/status", reportID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAccess requests a signed artifact URL with the given lifetime in
// seconds.
func (c *Client) GetAccess(ctx context.Context, reportID string, exp int) (*ReportAccessResponse, error) {
	var result ReportAccessResponse
	if err := c.get(ctx, fmt.Sprintf("/api/reports/%s/access?exp=%d", reportID, exp), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

func (c *Client) get(ctx context.Context, endpoint string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	return c.doRequest(req, result)
}

func (c *Client) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Body)
}
