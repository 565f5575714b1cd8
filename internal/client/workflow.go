package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/planforge/api/internal/config"
	"github.com/planforge/api/internal/model"
)

// WorkflowDispatcher defines the interface for invoking the external
// generation workflow.
type WorkflowDispatcher interface {
	Dispatch(ctx context.Context, payload *model.DispatchPayload) error
	IsConfigured() bool
}

// WorkflowClient posts generation requests to the external automation
// workflow. The workflow answers out of band via the callback endpoint, so
// a 2xx here only means the job was accepted.
type WorkflowClient struct {
	httpClient  *http.Client
	webhookURL  string
	callbackURL string
}

// NewWorkflowClient creates a workflow client. The webhook URL is required;
// dispatch cannot operate without it.
func NewWorkflowClient(cfg *config.WorkflowConfig) (*WorkflowClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("workflow webhook URL is required")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &WorkflowClient{
		httpClient:  &http.Client{Timeout: timeout},
		webhookURL:  cfg.URL,
		callbackURL: cfg.CallbackURL,
	}, nil
}

// Dispatch sends the generation request. Any transport error or non-2xx
// status is returned to the caller, which records it on the report row.
func (c *WorkflowClient) Dispatch(ctx context.Context, payload *model.DispatchPayload) error {
	if payload.CallbackURL == "" {
		payload.CallbackURL = c.callbackURL
	}

	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[Workflow] → POST %s (report=%s)", c.webhookURL, payload.ReportID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Workflow] ✗ report=%s — request failed: %v", payload.ReportID, err)
		return fmt.Errorf("failed to reach generation workflow: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read workflow response: %w", err)
	}

	log.Printf("[Workflow] ← %d (report=%s)", resp.StatusCode, payload.ReportID)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("workflow error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *WorkflowClient) IsConfigured() bool {
	return c.webhookURL != ""
}
