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
)

// PaymentGateway defines the interface for payment gateway operations.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, receipt string) (*GatewayOrder, error)
	IsConfigured() bool
}

// GatewayOrder is the order descriptor the gateway returns.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
	Status   string `json:"status,omitempty"`
}

// PaymentClient talks to the Razorpay-compatible orders API using basic
// auth with the key pair.
type PaymentClient struct {
	httpClient *http.Client
	baseURL    string
	keyID      string
	keySecret  string
	currency   string
}

// NewPaymentClient creates a payment gateway client. Both key halves are
// required.
func NewPaymentClient(cfg *config.PaymentConfig) (*PaymentClient, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("payment gateway credentials are required")
	}

	return &PaymentClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.BaseURL,
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		currency:   cfg.Currency,
	}, nil
}

// CreateOrder creates a gateway order for the given amount (smallest
// currency unit).
func (c *PaymentClient) CreateOrder(ctx context.Context, amount int64, receipt string) (*GatewayOrder, error) {
	body := map[string]interface{}{
		"amount":   amount,
		"currency": c.currency,
		"receipt":  receipt,
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	log.Printf("[Payment] → POST %s/v1/orders (amount=%d)", c.baseURL, amount)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	log.Printf("[Payment] ← %d POST /v1/orders", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment gateway error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var order GatewayOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}

	return &order, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *PaymentClient) IsConfigured() bool {
	return c.keyID != "" && c.keySecret != ""
}

// KeyID exposes the public key half for checkout clients.
func (c *PaymentClient) KeyID() string {
	return c.keyID
}
