// Package pix is a client for the PushinPay PIX cash-in API.
package pix

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL   = "https://api.pushinpay.com.br"
	cashInEndpoint   = "/api/pix/cashIn"
	transactionsPath = "/api/transactions/"
)

// Provider transaction statuses.
const (
	StatusCreated = "created"
	StatusPaid    = "paid"
	StatusExpired = "expired"
)

var (
	// ErrNotConfigured is returned when no bearer token is available.
	ErrNotConfigured = errors.New("pix provider token is not configured")
	// ErrGateway wraps every non-2xx provider response.
	ErrGateway = errors.New("pix gateway error")
)

// APIError carries the provider's HTTP status and body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pix gateway returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return ErrGateway }

// Charge is a created PIX cash-in.
type Charge struct {
	ID           string `json:"id"`
	QRCode       string `json:"qr_code"`
	QRCodeBase64 string `json:"qr_code_base64"`
	Status       string `json:"status"`
	Value        int64  `json:"value"`
}

// Client talks to the provider over HTTPS.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) do(req *http.Request, token string, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read pix response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: invalid response format: %v", ErrGateway, err)
	}
	return nil
}

// CreateCharge requests a cash-in of valueCents minor units.
func (c *Client) CreateCharge(ctx context.Context, token string, valueCents int64) (*Charge, error) {
	if token == "" {
		return nil, ErrNotConfigured
	}
	if valueCents <= 0 {
		return nil, fmt.Errorf("charge value must be positive, got %d", valueCents)
	}

	payload, err := json.Marshal(map[string]int64{"value": valueCents})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+cashInEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create cash-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", uuid.NewString())

	var charge Charge
	if err := c.do(req, token, &charge); err != nil {
		return nil, err
	}
	if charge.ID == "" {
		return nil, fmt.Errorf("%w: response without transaction id", ErrGateway)
	}
	return &charge, nil
}

// GetStatus returns the provider status of a transaction, e.g. "paid".
func (c *Client) GetStatus(ctx context.Context, token, transactionID string) (string, error) {
	if token == "" {
		return "", ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+transactionsPath+transactionID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create status request: %w", err)
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(req, token, &out); err != nil {
		return "", err
	}
	return strings.ToLower(out.Status), nil
}
