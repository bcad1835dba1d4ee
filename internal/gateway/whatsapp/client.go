// Package whatsapp is a client for the token-authenticated WhatsApp HTTP gateway.
package whatsapp

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
	"unicode"
)

const (
	statusEndpoint  = "/instance/status"
	connectEndpoint = "/instance/connect"
	sendEndpoint    = "/send/text"
)

// StatusConnected is the instance state once the phone is paired.
const StatusConnected = "connected"

var (
	ErrNotConfigured = errors.New("whatsapp gateway is not configured")
	ErrInvalidPhone  = errors.New("invalid phone number")
	ErrGateway       = errors.New("whatsapp gateway error")
)

// APIError carries the gateway's HTTP status and body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp gateway returned HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return ErrGateway }

// InstanceStatus describes the paired instance.
type InstanceStatus struct {
	Status string `json:"status"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// Connected reports whether the instance can send.
func (s InstanceStatus) Connected() bool {
	return strings.EqualFold(s.Status, StatusConnected)
}

// Client calls the gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// NormalizePhone strips everything but digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Client) call(ctx context.Context, method, path, token string, in, out interface{}) error {
	if c.baseURL == "" || token == "" {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.Header.Set("token", token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read whatsapp response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: invalid response format: %v", ErrGateway, err)
	}
	return nil
}

// InstanceStatus returns the pairing state of the instance behind token.
func (c *Client) InstanceStatus(ctx context.Context, token string) (*InstanceStatus, error) {
	var out struct {
		Instance InstanceStatus `json:"instance"`
	}
	if err := c.call(ctx, http.MethodGet, statusEndpoint, token, nil, &out); err != nil {
		return nil, err
	}
	return &out.Instance, nil
}

// Connect starts pairing and returns the QR code to scan.
func (c *Client) Connect(ctx context.Context, token string) (string, error) {
	var out struct {
		QRCode   string `json:"qrcode"`
		Instance struct {
			QRCode string `json:"qrcode"`
		} `json:"instance"`
	}
	if err := c.call(ctx, http.MethodPost, connectEndpoint, token, map[string]string{}, &out); err != nil {
		return "", err
	}
	if out.QRCode != "" {
		return out.QRCode, nil
	}
	return out.Instance.QRCode, nil
}

// SendMessage sends a text message to phone.
func (c *Client) SendMessage(ctx context.Context, token, phone, text string) error {
	number := NormalizePhone(phone)
	if len(number) < 10 {
		return fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}
	return c.call(ctx, http.MethodPost, sendEndpoint, token, map[string]string{
		"number": number,
		"text":   text,
	}, nil)
}
