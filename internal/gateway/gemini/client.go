// Package gemini asks a Gemini model for JSON constrained by a response schema.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var (
	ErrNotConfigured = errors.New("gemini API key is not configured")
	ErrEmptyResponse = errors.New("gemini returned no candidates")
)

// Schema is the OpenAPI subset Gemini accepts for structured output.
type Schema = genai.Schema

// Client wraps the genai models service for one model.
type Client struct {
	models *genai.Models
	model  string
}

// Option adjusts the genai client configuration.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(baseURL string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = baseURL
	}
}

// NewClient creates a Client for model. An empty apiKey yields a client whose
// calls fail with ErrNotConfigured.
func NewClient(ctx context.Context, apiKey, model string, opts ...Option) (*Client, error) {
	c := &Client{model: model}
	if apiKey == "" {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	c.models = client.Models
	return c, nil
}

// GenerateJSON sends prompt and decodes the structured answer into out.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema *Schema, out interface{}) error {
	if c.models == nil {
		return ErrNotConfigured
	}

	resp, err := c.models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return ErrEmptyResponse
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to decode structured output: %w", err)
	}
	return nil
}
