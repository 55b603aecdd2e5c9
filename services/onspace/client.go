// Package onspace is a client for the OnSpace AI gateway, an OpenAI-compatible
// chat-completions service used for exam grading.
package onspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultModel is the grading model requested from the gateway
	DefaultModel = "google/gemini-3-flash-preview"
	// DefaultTimeout is longer for LLM inference requests
	DefaultTimeout = 120 * time.Second
	// DefaultTemperature keeps grading output near-deterministic
	DefaultTemperature = 0.3
	// DefaultMaxRetries bounds retry attempts for transient upstream failures
	DefaultMaxRetries = 2
)

// ErrNotConfigured is returned when the gateway endpoint or credential is
// missing. It is checked before any network call is attempted.
var ErrNotConfigured = errors.New("AI service not configured")

// UpstreamError carries the status and body of a failed gateway call for
// diagnostics.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("AI gateway error: %s", e.Body)
	}
	return fmt.Sprintf("AI gateway error (status %d): %s", e.StatusCode, e.Body)
}

// retryable reports whether the failure is worth another attempt:
// transport-level errors, 429 and 5xx. Other 4xx are terminal.
func (e *UpstreamError) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Config holds configuration for the OnSpace client
type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client handles chat-completion calls to the OnSpace AI gateway
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	maxRetries int
}

// NewClient creates a new OnSpace AI client
func NewClient(config Config) *Client {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	} else if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}

	return &Client{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		maxRetries: config.MaxRetries,
	}
}

// Message represents a message in the chat completion request
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatRequest is the OpenAI-compatible chat completion request
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Choice represents a choice in the chat completion response
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse is the chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Configured reports whether endpoint and credential are both present
func (c *Client) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Evaluate sends the grading system and user prompts to the gateway and
// returns the first generated message's text. Transient upstream failures
// (transport errors, 429, 5xx) are retried with exponential backoff up to
// the configured retry budget; other 4xx fail immediately.
func (c *Client) Evaluate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	req := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: DefaultTemperature,
	}

	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		text, err := c.sendChatCompletion(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var upstream *UpstreamError
		if !errors.As(err, &upstream) || !upstream.retryable() {
			return "", err
		}
	}

	return "", lastErr
}

// sendChatCompletion performs one gateway request
func (c *Client) sendChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &UpstreamError{Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: "failed to read response body: " + err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result ChatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}

	// An unexpected shape (no choices, empty message) is an upstream error,
	// not an indexing failure for the caller to trip over.
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: "no choices returned"}
	}

	return result.Choices[0].Message.Content, nil
}
