// Copyright (c) 2026 Offerdesk
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai is a minimal OpenAI chat-completions client tuned for
// structured extraction: JSON-object response mode, low temperature, bounded
// output, and retries with backoff on transient failures. Authentication and
// quota errors carry their HTTP status so callers can tell configuration
// problems apart from transient ones.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// DefaultBaseURL is the production OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

const (
	maxRetries          = 3
	initialBackoff      = 500 * time.Millisecond
	maxBackoff          = 15 * time.Second
	defaultTimeout      = 120 * time.Second
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 10 * time.Second

	// Extraction decoding parameters: deterministic-leaning, bounded output.
	temperature     = 0.1
	maxOutputTokens = 2000
)

// Client is an OpenAI API client with connection pooling and retries.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewClient creates a client for the given API key and model. baseURL is
// usually DefaultBaseURL; tests point it at a local server.
func NewClient(apiKey, model, baseURL string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
		},
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Usage reports token consumption for a single completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError is a structured error returned by the OpenAI API.
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai API error %d (%s): %s", e.StatusCode, e.Type, e.Message)
}

// IsAuth reports whether the error indicates bad credentials or permissions
// rather than a transient condition.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage     `json:"usage"`
	Error *APIError `json:"error,omitempty"`
}

// ChatJSON sends a system + user message pair in JSON-object response mode
// and returns the generated text with token usage. Transient failures
// (429, 5xx, network errors) are retried with exponential backoff.
func (c *Client) ChatJSON(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: &responseFormat{Type: "json_object"},
		Temperature:    temperature,
		MaxTokens:      maxOutputTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", Usage{}, ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", Usage{}, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if isRetryableStatus(resp.StatusCode) {
			lastErr = apiErrorFrom(resp.StatusCode, respBody)
			continue
		}

		var result chatResponse
		if err := json.Unmarshal(respBody, &result); err != nil {
			return "", Usage{}, fmt.Errorf("unmarshal response: %w", err)
		}

		if resp.StatusCode != http.StatusOK || result.Error != nil {
			return "", Usage{}, apiErrorFrom(resp.StatusCode, respBody)
		}

		if len(result.Choices) == 0 {
			return "", Usage{}, fmt.Errorf("no choices in completion response")
		}

		return result.Choices[0].Message.Content, result.Usage, nil
	}

	return "", Usage{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// apiErrorFrom decodes the OpenAI error envelope, falling back to the raw
// status when the body is not the expected shape.
func apiErrorFrom(status int, body []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.StatusCode = status
		return envelope.Error
	}
	return &APIError{
		StatusCode: status,
		Type:       "http_error",
		Message:    fmt.Sprintf("HTTP %d", status),
	}
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt-1))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}
