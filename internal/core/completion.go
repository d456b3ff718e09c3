package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gwi.com/traegpt/internal/config"
)

// ChatMessage is the {role, content} pair sent to completion providers.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the assistant reply for a full message list (system prompt first).
type Completer interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}

// TogetherClient talks to an OpenAI-compatible chat completions endpoint.
type TogetherClient struct {
	apiKey      string
	url         string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	httpClient  *http.Client
}

func NewTogetherClient(apiKey, url, model string, timeout time.Duration) *TogetherClient {
	return &TogetherClient{
		apiKey:      apiKey,
		url:         url,
		model:       model,
		maxTokens:   config.DefaultMaxTokens,
		temperature: config.DefaultTemperature,
		timeout:     timeout,
		httpClient:  &http.Client{},
	}
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Raw posts messages and returns the provider's JSON body untouched.
func (c *TogetherClient) Raw(ctx context.Context, messages []ChatMessage) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("TogetherAI API key: %w", ErrNotConfigured)
	}

	payload, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTimeout(ctx, fmt.Errorf("chat request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTimeout(ctx, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Op: "TogetherAI", Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func (c *TogetherClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	body, err := c.Raw(ctx, messages)
	if err != nil {
		return "", err
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
