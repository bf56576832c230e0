package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/storyrelay/relay/generate"
)

// OpenAICompat drives any chat/completions-compatible endpoint: OpenAI
// itself, OpenRouter, and the many gateways that mimic the same payload.
type OpenAICompat struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenAICompat creates an adapter for an OpenAI-compatible endpoint.
func NewOpenAICompat(cfg Config) *OpenAICompat {
	base := cfg.OpenAIBaseURL
	if base == "" {
		base = DefaultConfig().OpenAIBaseURL
	}
	return &OpenAICompat{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: cfg.timeout()},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAICompat) Generate(ctx context.Context, req generate.Request) (string, error) {
	if req.Credential == "" {
		return "", fmt.Errorf("%w: no API key supplied", generate.ErrUnauthorized)
	}

	ctx, cancel := callContext(ctx, c.httpClient.Timeout)
	defer cancel()

	body, err := json.Marshal(openAIRequest{
		Model: req.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: continueInstruction},
			{Role: "user", Content: req.Context},
		},
		MaxTokens: req.OutputBudget,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, respBody)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", generate.ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s", generate.ErrRejected, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", generate.ErrMalformedResponse)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
