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

// WorkersAI drives the Cloudflare Workers AI run endpoint
// (/accounts/{account}/ai/run/{model}).
type WorkersAI struct {
	baseURL    string
	accountID  string
	httpClient *http.Client
}

// NewWorkersAI creates a Workers AI adapter. The Cloudflare account id
// comes from configuration; the API token arrives per request.
func NewWorkersAI(cfg Config) *WorkersAI {
	base := cfg.WorkersAIBaseURL
	if base == "" {
		base = DefaultConfig().WorkersAIBaseURL
	}
	return &WorkersAI{
		baseURL:    strings.TrimRight(base, "/"),
		accountID:  cfg.WorkersAIAccountID,
		httpClient: &http.Client{Timeout: cfg.timeout()},
	}
}

type workersAIRequest struct {
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type workersAIResponse struct {
	Result struct {
		Response string `json:"response"`
	} `json:"result"`
	Success bool `json:"success"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *WorkersAI) Generate(ctx context.Context, req generate.Request) (string, error) {
	if req.Credential == "" {
		return "", fmt.Errorf("%w: no API token supplied", generate.ErrUnauthorized)
	}
	if c.accountID == "" {
		return "", fmt.Errorf("%w: workers-ai account id not configured", generate.ErrRejected)
	}

	ctx, cancel := callContext(ctx, c.httpClient.Timeout)
	defer cancel()

	body, err := json.Marshal(workersAIRequest{
		Messages: []openAIMessage{
			{Role: "system", Content: continueInstruction},
			{Role: "user", Content: req.Context},
		},
		MaxTokens: req.OutputBudget,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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

	var parsed workersAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", generate.ErrMalformedResponse, err)
	}
	if !parsed.Success {
		msg := "request unsuccessful"
		if len(parsed.Errors) > 0 {
			msg = parsed.Errors[0].Message
		}
		return "", fmt.Errorf("%w: %s", generate.ErrRejected, msg)
	}
	if parsed.Result.Response == "" {
		return "", fmt.Errorf("%w: empty response field", generate.ErrMalformedResponse)
	}

	return strings.TrimSpace(parsed.Result.Response), nil
}
