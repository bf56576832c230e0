package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/storyrelay/relay/generate"
)

// Gemini drives Google's Gemini API through the genai SDK. The client is
// constructed per call because the API key is request-scoped.
type Gemini struct{}

// NewGemini creates a Gemini adapter.
func NewGemini() *Gemini {
	return &Gemini{}
}

func (g *Gemini) Generate(ctx context.Context, req generate.Request) (string, error) {
	if req.Credential == "" {
		return "", fmt.Errorf("%w: no API key supplied", generate.ErrUnauthorized)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: req.Credential,
	})
	if err != nil {
		return "", fmt.Errorf("%w: create client: %v", generate.ErrUnavailable, err)
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(continueInstruction, genai.RoleUser),
	}
	if req.OutputBudget > 0 {
		cfg.MaxOutputTokens = int32(req.OutputBudget)
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Context), cfg)
	if err != nil {
		return "", geminiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" && len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates returned", generate.ErrMalformedResponse)
	}
	return text, nil
}

func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.Code, []byte(apiErr.Message))
	}
	return transportError(err)
}
