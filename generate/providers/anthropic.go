package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/storyrelay/relay/generate"
)

// Anthropic drives the Messages API through the official SDK. The client
// is constructed per call because the API key is request-scoped.
type Anthropic struct{}

// NewAnthropic creates an Anthropic adapter.
func NewAnthropic() *Anthropic {
	return &Anthropic{}
}

func (a *Anthropic) Generate(ctx context.Context, req generate.Request) (string, error) {
	if req.Credential == "" {
		return "", fmt.Errorf("%w: no API key supplied", generate.ErrUnauthorized)
	}

	client := anthropic.NewClient(option.WithAPIKey(req.Credential))

	maxTokens := int64(req.OutputBudget)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: continueInstruction},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Context)),
		},
	})
	if err != nil {
		return "", anthropicError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" && len(msg.Content) == 0 {
		return "", fmt.Errorf("%w: no content blocks returned", generate.ErrMalformedResponse)
	}
	return text, nil
}

func anthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return statusError(apiErr.StatusCode, []byte(apiErr.Error()))
	}
	return transportError(err)
}
