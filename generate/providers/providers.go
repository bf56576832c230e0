// Package providers implements the generate.Generator contract for each
// supported backend family. OpenAI-compatible and Cloudflare Workers AI
// endpoints are driven over plain HTTP; Gemini and Anthropic go through
// their official SDKs. All adapters map upstream failures onto the
// generate sentinel taxonomy so the engine never sees a provider-specific
// error shape.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/storyrelay/relay/generate"
)

// continueInstruction is the system prompt sent with every generation
// call. Continuation quality varies by model; the overlap trimmer catches
// the ones that restate the document anyway.
const continueInstruction = "You are one writer in a round-robin collaborative story. " +
	"Continue the story naturally from exactly where it leaves off. " +
	"Do not repeat, summarize, or restate any of the existing text."

const defaultTimeout = 2 * time.Minute

// Config holds provider adapter initialization parameters.
type Config struct {
	OpenAIBaseURL    string `json:"openai_base_url,omitempty"`
	WorkersAIBaseURL string `json:"workersai_base_url,omitempty"`
	// WorkersAIAccountID is the Cloudflare account the run endpoint is
	// scoped to.
	WorkersAIAccountID string `json:"workersai_account_id,omitempty"`
	// TimeoutSeconds bounds each upstream HTTP call. Zero means the
	// default of two minutes.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// DefaultConfig returns a Config with production endpoint defaults.
func DefaultConfig() Config {
	return Config{
		OpenAIBaseURL:    "https://api.openai.com/v1",
		WorkersAIBaseURL: "https://api.cloudflare.com/client/v4",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.OpenAIBaseURL != "" {
		c.OpenAIBaseURL = source.OpenAIBaseURL
	}
	if source.WorkersAIBaseURL != "" {
		c.WorkersAIBaseURL = source.WorkersAIBaseURL
	}
	if source.WorkersAIAccountID != "" {
		c.WorkersAIAccountID = source.WorkersAIAccountID
	}
	if source.TimeoutSeconds > 0 {
		c.TimeoutSeconds = source.TimeoutSeconds
	}
}

func (c *Config) timeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultTimeout
}

// RegisterDefaults wires the full adapter family into a registry under
// their canonical kind strings.
func RegisterDefaults(reg *generate.Registry, cfg Config) error {
	adapters := map[string]generate.Generator{
		"openai":     NewOpenAICompat(cfg),
		"workers-ai": NewWorkersAI(cfg),
		"gemini":     NewGemini(),
		"anthropic":  NewAnthropic(),
	}
	for kind, g := range adapters {
		if err := reg.Register(kind, g); err != nil {
			return fmt.Errorf("register %s adapter: %w", kind, err)
		}
	}
	return nil
}

// statusError maps a non-2xx upstream status onto the sentinel taxonomy.
func statusError(status int, body []byte) error {
	detail := string(body)
	if len(detail) > 512 {
		detail = detail[:512]
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", generate.ErrUnauthorized, status, detail)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", generate.ErrTimeout, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", generate.ErrUnavailable, status, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", generate.ErrRejected, status, detail)
	}
}

// transportError maps a failed round trip onto the sentinel taxonomy.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generate.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", generate.ErrUnavailable, err)
}

// callContext applies the adapter timeout when the caller set no deadline.
func callContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
