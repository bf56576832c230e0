//go:build liveproviders

package providers_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/storyrelay/relay/generate"
	"github.com/storyrelay/relay/generate/providers"
)

// Live smoke coverage for the SDK-backed adapters. Disabled by default:
// build with -tags liveproviders and set the per-provider key envs.
func TestLiveSmoke(t *testing.T) {
	t.Parallel()

	reg := generate.NewRegistry()
	if err := providers.RegisterDefaults(reg, providers.DefaultConfig()); err != nil {
		t.Fatalf("register defaults: %v", err)
	}

	cases := []struct {
		kind   string
		model  string
		keyEnv string
	}{
		{kind: "gemini", model: "gemini-2.0-flash", keyEnv: "RELAY_GEMINI_API_KEY"},
		{kind: "anthropic", model: "claude-3-5-haiku-latest", keyEnv: "RELAY_ANTHROPIC_API_KEY"},
		{kind: "openai", model: "gpt-4o-mini", keyEnv: "RELAY_OPENAI_API_KEY"},
	}

	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			t.Parallel()

			key := os.Getenv(tc.keyEnv)
			if key == "" {
				t.Skipf("missing %s", tc.keyEnv)
			}

			g, err := reg.Get(tc.kind)
			if err != nil {
				t.Fatal(err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			out, err := g.Generate(ctx, generate.Request{
				Model:        tc.model,
				Context:      "Once upon a time, in a village by the sea,",
				OutputBudget: 64,
				Credential:   key,
			})
			if err != nil {
				t.Fatalf("generate failed: %v", err)
			}
			if out == "" {
				t.Error("expected non-empty continuation")
			}
			t.Logf("%s continued with: %q", tc.kind, out)
		})
	}
}
