package engine_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/storyrelay/relay/archive"
	"github.com/storyrelay/relay/core/story"
	"github.com/storyrelay/relay/engine"
	"github.com/storyrelay/relay/generate"
	"github.com/storyrelay/relay/observability"
)

// --- Test helpers ---

// scriptedGenerator returns canned outputs on successive calls.
type scriptedGenerator struct {
	mu      sync.Mutex
	outputs []string
	errs    []error
	calls   []generate.Request
}

func (g *scriptedGenerator) Generate(ctx context.Context, req generate.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	i := len(g.calls)
	g.calls = append(g.calls, req)

	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.outputs) {
		return g.outputs[i], nil
	}
	return fmt.Sprintf("output %d", i), nil
}

type captureObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (c *captureObserver) OnEvent(ctx context.Context, event observability.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureObserver) byType(t observability.EventType) []observability.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []observability.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(t *testing.T, gen generate.Generator, opts ...engine.Option) *engine.Engine {
	t.Helper()

	reg := generate.NewRegistry()
	if gen != nil {
		if err := reg.Register("test", gen); err != nil {
			t.Fatal(err)
		}
	}

	cfg := engine.DefaultConfig()
	base := []engine.Option{
		engine.WithRegistry(reg),
		engine.WithObserver(observability.NoOpObserver{}),
	}
	eng, err := engine.New(&cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng
}

func contributors(ids ...string) []story.Contributor {
	out := make([]story.Contributor, len(ids))
	for i, id := range ids {
		out[i] = story.Contributor{
			ID:          id,
			DisplayName: strings.ToUpper(id),
			AdapterKind: "test",
			Model:       id + "-model",
		}
	}
	return out
}

func advance(t *testing.T, eng *engine.Engine, sessionID, prompt string, cs []story.Contributor) *engine.TurnResult {
	t.Helper()
	res, err := eng.AdvanceTurn(context.Background(), engine.TurnRequest{
		SessionID:    sessionID,
		Contributors: cs,
		Prompt:       prompt,
		OutputBudget: 100,
	})
	if err != nil {
		t.Fatalf("advance failed: %v", err)
	}
	return res
}

// --- Validation ---

func TestAdvanceTurn_Validation(t *testing.T) {
	eng := newTestEngine(t, &scriptedGenerator{})
	ctx := context.Background()

	tests := []struct {
		name string
		req  engine.TurnRequest
		want error
	}{
		{
			name: "empty session id",
			req:  engine.TurnRequest{Contributors: contributors("a"), Prompt: "p", OutputBudget: 10},
			want: engine.ErrEmptySessionID,
		},
		{
			name: "no contributors",
			req:  engine.TurnRequest{SessionID: "s", Prompt: "p", OutputBudget: 10},
			want: engine.ErrNoContributors,
		},
		{
			name: "zero budget",
			req:  engine.TurnRequest{SessionID: "s", Contributors: contributors("a"), Prompt: "p"},
			want: engine.ErrInvalidBudget,
		},
		{
			name: "negative budget",
			req:  engine.TurnRequest{SessionID: "s", Contributors: contributors("a"), Prompt: "p", OutputBudget: -5},
			want: engine.ErrInvalidBudget,
		},
		{
			name: "missing prompt for new session",
			req:  engine.TurnRequest{SessionID: "never-seen", Contributors: contributors("a"), OutputBudget: 10},
			want: engine.ErrMissingPrompt,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.AdvanceTurn(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAdvanceTurn_PromptOptionalForExistingSession(t *testing.T) {
	eng := newTestEngine(t, &scriptedGenerator{})
	cs := contributors("a")

	advance(t, eng, "s", "the prompt", cs)

	// Second turn: no prompt needed.
	res, err := eng.AdvanceTurn(context.Background(), engine.TurnRequest{
		SessionID:    "s",
		Contributors: cs,
		OutputBudget: 10,
	})
	if err != nil {
		t.Fatalf("advance without prompt failed: %v", err)
	}
	if res.TurnIndex != 1 {
		t.Errorf("got turn index %d, want 1", res.TurnIndex)
	}
}

// --- Round robin ---

func TestAdvanceTurn_RoundRobin(t *testing.T) {
	eng := newTestEngine(t, &scriptedGenerator{})
	cs := contributors("a", "b", "c")

	for turn := 0; turn < 7; turn++ {
		res := advance(t, eng, "s", "prompt", cs)

		want := cs[turn%len(cs)].ID
		if res.ContributorID != want {
			t.Errorf("turn %d: got contributor %q, want %q", turn, res.ContributorID, want)
		}
		if res.TurnIndex != turn {
			t.Errorf("turn %d: got index %d", turn, res.TurnIndex)
		}
	}
}

func TestAdvanceTurn_RoundRobinWithChangingPool(t *testing.T) {
	eng := newTestEngine(t, &scriptedGenerator{})

	// Turns 0-1 with three contributors.
	three := contributors("a", "b", "c")
	for turn := 0; turn < 2; turn++ {
		res := advance(t, eng, "s", "prompt", three)
		if want := three[turn%3].ID; res.ContributorID != want {
			t.Errorf("turn %d: got %q, want %q", turn, res.ContributorID, want)
		}
	}

	// The pool shrinks to two; selection recomputes from the current list
	// and the current turn index.
	two := contributors("x", "y")
	for turn := 2; turn < 6; turn++ {
		res := advance(t, eng, "s", "", two)
		if want := two[turn%2].ID; res.ContributorID != want {
			t.Errorf("turn %d: got %q, want %q", turn, res.ContributorID, want)
		}
	}
}

// --- Document accumulation ---

func TestAdvanceTurn_DocumentReconstruction(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"the fox ran", "into the woods", "and vanished"}}
	eng := newTestEngine(t, gen)
	cs := contributors("a", "b")

	prompt := "Once upon a time"
	var texts []string
	for i := 0; i < 3; i++ {
		res := advance(t, eng, "s", prompt, cs)
		texts = append(texts, res.Text)
	}

	// The generation context for each call is the document accumulated so
	// far: prompt plus all prior cleaned texts, space-joined.
	want := prompt
	for i, call := range gen.calls {
		if call.Context != want {
			t.Errorf("call %d: got context %q, want %q", i, call.Context, want)
		}
		want += " " + texts[i]
	}
}

func TestAdvanceTurn_ContributorFieldsReachGenerator(t *testing.T) {
	gen := &scriptedGenerator{}
	eng := newTestEngine(t, gen)

	cs := []story.Contributor{{
		ID:            "c1",
		DisplayName:   "Narrator",
		AdapterKind:   "test",
		Model:         "model-9",
		CredentialRef: "secret-key",
	}}
	_, err := eng.AdvanceTurn(context.Background(), engine.TurnRequest{
		SessionID:    "s",
		Contributors: cs,
		Prompt:       "p",
		OutputBudget: 42,
	})
	if err != nil {
		t.Fatal(err)
	}

	call := gen.calls[0]
	if call.Model != "model-9" {
		t.Errorf("got model %q, want %q", call.Model, "model-9")
	}
	if call.Credential != "secret-key" {
		t.Errorf("got credential %q, want %q", call.Credential, "secret-key")
	}
	if call.OutputBudget != 42 {
		t.Errorf("got budget %d, want 42", call.OutputBudget)
	}
}

func TestAdvanceTurn_TrimsEchoedDocument(t *testing.T) {
	prompt := "the cat sat"
	gen := &scriptedGenerator{outputs: []string{"cat sat on the mat"}}
	eng := newTestEngine(t, gen)

	res := advance(t, eng, "s", prompt, contributors("a"))
	if res.Text != "on the mat" {
		t.Errorf("got %q, want overlap trimmed", res.Text)
	}
}

func TestAdvanceTurn_StripsSpeakerLabel(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"A: A: the door creaked open"}}
	eng := newTestEngine(t, gen)

	res := advance(t, eng, "s", "prompt", contributors("a"))
	if res.Text != "the door creaked open" {
		t.Errorf("got %q, want speaker label stripped", res.Text)
	}
}

// --- Failure handling ---

func TestAdvanceTurn_GenerationFailureLeavesSessionUntouched(t *testing.T) {
	upstream := fmt.Errorf("%w: 503", generate.ErrUnavailable)
	gen := &scriptedGenerator{
		outputs: []string{"first turn text", "", "third call text"},
		errs:    []error{nil, upstream, nil},
	}
	eng := newTestEngine(t, gen)
	cs := contributors("a", "b")

	advance(t, eng, "s", "prompt", cs)

	_, err := eng.AdvanceTurn(context.Background(), engine.TurnRequest{
		SessionID:    "s",
		Contributors: cs,
		OutputBudget: 10,
	})
	if err == nil {
		t.Fatal("expected generation failure")
	}

	var upErr *engine.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("got %T, want *engine.UpstreamError", err)
	}
	if upErr.ContributorID != "b" {
		t.Errorf("failure tagged with %q, want %q", upErr.ContributorID, "b")
	}
	if !errors.Is(err, generate.ErrUnavailable) {
		t.Error("sentinel classification lost through UpstreamError")
	}

	// Retry after the transient failure: same contributor is selected
	// again and the turn index advances by exactly one.
	res, err := eng.AdvanceTurn(context.Background(), engine.TurnRequest{
		SessionID:    "s",
		Contributors: cs,
		OutputBudget: 10,
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if res.ContributorID != "b" {
		t.Errorf("retry used %q, want %q", res.ContributorID, "b")
	}
	if res.TurnIndex != 1 {
		t.Errorf("got turn index %d, want 1", res.TurnIndex)
	}
}

func TestAdvanceTurn_UnknownAdapterKind(t *testing.T) {
	eng := newTestEngine(t, nil)

	cs := []story.Contributor{{ID: "c1", AdapterKind: "no-such-kind"}}
	_, err := eng.AdvanceTurn(context.Background(), engine.TurnRequest{
		SessionID:    "s",
		Contributors: cs,
		Prompt:       "p",
		OutputBudget: 10,
	})

	var upErr *engine.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("got %T, want *engine.UpstreamError", err)
	}
	if !errors.Is(err, generate.ErrKindNotFound) {
		t.Errorf("got %v, want ErrKindNotFound", err)
	}

	// Nothing was committed: the next call still needs a prompt.
	_, err = eng.AdvanceTurn(context.Background(), engine.TurnRequest{
		SessionID:    "s",
		Contributors: cs,
		OutputBudget: 10,
	})
	if !errors.Is(err, engine.ErrMissingPrompt) {
		t.Errorf("got %v, want ErrMissingPrompt", err)
	}
}

// --- Empty turns ---

func TestAdvanceTurn_EmptyCleanedTextCompletesTurn(t *testing.T) {
	// The model echoes the document verbatim; everything is trimmed away.
	prompt := "the whole story"
	gen := &scriptedGenerator{outputs: []string{prompt}}
	obs := &captureObserver{}
	eng := newTestEngine(t, gen, engine.WithObserver(obs))

	res := advance(t, eng, "s", prompt, contributors("a"))
	if res.Text != "" {
		t.Errorf("got %q, want empty text", res.Text)
	}
	if res.TurnIndex != 0 {
		t.Errorf("got turn index %d, want 0", res.TurnIndex)
	}

	if got := len(obs.byType(engine.EventTurnEmpty)); got != 1 {
		t.Errorf("got %d empty-turn events, want 1", got)
	}
	if got := len(obs.byType(engine.EventTurnComplete)); got != 1 {
		t.Errorf("got %d complete events, want 1", got)
	}
}

// --- Reset ---

func TestReset_ThenAdvanceStartsFresh(t *testing.T) {
	gen := &scriptedGenerator{}
	eng := newTestEngine(t, gen)
	cs := contributors("a", "b")

	for i := 0; i < 3; i++ {
		advance(t, eng, "s", "old prompt", cs)
	}

	if err := eng.Reset(context.Background(), "s"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	res := advance(t, eng, "s", "new prompt", cs)
	if res.TurnIndex != 0 {
		t.Errorf("got turn index %d, want 0 after reset", res.TurnIndex)
	}
	if res.ContributorID != "a" {
		t.Errorf("got contributor %q, want rotation restarted", res.ContributorID)
	}

	// The post-reset generation context starts from the new prompt.
	last := gen.calls[len(gen.calls)-1]
	if last.Context != "new prompt" {
		t.Errorf("got context %q, want %q", last.Context, "new prompt")
	}
}

func TestReset_UnknownSessionIsNotAnError(t *testing.T) {
	eng := newTestEngine(t, &scriptedGenerator{})

	if err := eng.Reset(context.Background(), "never-existed"); err != nil {
		t.Errorf("reset of unknown session: %v", err)
	}
}

func TestReset_EmptySessionID(t *testing.T) {
	eng := newTestEngine(t, &scriptedGenerator{})

	if err := eng.Reset(context.Background(), ""); !errors.Is(err, engine.ErrEmptySessionID) {
		t.Errorf("got %v, want ErrEmptySessionID", err)
	}
}

func TestReset_ArchivesTranscript(t *testing.T) {
	dir := t.TempDir()
	gen := &scriptedGenerator{outputs: []string{"the fox ran"}}
	eng := newTestEngine(t, gen, engine.WithArchive(archive.NewFileStore(dir)))

	advance(t, eng, "s1", "Once upon a time", contributors("a"))

	if err := eng.Reset(context.Background(), "s1"); err != nil {
		t.Fatal(err)
	}

	saved, err := archive.NewFileStore(dir).Load(context.Background(), "s1")
	if err != nil {
		t.Fatalf("transcript not archived: %v", err)
	}
	if saved.Document != "Once upon a time the fox ran" {
		t.Errorf("got archived document %q", saved.Document)
	}
	if len(saved.History) != 1 {
		t.Errorf("got %d archived turns, want 1", len(saved.History))
	}
}

// --- Concurrency ---

func TestAdvanceTurn_DistinctSessionsIndependent(t *testing.T) {
	block := make(chan struct{})
	slow := generate.Func(func(ctx context.Context, req generate.Request) (string, error) {
		<-block
		return "slow text", nil
	})
	fast := generate.Func(func(ctx context.Context, req generate.Request) (string, error) {
		return "fast text", nil
	})

	reg := generate.NewRegistry()
	if err := reg.Register("slow", slow); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("fast", fast); err != nil {
		t.Fatal(err)
	}

	cfg := engine.DefaultConfig()
	eng, err := engine.New(&cfg, engine.WithRegistry(reg), engine.WithObserver(observability.NoOpObserver{}))
	if err != nil {
		t.Fatal(err)
	}

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		eng.AdvanceTurn(context.Background(), engine.TurnRequest{
			SessionID:    "slow-session",
			Contributors: []story.Contributor{{ID: "s", AdapterKind: "slow"}},
			Prompt:       "p",
			OutputBudget: 10,
		})
	}()

	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		eng.AdvanceTurn(context.Background(), engine.TurnRequest{
			SessionID:    "fast-session",
			Contributors: []story.Contributor{{ID: "f", AdapterKind: "fast"}},
			Prompt:       "p",
			OutputBudget: 10,
		})
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("fast session blocked behind slow session's upstream call")
	}

	close(block)
	<-slowDone
}

func TestAdvanceTurn_SameSessionSerialized(t *testing.T) {
	eng := newTestEngine(t, &scriptedGenerator{})
	cs := contributors("a", "b", "c")

	var g errgroup.Group
	const turns = 30
	for i := 0; i < turns; i++ {
		g.Go(func() error {
			_, err := eng.AdvanceTurn(context.Background(), engine.TurnRequest{
				SessionID:    "shared",
				Contributors: cs,
				Prompt:       "prompt",
				OutputBudget: 10,
			})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	// After n concurrent advances every turn index 0..n-1 was assigned
	// exactly once.
	res := advance(t, eng, "shared", "", cs)
	if res.TurnIndex != turns {
		t.Errorf("got final turn index %d, want %d", res.TurnIndex, turns)
	}
}
