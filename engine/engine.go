// Package engine implements the turn orchestrator for round-robin
// collaborative writing: it resolves the session, picks the next
// contributor by rotation, runs the generation call, trims seam overlap
// from the result, and commits the cleaned turn — one transactional step
// per advance request.
//
// The engine initializes from configuration via New, creating all
// subsystems internally. Functional options allow test overrides of any
// subsystem.
//
//	eng, err := engine.New(&cfg)
//	result, err := eng.AdvanceTurn(ctx, engine.TurnRequest{...})
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/storyrelay/relay/archive"
	"github.com/storyrelay/relay/core/story"
	"github.com/storyrelay/relay/generate"
	"github.com/storyrelay/relay/generate/providers"
	"github.com/storyrelay/relay/observability"
	"github.com/storyrelay/relay/session"
	"github.com/storyrelay/relay/stitch"
)

// TurnRequest carries one advance request. Contributors is request-scoped
// configuration: the rotation is recomputed from the current list on every
// call, so the pool can change size mid-story. Prompt seeds the document
// only when the session does not exist yet.
type TurnRequest struct {
	SessionID    string
	Contributors []story.Contributor
	Prompt       string
	OutputBudget int
}

// TurnResult is the outcome of one completed turn. TurnIndex is the index
// of the turn just completed.
type TurnResult struct {
	Text          string
	ContributorID string
	TurnIndex     int
}

// Option configures an Engine after config-driven initialization.
type Option func(*Engine)

// WithStore overrides the config-created session store.
func WithStore(s session.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRegistry overrides the config-created generator registry.
func WithRegistry(r *generate.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithArchive overrides the config-created transcript archive.
func WithArchive(a archive.Store) Option {
	return func(e *Engine) { e.archive = a }
}

// WithObserver overrides the config-selected observer.
func WithObserver(o observability.Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithLogger routes engine events to the given slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.observer = observability.NewSlogObserver(l) }
}

// Engine is the turn orchestrator.
type Engine struct {
	store    session.Store
	registry *generate.Registry
	archive  archive.Store
	observer observability.Observer
}

// New creates an Engine from configuration. The session store, provider
// registry, and archive are initialized from their config sections;
// functional options applied afterwards can override any subsystem for
// testing.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	store, err := session.NewStore(&cfg.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}

	arc, err := archive.NewStore(&cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	registry := generate.NewRegistry()
	if err := providers.RegisterDefaults(registry, cfg.Providers); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	observerName := cfg.Observer
	if observerName == "" {
		observerName = defaultObserver
	}
	observer, err := observability.GetObserver(observerName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}

	e := &Engine{
		store:    store,
		registry: registry,
		archive:  arc,
		observer: observer,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Registry returns the engine's generator registry.
func (e *Engine) Registry() *generate.Registry {
	return e.registry
}

// AdvanceTurn executes exactly one turn for a session: contributor
// selection is contributors[turnIndex mod len(contributors)], the full
// accumulated document is the generation context, and the raw output is
// cleaned against the document before it is appended. On success the
// session gains one history entry and its turn index advances by one. On
// generation failure the session is left untouched and the error is
// returned as a *UpstreamError naming the contributor; the engine never
// retries.
//
// The per-session exclusion is held for the duration of the upstream
// call, so concurrent advances for the same session serialize while other
// sessions proceed independently.
func (e *Engine) AdvanceTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if req.SessionID == "" {
		return nil, ErrEmptySessionID
	}
	if len(req.Contributors) == 0 {
		return nil, ErrNoContributors
	}
	if req.OutputBudget <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBudget, req.OutputBudget)
	}
	if req.Prompt == "" {
		if _, exists := e.store.Get(req.SessionID); !exists {
			return nil, ErrMissingPrompt
		}
	}

	var result *TurnResult

	err := e.store.Update(req.SessionID, req.Prompt, func(s *session.Session) error {
		contributor := req.Contributors[s.TurnIndex%len(req.Contributors)]

		e.observer.OnEvent(ctx, observability.Event{
			Type:      EventTurnStart,
			Level:     observability.LevelVerbose,
			Timestamp: time.Now(),
			Source:    "engine.AdvanceTurn",
			Data: map[string]any{
				"session_id":   s.ID,
				"turn_index":   s.TurnIndex,
				"contributor":  contributor.ID,
				"adapter_kind": contributor.AdapterKind,
			},
		})

		gen, err := e.registry.Get(contributor.AdapterKind)
		if err != nil {
			return e.turnError(ctx, s.ID, contributor.ID, err)
		}

		raw, err := gen.Generate(ctx, generate.Request{
			Model:        contributor.Model,
			Context:      s.Document,
			OutputBudget: req.OutputBudget,
			Credential:   contributor.CredentialRef,
		})
		if err != nil {
			return e.turnError(ctx, s.ID, contributor.ID, err)
		}

		cleaned := stitch.Clean(s.Document, raw, contributor.DisplayName)
		if cleaned == "" {
			// Deliberately non-fatal: the turn completes with empty text.
			e.observer.OnEvent(ctx, observability.Event{
				Type:      EventTurnEmpty,
				Level:     observability.LevelWarning,
				Timestamp: time.Now(),
				Source:    "engine.AdvanceTurn",
				Data: map[string]any{
					"session_id":  s.ID,
					"turn_index":  s.TurnIndex,
					"contributor": contributor.ID,
					"raw_length":  len(raw),
				},
			})
		}

		turn := s.Append(contributor.ID, cleaned)
		result = &TurnResult{
			Text:          cleaned,
			ContributorID: contributor.ID,
			TurnIndex:     turn.Index,
		}

		e.observer.OnEvent(ctx, observability.Event{
			Type:      EventTurnComplete,
			Level:     observability.LevelInfo,
			Timestamp: time.Now(),
			Source:    "engine.AdvanceTurn",
			Data: map[string]any{
				"session_id":  s.ID,
				"turn_index":  turn.Index,
				"contributor": contributor.ID,
				"text_length": len(cleaned),
			},
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Reset deletes the session unconditionally; a subsequent AdvanceTurn for
// the same id starts a brand-new session. When an archive is configured
// the outgoing transcript is saved first; an archive failure is observable
// but never blocks the reset.
func (e *Engine) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	if e.archive != nil {
		if snap, ok := e.store.Get(sessionID); ok {
			t := archive.Transcript{
				SessionID:  snap.ID,
				Document:   snap.Document,
				History:    snap.History,
				ArchivedAt: time.Now().UTC(),
			}
			if err := e.archive.Save(ctx, t); err != nil {
				e.observer.OnEvent(ctx, observability.Event{
					Type:      EventArchiveError,
					Level:     observability.LevelWarning,
					Timestamp: time.Now(),
					Source:    "engine.Reset",
					Data: map[string]any{
						"session_id": sessionID,
						"error":      err.Error(),
					},
				})
			}
		}
	}

	existed := e.store.Delete(sessionID)

	e.observer.OnEvent(ctx, observability.Event{
		Type:      EventSessionReset,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "engine.Reset",
		Data: map[string]any{
			"session_id": sessionID,
			"existed":    existed,
		},
	})

	return nil
}

func (e *Engine) turnError(ctx context.Context, sessionID, contributorID string, err error) error {
	e.observer.OnEvent(ctx, observability.Event{
		Type:      EventTurnError,
		Level:     observability.LevelError,
		Timestamp: time.Now(),
		Source:    "engine.AdvanceTurn",
		Data: map[string]any{
			"session_id":  sessionID,
			"contributor": contributorID,
			"error":       err.Error(),
		},
	})
	return &UpstreamError{ContributorID: contributorID, Err: err}
}
