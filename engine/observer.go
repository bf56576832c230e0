package engine

import "github.com/storyrelay/relay/observability"

// Engine event types emitted during turn execution.
const (
	EventTurnStart    observability.EventType = "engine.turn.start"
	EventTurnComplete observability.EventType = "engine.turn.complete"
	EventTurnEmpty    observability.EventType = "engine.turn.empty"
	EventTurnError    observability.EventType = "engine.turn.error"
	EventSessionReset observability.EventType = "engine.session.reset"
	EventArchiveError observability.EventType = "engine.archive.error"
)
