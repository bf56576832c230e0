// Package session holds per-story turn state and the process-wide store of
// live sessions.
package session

import (
	"slices"

	"github.com/storyrelay/relay/core/story"
)

// Session is the unit of state for one collaborative story. Document is the
// full accumulated text; TurnIndex is the next turn number to be produced;
// History records every completed turn in order.
//
// Invariants: Document equals the initial prompt followed by each
// non-empty history entry's text, separated by single spaces, and
// TurnIndex == len(History).
type Session struct {
	ID        string       `json:"id"`
	Document  string       `json:"document"`
	TurnIndex int          `json:"turnIndex"`
	History   []story.Turn `json:"history"`
}

// New creates a Session whose document starts as the initial prompt.
func New(id, initialDocument string) *Session {
	return &Session{
		ID:       id,
		Document: initialDocument,
	}
}

// Append records a completed turn: the text joins the document with a
// single space separator, the turn lands in History, and TurnIndex
// advances by one. Empty text still consumes a turn but leaves the
// document unchanged. Returns the recorded turn.
func (s *Session) Append(contributorID, text string) story.Turn {
	turn := story.Turn{
		Index:         s.TurnIndex,
		ContributorID: contributorID,
		Text:          text,
	}
	s.History = append(s.History, turn)
	switch {
	case text == "":
	case s.Document == "":
		s.Document = text
	default:
		s.Document += " " + text
	}
	s.TurnIndex++
	return turn
}

func (s *Session) clone() *Session {
	c := *s
	c.History = slices.Clone(s.History)
	return &c
}

// Store is the process-wide table of live sessions. Implementations must
// serialize Update and Delete for the same id (an in-flight update and a
// racing delete resolve strictly by commit order) while letting distinct
// ids proceed independently. Sessions have no expiry; the store is valid
// for the process lifetime.
type Store interface {
	// Update runs fn against the session for id, creating the session with
	// initialDocument first if absent. fn receives a private working copy;
	// its mutations commit only when fn returns nil, so a failed turn
	// leaves the stored session untouched. The per-id exclusion is held
	// for the full duration of fn.
	Update(id, initialDocument string, fn func(*Session) error) error

	// Get returns a snapshot of the session for id, or false if absent.
	// Get never waits on an in-flight Update.
	Get(id string) (*Session, bool)

	// Delete removes the session if present and reports whether it
	// existed. Deleting an absent id is not an error.
	Delete(id string) bool
}
