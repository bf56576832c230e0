// Package archive persists finished story transcripts. The engine saves a
// session's transcript when the session is reset, so a completed story
// survives even though live session state is strictly in-process.
package archive

import (
	"context"
	"errors"
	"time"

	"github.com/storyrelay/relay/core/story"
)

// Transcript is the durable record of one completed story.
type Transcript struct {
	SessionID  string       `json:"sessionId"`
	Document   string       `json:"document"`
	History    []story.Turn `json:"history"`
	ArchivedAt time.Time    `json:"archivedAt"`
}

// Store persists transcripts keyed by session id. Saving the same id again
// overwrites the previous transcript.
type Store interface {
	// Save persists a transcript, creating or overwriting as needed.
	Save(ctx context.Context, t Transcript) error
	// Load retrieves the transcript for a session id.
	Load(ctx context.Context, sessionID string) (Transcript, error)
	// List returns the session ids of all archived transcripts.
	List(ctx context.Context) ([]string, error)
}

// Sentinel errors for archive operations.
var (
	ErrNotFound   = errors.New("archive: transcript not found")
	ErrSaveFailed = errors.New("archive: save failed")
	ErrLoadFailed = errors.New("archive: load failed")
)
