package engine

import (
	"errors"
	"fmt"
)

// Invalid-argument errors, rejected before any state mutation or upstream
// call.
var (
	ErrEmptySessionID = errors.New("engine: session id is empty")
	ErrNoContributors = errors.New("engine: contributor list is empty")
	ErrInvalidBudget  = errors.New("engine: output budget must be positive")
	ErrMissingPrompt  = errors.New("engine: prompt required for a new session")
)

// UpstreamError tags a generation failure with the contributor whose turn
// failed. The wrapped error carries the generate sentinel taxonomy, so
// errors.Is classification still works through it.
type UpstreamError struct {
	ContributorID string
	Err           error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("contributor %s: %v", e.ContributorID, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
