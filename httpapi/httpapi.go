// Package httpapi exposes the turn engine over a small JSON HTTP surface:
// one POST endpoint that advances a turn or resets a session, and a health
// probe. The wire shapes are the engine's own story types; the handler adds
// nothing but decoding, status mapping, and request-scoped logging.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/storyrelay/relay/core/story"
	"github.com/storyrelay/relay/engine"
	"github.com/storyrelay/relay/generate"
)

// maxRequestBodySize bounds a turn request. Contributor lists and prompts
// are small; anything past this is a client error.
const maxRequestBodySize = 1 * 1024 * 1024

// unknownContributor is reported when a failure cannot be attributed to a
// specific contributor.
const unknownContributor = "unknown"

// TurnRequest is the body of a POST /v1/turn call. When Reset is true all
// other fields except SessionID are ignored.
type TurnRequest struct {
	SessionID    string              `json:"sessionId"`
	Reset        bool                `json:"reset,omitempty"`
	Contributors []story.Contributor `json:"contributors,omitempty"`
	Prompt       string              `json:"prompt,omitempty"`
	OutputBudget int                 `json:"outputBudget,omitempty"`
}

// TurnResponse is the success body for an advance.
type TurnResponse struct {
	CleanedText   string `json:"cleanedText"`
	ContributorID string `json:"contributorId"`
	TurnIndex     int    `json:"turnIndex"`
}

// ResetResponse is the success body for a reset.
type ResetResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error         string `json:"error"`
	ContributorID string `json:"contributorId"`
}

// Handler serves the engine over HTTP. Construct with NewHandler; the zero
// value is not usable.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
	mux    *http.ServeMux
}

// NewHandler creates a Handler for the given engine. A nil logger falls
// back to slog.Default.
func NewHandler(eng *engine.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		engine: eng,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /v1/turn", h.handleTurn)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, `{"status":"ok"}`)
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	logger := h.logger.With("request_id", requestID)

	var req TurnRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		logger.Warn("turn request rejected", "reason", "malformed body", "error", err)
		writeError(w, http.StatusBadRequest, "malformed request body", unknownContributor)
		return
	}

	if req.Reset {
		h.handleReset(w, r, logger, req.SessionID)
		return
	}

	result, err := h.engine.AdvanceTurn(r.Context(), engine.TurnRequest{
		SessionID:    req.SessionID,
		Contributors: req.Contributors,
		Prompt:       req.Prompt,
		OutputBudget: req.OutputBudget,
	})
	if err != nil {
		status, contributorID := classify(err)
		logger.Warn("turn failed",
			"session_id", req.SessionID,
			"contributor", contributorID,
			"status", status,
			"error", err,
		)
		writeError(w, status, err.Error(), contributorID)
		return
	}

	logger.Info("turn complete",
		"session_id", req.SessionID,
		"contributor", result.ContributorID,
		"turn_index", result.TurnIndex,
		"text_length", len(result.Text),
	)
	writeJSON(w, http.StatusOK, TurnResponse{
		CleanedText:   result.Text,
		ContributorID: result.ContributorID,
		TurnIndex:     result.TurnIndex,
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request, logger *slog.Logger, sessionID string) {
	if err := h.engine.Reset(r.Context(), sessionID); err != nil {
		status, _ := classify(err)
		logger.Warn("reset failed", "session_id", sessionID, "error", err)
		writeError(w, status, err.Error(), unknownContributor)
		return
	}

	logger.Info("session reset", "session_id", sessionID)
	writeJSON(w, http.StatusOK, ResetResponse{Success: true})
}

// classify maps an engine error to an HTTP status and the contributor to
// report. Validation failures are the caller's fault; upstream failures
// carry the contributor that failed and map by generation sentinel.
func classify(err error) (status int, contributorID string) {
	contributorID = unknownContributor

	var upstream *engine.UpstreamError
	if errors.As(err, &upstream) {
		contributorID = upstream.ContributorID
		switch {
		case errors.Is(err, generate.ErrUnauthorized):
			return http.StatusUnauthorized, contributorID
		case errors.Is(err, generate.ErrTimeout):
			return http.StatusGatewayTimeout, contributorID
		default:
			return http.StatusBadGateway, contributorID
		}
	}

	switch {
	case errors.Is(err, engine.ErrEmptySessionID),
		errors.Is(err, engine.ErrNoContributors),
		errors.Is(err, engine.ErrInvalidBudget),
		errors.Is(err, engine.ErrMissingPrompt):
		return http.StatusBadRequest, contributorID
	}

	return http.StatusInternalServerError, contributorID
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, contributorID string) {
	writeJSON(w, status, ErrorResponse{Error: message, ContributorID: contributorID})
}
