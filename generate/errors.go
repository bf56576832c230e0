package generate

import "errors"

// Failure taxonomy for upstream generation calls. Adapters wrap these
// sentinels with provider-specific detail so callers can classify failures
// with errors.Is regardless of backend family.
var (
	// ErrUnauthorized signals a rejected or missing credential.
	ErrUnauthorized = errors.New("generate: unauthorized")
	// ErrUnavailable signals the upstream service could not be reached or
	// returned a server-side failure.
	ErrUnavailable = errors.New("generate: upstream unavailable")
	// ErrRejected signals the upstream accepted the connection but refused
	// the request (rate limit, bad model name, content policy).
	ErrRejected = errors.New("generate: upstream rejected request")
	// ErrTimeout signals the call exceeded a deadline.
	ErrTimeout = errors.New("generate: timeout")
	// ErrMalformedResponse signals a well-formed HTTP success from which no
	// text could be extracted.
	ErrMalformedResponse = errors.New("generate: malformed upstream response")

	// ErrKindNotFound is returned by the registry for an unknown adapter kind.
	ErrKindNotFound = errors.New("generate: adapter kind not registered")
	// ErrKindExists is returned when registering a duplicate adapter kind.
	ErrKindExists = errors.New("generate: adapter kind already registered")
	// ErrEmptyKind is returned when an adapter kind name is empty.
	ErrEmptyKind = errors.New("generate: adapter kind is empty")
)
