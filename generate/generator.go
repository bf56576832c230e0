// Package generate defines the uniform text-generation contract that every
// backend adapter implements, and the registry that maps adapter kind
// strings to implementations. The turn engine only ever speaks this
// interface; adding a backend family never touches orchestration code.
package generate

import "context"

// Request carries one generation call. Context is the full accumulated
// story document the model should continue; OutputBudget is the requested
// output size in tokens; Credential is the opaque per-request credential
// for the upstream call.
type Request struct {
	Model        string
	Context      string
	OutputBudget int
	Credential   string
}

// Generator produces a raw continuation for a request. Implementations
// block for the duration of the upstream call and honor ctx cancellation;
// the engine imposes no timeout of its own. Failures are reported through
// the sentinel errors in this package, wrapped with provider detail.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
