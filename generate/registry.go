package generate

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps adapter kind strings to Generator implementations.
// Thread-safe for concurrent access.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]Generator),
	}
}

// Register adds a generator under the given adapter kind.
// Returns ErrKindExists if the kind is already registered; use Replace to
// swap an existing adapter.
func (r *Registry) Register(kind string, g Generator) error {
	if kind == "" {
		return ErrEmptyKind
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.generators[kind]; exists {
		return fmt.Errorf("%w: %s", ErrKindExists, kind)
	}

	r.generators[kind] = g
	return nil
}

// Replace swaps the generator for an existing adapter kind.
func (r *Registry) Replace(kind string, g Generator) error {
	if kind == "" {
		return ErrEmptyKind
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.generators[kind]; !exists {
		return fmt.Errorf("%w: %s", ErrKindNotFound, kind)
	}

	r.generators[kind] = g
	return nil
}

// Get retrieves the generator for an adapter kind.
func (r *Registry) Get(kind string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, exists := r.generators[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrKindNotFound, kind)
	}
	return g, nil
}

// Kinds returns all registered adapter kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.generators))
	for kind := range r.generators {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Unregister removes an adapter kind from the registry.
func (r *Registry) Unregister(kind string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.generators[kind]; !exists {
		return fmt.Errorf("%w: %s", ErrKindNotFound, kind)
	}

	delete(r.generators, kind)
	return nil
}
