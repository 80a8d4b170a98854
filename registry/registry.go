package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ncecere/batchgen/provider"
)

// Registry is a simple, provider-agnostic registry for batch models.
//
// It maps string model identifiers (for example "facebook/opt-125m")
// to concrete provider implementations, and doubles as a
// provider.ModelLoader so application code can resolve models by name
// without depending on a specific backend package.
type Registry interface {
	provider.ModelLoader

	// Model returns the registered model for the given name.
	// If no such model exists, a *NoSuchModelError is returned.
	Model(name string) (provider.BatchModel, error)

	// Register registers or replaces a model under the given name.
	// Passing a nil model removes any existing registration for that name.
	Register(name string, model provider.BatchModel)

	// Names returns the registered model names in sorted order.
	Names() []string
}

// NoSuchModelError indicates that a requested model name was not
// found in the registry.
type NoSuchModelError struct {
	// Name is the model name that was requested.
	Name string
}

func (e *NoSuchModelError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("registry: no such model %q", e.Name)
}

// InMemoryRegistry is a concurrency-safe in-memory implementation of Registry.
// It is suitable for typical application startup wiring where models are
// registered once and then used throughout the lifetime of the process.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	models map[string]provider.BatchModel
}

// Ensure InMemoryRegistry implements Registry.
var _ Registry = (*InMemoryRegistry)(nil)

// NewInMemoryRegistry creates a new empty in-memory registry.
func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		models: make(map[string]provider.BatchModel),
	}
}

// Model implements Registry.Model.
func (r *InMemoryRegistry) Model(name string) (provider.BatchModel, error) {
	r.mu.RLock()
	model, ok := r.models[name]
	r.mu.RUnlock()
	if !ok || model == nil {
		return nil, &NoSuchModelError{Name: name}
	}
	return model, nil
}

// Load implements provider.ModelLoader. Registered models are already
// resident, so Load only honours cancellation before the lookup.
func (r *InMemoryRegistry) Load(ctx context.Context, id string) (provider.BatchModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Model(id)
}

// Register implements Registry.Register.
func (r *InMemoryRegistry) Register(name string, model provider.BatchModel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if model == nil {
		delete(r.models, name)
		return
	}
	r.models[name] = model
}

// Names implements Registry.Names.
func (r *InMemoryRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
