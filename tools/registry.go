package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/pollbridge/pollbridge-go/bridge"
)

// Submitter queues a remote operation and returns its future. Implemented by
// *bridge.Bridge.
type Submitter interface {
	Submit(endpoint string, payload json.RawMessage) *bridge.Future
}

// Definition describes one named remote operation.
type Definition struct {
	// Name is the operation name as claimed by the remote client.
	Name string

	// Description documents the operation for catalog listings.
	Description string

	// Validate checks the JSON arguments before submission. A nil Validate
	// accepts any payload.
	Validate func(args json.RawMessage) error
}

// Registry holds tool definitions and dispatches calls through the bridge.
type Registry struct {
	submitter Submitter
	logger    *slog.Logger
	mu        sync.RWMutex
	defs      map[string]Definition
}

// RegistryOption configures the registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry dispatching through submitter.
func NewRegistry(submitter Submitter, opts ...RegistryOption) (*Registry, error) {
	if submitter == nil {
		return nil, fmt.Errorf("submitter cannot be nil")
	}
	r := &Registry{
		submitter: submitter,
		logger:    slog.Default(),
		defs:      make(map[string]Definition),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Register adds a tool definition. Duplicate names are rejected.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// List returns all registered definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Call validates args against the named tool, submits the request, and
// blocks until the remote client answers, the request times out, or ctx is
// done.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	if def.Validate != nil {
		if err := def.Validate(args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}

	r.logger.Debug("dispatching tool call", "tool", name)
	fut := r.submitter.Submit(name, args)
	return fut.Await(ctx)
}
