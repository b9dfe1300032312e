// Package delivery fans manifest notices out to the front-ends that tell a
// device or a person that their blurts changed.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Notice reports that the manifest of a user was republished.
type Notice struct {
	Kind     string `json:"type"`
	UserID   string `json:"user_id"`
	SignalID string `json:"signal_id"`
	Count    int    `json:"count"`
	Path     string `json:"path,omitempty"`
}

// KindManifestUpdated is the only notice kind sent today.
const KindManifestUpdated = "manifest_updated"

// Handler delivers a notice through one sink.
type Handler func(ctx context.Context, n Notice) error

// Registry routes notices to every registered sink.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a sink under name, replacing any sink of the same name.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Sinks returns the registered sink names, sorted.
func (r *Registry) Sinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deliver sends n through the named sink only.
func (r *Registry) Deliver(ctx context.Context, name string, n Notice) error {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no delivery handler named %s", name)
	}
	return handler(ctx, n)
}

// Notify sends n through every sink. One failing sink does not stop the
// others; failures are joined.
func (r *Registry) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, name := range r.Sinks() {
		if err := r.Deliver(ctx, name, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
