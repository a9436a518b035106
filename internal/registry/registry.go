// Package registry provides the string-keyed constructor lookup that lets an
// experiment name its reward schemes and miner behaviours without the
// simulation setup knowing the concrete types.
package registry

import (
	"fmt"
	"slices"
	"sync"

	"github.com/bardlex/poolsim/pkg/errors"
)

// Registry maps names to constructors of type F.
type Registry[F any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]F
}

// New returns an empty registry; kind names what it holds in error messages.
func New[F any](kind string) *Registry[F] {
	return &Registry[F]{
		kind:    kind,
		entries: make(map[string]F),
	}
}

// Register adds a constructor. Registering a name twice is a programming
// error and panics.
func (r *Registry[F]) Register(name string, ctor F) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("registry: %s %q registered twice", r.kind, name))
	}
	r.entries[name] = ctor
}

// Lookup returns the constructor registered under name.
func (r *Registry[F]) Lookup(name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, ok := r.entries[name]
	if !ok {
		var zero F
		return zero, errors.Config("registry_lookup", "unknown %s %q", r.kind, name).
			WithContext("known", r.namesLocked())
	}
	return ctor, nil
}

// Names returns the registered names in sorted order.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry[F]) namesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
