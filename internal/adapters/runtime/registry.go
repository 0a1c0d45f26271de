// Package runtime resolves runtime backends by name.
package runtime

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/reference"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
	"github.com/jsamuelsen/go-eager-context/internal/ports"
)

// BackendConfig carries the settings a backend may honor.
type BackendConfig struct {
	// MaxContexts caps live contexts on backends that support a cap.
	MaxContexts int
}

// Factory constructs a backend.
type Factory func(cfg BackendConfig) (ports.Runtime, error)

// builtins holds the backends compiled into this binary. Build-tagged files add to it.
var builtins = map[string]Factory{
	reference.Name: func(cfg BackendConfig) (ports.Runtime, error) {
		return reference.New(reference.Config{MaxContexts: cfg.MaxContexts}), nil
	},
}

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry constructs a registry preloaded with the compiled-in backends.
func NewRegistry() *Registry {
	reg := &Registry{
		factories: make(map[string]Factory, len(builtins)),
	}

	for name, f := range builtins {
		reg.factories[name] = f
	}

	return reg
}

// Register adds a backend factory.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("runtime backend missing name")
	}

	if f == nil {
		return fmt.Errorf("runtime backend %q factory cannot be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("duplicate runtime backend %q", name)
	}

	r.factories[name] = f

	return nil
}

// Open constructs the named backend.
func (r *Registry) Open(name string, cfg BackendConfig) (ports.Runtime, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.NewUnknownBackendError(name, r.Names())
	}

	rt, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening runtime backend %q: %w", name, err)
	}

	return rt, nil
}

// Names returns the registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}
