package processor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/dataprocessor/errors"
)

// Registry maps format names to descriptors whose result type is chosen at
// run time.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Descriptor[any]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Descriptor[any])}
}

// DefaultRegistry returns a registry with the built-in formats:
// raw, string, json and yaml.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("raw", Erase(Raw()))
	_ = r.Register("string", Erase(String(func() *Text { return &Text{} })))
	_ = r.Register("json", Erase(JSON[any]()))
	_ = r.Register("yaml", Erase(YAML[any]()))
	return r
}

// Register adds a named descriptor. Names are unique.
func (r *Registry) Register(name string, d Descriptor[any]) error {
	if name == "" || !d.Valid() {
		return errors.WrapInvalid(errors.ErrInvalidArgument, "Registry", "Register",
			fmt.Sprintf("register format %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formats[name]; exists {
		return errors.WrapInvalid(fmt.Errorf("%w: format %q already registered", errors.ErrInvalidArgument, name),
			"Registry", "Register", "register format")
	}
	r.formats[name] = d
	return nil
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor[any], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.formats[name]
	if !ok {
		return Descriptor[any]{}, errors.WrapInvalid(
			fmt.Errorf("%w: unknown format %q", errors.ErrInvalidArgument, name),
			"Registry", "Lookup", "find format")
	}
	return d, nil
}

// Names returns the registered format names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
