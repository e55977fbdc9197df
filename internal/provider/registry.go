package provider

import "github.com/rs/zerolog/log"

// Registry maps provider names to factories. It is populated once during
// process start-up and read-only thereafter; Names preserves registration
// order for stable CLI listing and deterministic batch execution.
type Registry struct {
	factories map[string]Factory
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name. Registering the same name twice is
// a programming error and fails with a DuplicateProviderError.
func (r *Registry) Register(name string, factory Factory) error {
	if _, exists := r.factories[name]; exists {
		return &DuplicateProviderError{Name: name}
	}
	r.factories[name] = factory
	r.order = append(r.order, name)
	log.Debug().Str("provider", name).Msg("registered provider")
	return nil
}

// Get returns the factory registered under name.
func (r *Registry) Get(name string) (Factory, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, &UnknownProviderError{Name: name}
	}
	return factory, nil
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
