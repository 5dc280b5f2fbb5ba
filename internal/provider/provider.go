// Package provider defines the Summarizer capability contract (spec.md §6)
// and a small registry of concrete adapters, mirroring the teacher's
// ParserRegistry (internal/parser): GetParser/RegisterParser generalized to
// GetProvider/Register.
package provider

import (
	"context"
	"fmt"
	"sync"
)

// Summarizer is the opaque provider contract. Concrete implementations live
// outside the core per spec.md §1; this package only defines the seam and
// two reference adapters (local model server, remote hosted service).
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	Health(ctx context.Context) (bool, error)
	Name() string
}

// Factory builds a Summarizer from a raw config map (model id, endpoint,
// timeout, api key, etc).
type Factory func(cfg map[string]string) (Summarizer, error)

// Registry selects a concrete Summarizer by name ("ollama", "openai", ...),
// configuration-driven per spec.md §6.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named provider factory.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Build instantiates the named provider with the given config.
func (r *Registry) Build(name string, cfg map[string]string) (Summarizer, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider: unknown provider %q", name)
	}
	return factory(cfg)
}

// Names returns the registered provider names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry returns a registry pre-populated with the "ollama" and
// "openai" adapters, matching the `aiProvider` config values spec.md §6
// names explicitly.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("ollama", func(cfg map[string]string) (Summarizer, error) {
		return NewOllamaProvider(OllamaConfig{
			BaseURL: cfg["baseUrl"],
			Model:   cfg["model"],
		}), nil
	})
	r.Register("openai", func(cfg map[string]string) (Summarizer, error) {
		return NewOpenAIProvider(OpenAIConfig{
			APIKey: cfg["apiKey"],
			Model:  cfg["model"],
		}), nil
	})
	return r
}
