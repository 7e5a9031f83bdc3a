package provider

import (
	"fmt"
	"sync"

	"github.com/relish-io/relish/providers/aws"
	"github.com/relish-io/relish/providers/docker"
	"github.com/relish-io/relish/providers/memory"
)

// Registry manages the lifecycle of provider adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Load initializes and registers a built-in adapter. Loading an already
// registered adapter is a no-op.
func (r *Registry) Load(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; exists {
		return nil
	}

	var a Adapter
	switch name {
	case "aws":
		a = aws.New()
	case "docker":
		a = docker.New()
	case "memory":
		a = memory.New()
	default:
		return fmt.Errorf("unknown provider: %s", name)
	}

	r.adapters[name] = a
	return nil
}

// Register adds an adapter under a name, replacing any existing one. Tests
// use this to install instrumented adapters.
func (r *Registry) Register(name string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = a
}

// Get returns a registered adapter.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("provider not loaded: %s", name)
	}
	return a, nil
}
