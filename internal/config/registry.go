package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/provider/agent"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	agent map[string]func(ProviderEntry) (agent.Provider, error)
	stt   map[string]func(ProviderEntry) (stt.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		agent: make(map[string]func(ProviderEntry) (agent.Provider, error)),
		stt:   make(map[string]func(ProviderEntry) (stt.Provider, error)),
	}
}

// RegisterAgent registers a conversational agent provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterAgent(name string, factory func(ProviderEntry) (agent.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agent[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateAgent instantiates an agent provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateAgent(entry ProviderEntry) (agent.Provider, error) {
	r.mu.RLock()
	factory, ok := r.agent[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: agent/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
