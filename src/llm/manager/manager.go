// Package manager owns the set of configured model backends, tracks the
// active one, and drives dispatches with the single rate-limit fallback hop.
package manager

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/plana-bot/plana/src/llm/core"
)

// Manager is the provider registry. Construction of a provider happens at
// most once per name: the write lock is held across the factory call, which
// does no network I/O, so concurrent first-time requests serialize cheaply.
type Manager struct {
	mu         sync.RWMutex
	configs    map[string]core.FactoryConfig
	providers  map[string]core.Provider
	active     core.Provider
	activeName string
}

// New builds a registry over the given per-provider configurations. Nothing
// is initialized until a provider is first requested or switched to.
func New(configs map[string]core.FactoryConfig) *Manager {
	normalized := make(map[string]core.FactoryConfig, len(configs))
	for name, cfg := range configs {
		normalized[strings.ToLower(name)] = cfg
	}
	return &Manager{
		configs:   normalized,
		providers: make(map[string]core.Provider),
	}
}

// Get returns the provider for name, constructing it on first use.
func (m *Manager) Get(name string) (core.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(normalize(name))
}

func (m *Manager) getLocked(name string) (core.Provider, error) {
	if p, ok := m.providers[name]; ok {
		return p, nil
	}

	cfg, ok := m.configs[name]
	if !ok {
		return nil, fmt.Errorf("llm: provider %q not configured", name)
	}

	p, err := core.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: initialize %s: %w", name, err)
	}
	m.providers[name] = p
	log.Printf("llm: provider %s initialized (primary=%s secondary=%s lowload=%s)",
		name, p.ModelName(core.ModelPrimary), p.ModelName(core.ModelSecondary), p.ModelName(core.ModelLowload))
	return p, nil
}

// Reinitialize rebuilds the provider from its configuration. The previous
// instance (including the active reference) stays in place when the rebuild
// fails.
func (m *Manager) Reinitialize(name string) (core.Provider, error) {
	key := normalize(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.configs[key]
	if !ok {
		return nil, fmt.Errorf("llm: provider %q not configured", key)
	}

	p, err := core.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm: reinitialize %s: %w", key, err)
	}
	m.providers[key] = p
	if m.activeName == key {
		m.active = p
	}
	log.Printf("llm: provider %s reinitialized", key)
	return p, nil
}

// Switch makes name the active provider, initializing it if needed. It is a
// no-op when name is already active. On failure the previously active
// provider keeps serving.
func (m *Manager) Switch(name string) error {
	key := normalize(name)

	m.mu.Lock()
	defer m.mu.Unlock()

	if key == m.activeName && m.active != nil {
		return nil
	}

	p, err := m.getLocked(key)
	if err != nil {
		return err
	}
	m.active = p
	m.activeName = key
	log.Printf("llm: active provider switched to %s", key)
	return nil
}

// Active returns the active provider, if any. Callers capture the returned
// reference once per request; a concurrent Switch does not affect requests
// already in flight.
func (m *Manager) Active() (core.Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil {
		return nil, false
	}
	return m.active, true
}

// ActiveName returns the name of the active provider, "" when none is set.
func (m *Manager) ActiveName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeName
}

// Configured lists the provider names this registry can initialize.
func (m *Manager) Configured() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.configs))
	for name := range m.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
