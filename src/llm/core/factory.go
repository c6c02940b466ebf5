package core

import (
	"fmt"
	"strings"
	"sync"
)

// FactoryConfig captures the inputs required to construct a provider.
type FactoryConfig struct {
	Provider string

	SystemPrompt   string
	PrimaryModel   string
	SecondaryModel string
	LowloadModel   string

	GeminiKey   string
	MistralKey  string
	MistralBase string
}

// ProviderFactory implements provider-specific construction. A factory
// validates credentials and model names and never returns a half-built
// provider alongside a nil error.
type ProviderFactory func(FactoryConfig) (Provider, error)

var (
	mu         sync.RWMutex
	factories  = map[string]ProviderFactory{}
	defaultKey = "gemini"
)

// RegisterProvider registers a provider factory under one or more names.
func RegisterProvider(name string, factory ProviderFactory, aliases ...string) {
	mu.Lock()
	defer mu.Unlock()

	all := append([]string{name}, aliases...)
	for _, n := range all {
		factories[strings.ToLower(n)] = factory
	}
}

// NewProvider constructs a provider from its registered factory.
func NewProvider(cfg FactoryConfig) (Provider, error) {
	providerName := cfg.Provider
	if strings.TrimSpace(providerName) == "" {
		providerName = defaultKey
	}

	mu.RLock()
	factory := factories[strings.ToLower(providerName)]
	mu.RUnlock()

	if factory == nil {
		return nil, fmt.Errorf("llm: provider %q not registered", providerName)
	}
	return factory(cfg)
}

// RegisteredProviders lists the registered factory names.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
