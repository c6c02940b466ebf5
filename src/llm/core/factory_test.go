package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullProvider struct{ name string }

func (p *nullProvider) Name() string { return p.name }
func (p *nullProvider) Generate(context.Context, string, Request) (Result, error) {
	return Result{}, nil
}
func (p *nullProvider) GenerateLowload(context.Context, string) (string, bool) { return "", false }
func (p *nullProvider) ModelName(ModelKind) string                            { return "" }

func TestRegisterAndConstructProvider(t *testing.T) {
	RegisterProvider("testfactory", func(cfg FactoryConfig) (Provider, error) {
		return &nullProvider{name: cfg.Provider}, nil
	}, "tf")

	p, err := NewProvider(FactoryConfig{Provider: "testfactory"})
	require.NoError(t, err)
	assert.Equal(t, "testfactory", p.Name())

	p, err = NewProvider(FactoryConfig{Provider: "TF"})
	require.NoError(t, err)
	assert.Equal(t, "TF", p.Name())

	assert.Contains(t, RegisteredProviders(), "testfactory")
	assert.Contains(t, RegisteredProviders(), "tf")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider(FactoryConfig{Provider: "no-such-vendor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"no-such-vendor"`)
}
