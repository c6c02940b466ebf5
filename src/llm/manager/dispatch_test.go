package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/plana-bot/plana/src/llm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// activate waits on no scripting: it builds a manager whose "fake"
// provider is the given instance and makes it active.
func activate(t *testing.T, p *fakeProvider) *Manager {
	t.Helper()
	scriptBuild(t, func(core.FactoryConfig) (core.Provider, error) { return p, nil })
	m := New(fakeConfigs())
	require.NoError(t, m.Switch("fake"))
	return m
}

func TestDispatchSuccess(t *testing.T) {
	p := &fakeProvider{name: "fake", primary: "fake-pro", secondary: "fake-flash"}
	p.generate = func(model string, _ core.Request) (core.Result, error) {
		return core.Result{Model: model, Text: "hello"}, nil
	}
	m := activate(t, p)

	res := m.Dispatch(context.Background(), core.Request{Parts: []core.ContentPart{core.TextPart("hi")}})

	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, "fake-pro", res.Model)
	assert.False(t, res.IsError())
	assert.Equal(t, []string{"fake-pro"}, p.calledModels())
}

func TestDispatchFallsBackOnRateLimitOnly(t *testing.T) {
	p := &fakeProvider{name: "fake", primary: "fake-pro", secondary: "fake-flash"}
	p.generate = func(model string, _ core.Request) (core.Result, error) {
		if model == "fake-pro" {
			return core.ErrorResult(model, core.KindRateLimit, "quota"), nil
		}
		return core.Result{Model: model, Text: "ok"}, nil
	}
	m := activate(t, p)

	res := m.Dispatch(context.Background(), core.Request{})

	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, "fake-flash", res.Model)
	assert.False(t, res.IsError())
	assert.Equal(t, []string{"fake-pro", "fake-flash"}, p.calledModels())
}

func TestDispatchFallbackResultIsFinal(t *testing.T) {
	p := &fakeProvider{name: "fake", primary: "fake-pro", secondary: "fake-flash"}
	p.generate = func(model string, _ core.Request) (core.Result, error) {
		return core.ErrorResult(model, core.KindRateLimit, ""), nil
	}
	m := activate(t, p)

	res := m.Dispatch(context.Background(), core.Request{})

	assert.Equal(t, core.KindRateLimit, res.Kind)
	assert.Equal(t, "fake-flash", res.Model)
	assert.Equal(t, []string{"fake-pro", "fake-flash"}, p.calledModels())
}

func TestDispatchNoFallbackOnOtherFailures(t *testing.T) {
	kinds := []core.ErrorKind{
		core.KindInvalidArgument, core.KindBlockedPrompt, core.KindBlockedResponse,
		core.KindUnavailable, core.KindInternal, core.KindUnknown,
	}
	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			p := &fakeProvider{name: "fake", primary: "fake-pro", secondary: "fake-flash"}
			p.generate = func(model string, _ core.Request) (core.Result, error) {
				return core.ErrorResult(model, kind, ""), nil
			}
			m := activate(t, p)

			res := m.Dispatch(context.Background(), core.Request{})

			assert.Equal(t, kind, res.Kind)
			assert.Equal(t, "fake-pro", res.Model)
			assert.Equal(t, []string{"fake-pro"}, p.calledModels())
		})
	}
}

func TestDispatchNoFallbackWithoutDistinctSecondary(t *testing.T) {
	for name, secondary := range map[string]string{"same model": "fake-pro", "unset": ""} {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{name: "fake", primary: "fake-pro", secondary: secondary}
			p.generate = func(model string, _ core.Request) (core.Result, error) {
				return core.ErrorResult(model, core.KindRateLimit, ""), nil
			}
			m := activate(t, p)

			res := m.Dispatch(context.Background(), core.Request{})

			assert.Equal(t, core.KindRateLimit, res.Kind)
			assert.Equal(t, []string{"fake-pro"}, p.calledModels())
		})
	}
}

func TestDispatchPanicBecomesInternal(t *testing.T) {
	p := &fakeProvider{name: "fake", primary: "fake-pro", secondary: "fake-flash"}
	p.generate = func(model string, _ core.Request) (core.Result, error) {
		panic("nil map write")
	}
	m := activate(t, p)

	res := m.Dispatch(context.Background(), core.Request{})

	assert.Equal(t, core.KindInternal, res.Kind)
	assert.Equal(t, core.KindInternal.Message(), res.Text)
	assert.Equal(t, []string{"fake-pro"}, p.calledModels())
}

func TestDispatchInternalFaultOnError(t *testing.T) {
	p := &fakeProvider{name: "fake", primary: "fake-pro"}
	p.generate = func(model string, _ core.Request) (core.Result, error) {
		return core.Result{}, errors.New("socket closed mid-read")
	}
	m := activate(t, p)

	res := m.Dispatch(context.Background(), core.Request{})

	assert.Equal(t, core.KindInternal, res.Kind)
	assert.NotContains(t, res.Text, "socket closed", "raw fault must not reach users")
}

func TestDispatchWithoutActiveProvider(t *testing.T) {
	m := New(fakeConfigs())

	res := m.Dispatch(context.Background(), core.Request{})

	assert.Equal(t, core.KindInternal, res.Kind)
}

// A switch that lands mid-request must not redirect the in-flight
// fallback to the new provider.
func TestDispatchKeepsProviderAcrossSwitch(t *testing.T) {
	other := &fakeProvider{name: "other", primary: "other-pro", secondary: "other-flash"}

	p := &fakeProvider{name: "fake", primary: "fake-pro", secondary: "fake-flash"}
	var m *Manager
	p.generate = func(model string, _ core.Request) (core.Result, error) {
		if model == "fake-pro" {
			require.NoError(t, m.Switch("other"))
			return core.ErrorResult(model, core.KindRateLimit, ""), nil
		}
		return core.Result{Model: model, Text: "ok"}, nil
	}

	scriptBuild(t, func(cfg core.FactoryConfig) (core.Provider, error) {
		if cfg.PrimaryModel == "other-pro" {
			return other, nil
		}
		return p, nil
	})
	configs := fakeConfigs()
	configs["other"] = core.FactoryConfig{Provider: "fakevendor", PrimaryModel: "other-pro"}
	m = New(configs)
	require.NoError(t, m.Switch("fake"))

	res := m.Dispatch(context.Background(), core.Request{})

	assert.Equal(t, "fake-flash", res.Model)
	assert.Equal(t, []string{"fake-pro", "fake-flash"}, p.calledModels())
	assert.Empty(t, other.calledModels())
	assert.Equal(t, "other", m.ActiveName())
}

func TestLowloadDelegates(t *testing.T) {
	p := &fakeProvider{name: "fake", lowload: "fake-mini"}
	p.lowFn = func(prompt string) (string, bool) { return "three short words", true }
	m := activate(t, p)

	text, ok := m.Lowload(context.Background(), "summarize this")
	assert.True(t, ok)
	assert.Equal(t, "three short words", text)
}

func TestLowloadDegrades(t *testing.T) {
	m := New(fakeConfigs())
	_, ok := m.Lowload(context.Background(), "anything")
	assert.False(t, ok)

	p := &fakeProvider{name: "fake"}
	p.lowFn = func(string) (string, bool) { panic("boom") }
	m = activate(t, p)

	_, ok = m.Lowload(context.Background(), "anything")
	assert.False(t, ok)
}
