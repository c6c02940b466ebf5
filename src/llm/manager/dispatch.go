package manager

import (
	"context"
	"log"

	"github.com/plana-bot/plana/src/llm/core"
)

// Dispatch drives one request to completion: the active provider's primary
// model first, then exactly one fallback call on its secondary model when
// the primary reported a rate limit and a distinct secondary is configured.
// Whatever the fallback returns is final; there is no third attempt.
func (m *Manager) Dispatch(ctx context.Context, req core.Request) core.Result {
	provider, ok := m.Active()
	if !ok {
		log.Printf("dispatch: no active provider")
		return core.ErrorResult("", core.KindInternal, "no active provider")
	}

	primary := provider.ModelName(core.ModelPrimary)
	res := m.call(ctx, provider, primary, req)
	if res.Kind != core.KindRateLimit {
		return res
	}

	secondary := provider.ModelName(core.ModelSecondary)
	if secondary == "" || secondary == primary {
		return res
	}

	log.Printf("dispatch: %s rate limited on %s, falling back to %s", provider.Name(), primary, secondary)
	return m.call(ctx, provider, secondary, req)
}

// call runs one generation, converting provider panics and internal faults
// into internal-kind results so nothing raw reaches the front-end.
func (m *Manager) call(ctx context.Context, provider core.Provider, model string, req core.Request) (res core.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: provider %s panicked on %s: %v", provider.Name(), model, r)
			res = core.ErrorResult(model, core.KindInternal, "")
		}
	}()

	out, err := provider.Generate(ctx, model, req)
	if err != nil {
		log.Printf("dispatch: provider %s internal fault on %s: %v", provider.Name(), model, err)
		return core.ErrorResult(model, core.KindInternal, "")
	}
	return out
}

// Lowload delegates to the active provider's best-effort path. Any failure,
// including a missing provider or a panic, degrades to ok=false.
func (m *Manager) Lowload(ctx context.Context, prompt string) (text string, ok bool) {
	provider, active := m.Active()
	if !active {
		return "", false
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: lowload panic in %s: %v", provider.Name(), r)
			text, ok = "", false
		}
	}()

	return provider.GenerateLowload(ctx, prompt)
}
