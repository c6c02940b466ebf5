// Command llm-smoketest exercises the configured model backends from the
// shell: one chat round trip on the primary model and one lowload call,
// using the same provider construction as the bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/plana-bot/plana/src/config"
	"github.com/plana-bot/plana/src/llm/core"
	_ "github.com/plana-bot/plana/src/llm/providers"
)

var (
	providersFlag = flag.String("provider", "gemini", "Comma-separated provider list or 'all'")
	kindFlag      = flag.String("kind", "chat", "chat|lowload|both")
	promptFlag    = flag.String("prompt", defaultPrompt, "User prompt to send")
	timeoutFlag   = flag.Duration("timeout", 45*time.Second, "Per-provider timeout")
	maxLenFlag    = flag.Int("max-bytes", 1200, "Maximum bytes of output to print per response (0=unlimited)")
)

const defaultPrompt = "Introduce yourself in two short sentences."

func main() {
	log.SetFlags(0)
	flag.Parse()

	kind, err := parseKind(*kindFlag)
	if err != nil {
		log.Fatalf("invalid kind: %v", err)
	}

	configs := config.Load(nil).ProviderConfigs()
	names := resolveProviders(*providersFlag, configs)
	if len(names) == 0 {
		log.Fatal("no providers specified")
	}

	for _, name := range names {
		fc, ok := configs[name]
		if !ok {
			log.Printf("[%s] ERROR: unknown provider", name)
			continue
		}
		if err := runProvider(name, fc, kind); err != nil {
			log.Printf("[%s] ERROR: %v", name, err)
		}
	}
}

func runProvider(name string, fc core.FactoryConfig, kind runKind) error {
	provider, err := core.NewProvider(fc)
	if err != nil {
		return fmt.Errorf("provider init: %w", err)
	}

	fmt.Printf("=== %s ===\n", name)
	if kind == kindChat || kind == kindBoth {
		if err := executeChat(provider); err != nil {
			fmt.Printf("chat ❌ %v\n", err)
		}
	}
	if kind == kindLowload || kind == kindBoth {
		executeLowload(provider)
	}
	return nil
}

func executeChat(provider core.Provider) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	req := core.Request{Parts: []core.ContentPart{core.TextPart(*promptFlag)}}
	res, err := provider.Generate(ctx, provider.ModelName(core.ModelPrimary), req)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("%s: %s", res.Kind, res.Text)
	}
	fmt.Printf("chat ✅ %s (%.1fs)\n%s\n", res.Model, time.Since(start).Seconds(), truncate(res.Text, *maxLenFlag))
	return nil
}

func executeLowload(provider core.Provider) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	start := time.Now()
	text, ok := provider.GenerateLowload(ctx, *promptFlag)
	if !ok {
		fmt.Println("lowload ❌ no usable reply")
		return
	}
	fmt.Printf("lowload ✅ %s (%.1fs)\n%s\n",
		provider.ModelName(core.ModelLowload), time.Since(start).Seconds(), truncate(text, *maxLenFlag))
}

func resolveProviders(raw string, configs map[string]core.FactoryConfig) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.EqualFold(raw, "all") {
		names := make([]string, 0, len(configs))
		for name := range configs {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	var out []string
	seen := map[string]struct{}{}
	for _, p := range parts {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

type runKind int

const (
	kindChat runKind = iota
	kindLowload
	kindBoth
)

func parseKind(input string) (runKind, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "chat":
		return kindChat, nil
	case "lowload":
		return kindLowload, nil
	case "both":
		return kindBoth, nil
	default:
		return kindChat, errors.New("expected chat, lowload, or both")
	}
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:limit]) + "...(truncated)"
}
