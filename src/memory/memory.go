// Package memory holds the per-channel conversation state: a rolling
// window of recent turns and a long-term summary distilled from turns
// that age out of the window.
package memory

import (
	"context"

	"github.com/plana-bot/plana/src/llm/core"
	"gorm.io/gorm"
)

// Generator produces best-effort completions for housekeeping prompts.
// Satisfied by the llm manager.
type Generator interface {
	Lowload(ctx context.Context, prompt string) (string, bool)
}

// Memory bundles the window store and the deep store behind one facade.
type Memory struct {
	Windows *WindowStore
	Deep    *DeepStore
}

// New builds both stores on the shared DB and wires window eviction to
// deep-store compaction.
func New(db *gorm.DB, llm Generator, cacheLimit int) (*Memory, error) {
	deep, err := NewDeepStore(db, llm)
	if err != nil {
		return nil, err
	}
	windows, err := NewWindowStore(db, cacheLimit)
	if err != nil {
		return nil, err
	}
	windows.OnEvict(deep.CompactAsync)
	return &Memory{Windows: windows, Deep: deep}, nil
}

// BuildRequest assembles a generation request for a channel: the stored
// summary, the rolling history and the new user parts.
func (m *Memory) BuildRequest(channelID string, parts []core.ContentPart) core.Request {
	return core.Request{
		Parts:   parts,
		History: m.Windows.Load(channelID),
		Summary: m.Deep.Load(channelID),
	}
}

// RememberExchange appends a completed user/model exchange to the window.
func (m *Memory) RememberExchange(channelID string, user, model core.Turn) error {
	return m.Windows.Append(channelID, user, model)
}

// Reset clears both the rolling window and the long-term summary for a
// channel. Safe to call when nothing is stored.
func (m *Memory) Reset(channelID string) error {
	if err := m.Windows.Reset(channelID); err != nil {
		return err
	}
	return m.Deep.Reset(channelID)
}
