package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/plana-bot/plana/src/llm/core"
	"gorm.io/gorm"
)

// ErrNoMemory is returned when a channel has no long-term summary to
// work on.
var ErrNoMemory = errors.New("no long-term memory recorded")

// compactTimeout bounds one background extract/merge run.
const compactTimeout = 5 * time.Minute

// DeepMemoryRecord is one channel's long-term summary.
type DeepMemoryRecord struct {
	ChannelID string `gorm:"primaryKey;size:32"`
	Summary   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (DeepMemoryRecord) TableName() string {
	return "deep_memories"
}

// DeepStore persists long-term summaries and folds evicted turns into
// them with the lowload model.
type DeepStore struct {
	db  *gorm.DB
	llm Generator
}

// NewDeepStore migrates the summary table.
func NewDeepStore(db *gorm.DB, llm Generator) (*DeepStore, error) {
	if err := db.AutoMigrate(&DeepMemoryRecord{}); err != nil {
		return nil, err
	}
	return &DeepStore{db: db, llm: llm}, nil
}

// Load returns the stored summary for a channel, or "" when none exists.
func (s *DeepStore) Load(channelID string) string {
	var rec DeepMemoryRecord
	err := s.db.First(&rec, "channel_id = ?", channelID).Error
	if err == gorm.ErrRecordNotFound {
		return ""
	}
	if err != nil {
		log.Printf("memory: load summary %s: %v", channelID, err)
		return ""
	}
	return rec.Summary
}

// Reset drops a channel's summary. Resetting an absent summary is a
// no-op.
func (s *DeepStore) Reset(channelID string) error {
	return s.db.Delete(&DeepMemoryRecord{}, "channel_id = ?", channelID).Error
}

// CompactAsync runs Compact on its own goroutine so the caller's write
// path is not held up by model calls.
func (s *DeepStore) CompactAsync(channelID string, evicted []core.Turn) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("memory: compaction for %s panicked: %v", channelID, r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), compactTimeout)
		defer cancel()
		s.Compact(ctx, channelID, evicted)
	}()
}

// Compact distills evicted turns into the channel summary. New facts are
// extracted first, then merged with the existing summary. On any
// extraction failure the stored summary is left untouched; on a merge
// failure the fresh extraction replaces it so new facts are not lost.
func (s *DeepStore) Compact(ctx context.Context, channelID string, evicted []core.Turn) {
	transcript := RenderTranscript(evicted)
	if transcript == "" {
		log.Printf("memory: compaction for %s skipped, nothing to extract from", channelID)
		return
	}

	log.Printf("memory: compacting %d turns for %s", len(evicted), channelID)

	extracted, ok := s.llm.Lowload(ctx, fmt.Sprintf(extractPrompt, transcript))
	extracted = strings.TrimSpace(extracted)
	if !ok || extracted == "" || strings.Contains(extracted, NoExtractSentinel) {
		log.Printf("memory: compaction for %s yielded nothing, keeping existing summary", channelID)
		return
	}

	final := extracted
	if existing := s.Load(channelID); existing != "" {
		merged, ok := s.llm.Lowload(ctx, fmt.Sprintf(mergePrompt, existing, extracted))
		merged = strings.TrimSpace(merged)
		if ok && merged != "" {
			final = merged
		} else {
			log.Printf("memory: merge for %s failed, storing fresh extraction only", channelID)
		}
	}

	if err := s.save(channelID, final); err != nil {
		log.Printf("memory: store summary %s: %v", channelID, err)
		return
	}
	log.Printf("memory: compaction for %s done", channelID)
}

// Resummarize rewrites the stored summary into a cleaner one and returns
// it. Fails when nothing is stored or the model produces no usable text.
func (s *DeepStore) Resummarize(ctx context.Context, channelID string) (string, error) {
	existing := s.Load(channelID)
	if strings.TrimSpace(existing) == "" {
		return "", ErrNoMemory
	}

	cleaned, ok := s.llm.Lowload(ctx, fmt.Sprintf(summarizePrompt, existing))
	cleaned = strings.TrimSpace(cleaned)
	if !ok || cleaned == "" {
		return "", errors.New("summary cleanup produced no usable text")
	}

	if err := s.save(channelID, cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

func (s *DeepStore) save(channelID, summary string) error {
	rec := DeepMemoryRecord{ChannelID: channelID, Summary: summary, UpdatedAt: time.Now()}
	return s.db.Save(&rec).Error
}
