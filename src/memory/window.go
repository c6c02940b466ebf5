package memory

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/plana-bot/plana/src/llm/core"
	"gorm.io/gorm"
)

// ConversationRecord is one channel's rolling window, stored as a JSON
// array of turns.
type ConversationRecord struct {
	ChannelID string `gorm:"primaryKey;size:32"`
	Turns     string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

func (ConversationRecord) TableName() string {
	return "conversation_windows"
}

// EvictFunc receives turns that fell out of a channel's window.
type EvictFunc func(channelID string, evicted []core.Turn)

// WindowStore persists the rolling conversation window. The window keeps
// at most limit exchanges (2*limit turns); older turns are handed to the
// eviction callback.
type WindowStore struct {
	db    *gorm.DB
	limit int
	evict EvictFunc

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWindowStore migrates the window table and returns a store keeping
// up to limit user/model exchanges per channel.
func NewWindowStore(db *gorm.DB, limit int) (*WindowStore, error) {
	if err := db.AutoMigrate(&ConversationRecord{}); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 1
	}
	return &WindowStore{db: db, limit: limit, locks: make(map[string]*sync.Mutex)}, nil
}

// OnEvict registers the callback invoked with turns trimmed from the
// window. Must be set before the store is used concurrently.
func (s *WindowStore) OnEvict(fn EvictFunc) {
	s.evict = fn
}

// channelLock returns the mutex serializing writes for one channel.
func (s *WindowStore) channelLock(channelID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[channelID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[channelID] = l
	}
	return l
}

// Load returns the stored window for a channel, oldest first. A missing
// record yields an empty history. A record that no longer parses is
// reset to empty so the channel keeps working.
func (s *WindowStore) Load(channelID string) []core.Turn {
	var rec ConversationRecord
	err := s.db.First(&rec, "channel_id = ?", channelID).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		log.Printf("memory: load window %s: %v", channelID, err)
		return nil
	}
	if rec.Turns == "" {
		return nil
	}
	turns, err := decodeTurns([]byte(rec.Turns))
	if err != nil {
		log.Printf("memory: window %s is corrupt, resetting: %v", channelID, err)
		if serr := s.save(channelID, nil); serr != nil {
			log.Printf("memory: reset corrupt window %s: %v", channelID, serr)
		}
		return nil
	}
	return turns
}

// Append adds turns to a channel's window, trims it to the newest
// 2*limit turns and hands anything older to the eviction callback.
// Appends for the same channel are serialized so concurrent exchanges
// cannot clobber each other.
func (s *WindowStore) Append(channelID string, turns ...core.Turn) error {
	l := s.channelLock(channelID)
	l.Lock()
	defer l.Unlock()

	history := s.Load(channelID)
	history = append(history, turns...)

	keep := s.limit * 2
	if len(history) > keep {
		evicted := history[:len(history)-keep]
		history = history[len(history)-keep:]
		log.Printf("memory: window %s over limit, compacting %d old turns", channelID, len(evicted))
		if s.evict != nil {
			s.evict(channelID, evicted)
		}
	}

	return s.save(channelID, history)
}

// Reset drops a channel's window. Resetting an absent window is a no-op.
func (s *WindowStore) Reset(channelID string) error {
	return s.db.Delete(&ConversationRecord{}, "channel_id = ?", channelID).Error
}

func (s *WindowStore) save(channelID string, turns []core.Turn) error {
	encoded, err := encodeTurns(turns)
	if err != nil {
		return err
	}
	rec := ConversationRecord{ChannelID: channelID, Turns: string(encoded), UpdatedAt: time.Now()}
	return s.db.Save(&rec).Error
}

// encodeTurns serializes turns for storage, dropping parts that carry
// neither text nor data and turns left with no parts at all.
func encodeTurns(turns []core.Turn) ([]byte, error) {
	kept := make([]core.Turn, 0, len(turns))
	for _, turn := range turns {
		parts := make([]core.ContentPart, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			if p.IsText() || p.IsBlob() {
				parts = append(parts, p)
			}
		}
		if turn.Role == "" || len(parts) == 0 {
			continue
		}
		kept = append(kept, core.Turn{Role: turn.Role, Parts: parts})
	}
	return json.Marshal(kept)
}

// decodeTurns parses a stored window. A part that fails to decode is
// dropped with a warning; the rest of the turn survives. Only a payload
// that is not valid JSON at all is an error.
func decodeTurns(raw []byte) ([]core.Turn, error) {
	var shells []struct {
		Role  core.Role         `json:"role"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(raw, &shells); err != nil {
		return nil, err
	}

	turns := make([]core.Turn, 0, len(shells))
	for _, shell := range shells {
		parts := make([]core.ContentPart, 0, len(shell.Parts))
		for _, rawPart := range shell.Parts {
			var part core.ContentPart
			if err := json.Unmarshal(rawPart, &part); err != nil {
				log.Printf("memory: dropping unreadable part: %v", err)
				continue
			}
			parts = append(parts, part)
		}
		if shell.Role == "" || len(parts) == 0 {
			continue
		}
		turns = append(turns, core.Turn{Role: shell.Role, Parts: parts})
	}
	return turns, nil
}
