// Package timers schedules one-shot reminders in Redis. Pending timers
// live in a sorted set scored by their fire-at time, with one hash per
// timer holding the payload, so reminders survive restarts and anything
// already due fires on the next sweep.
package timers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// MinMinutes and MaxMinutes bound how far out a reminder may be set.
	MinMinutes = 1
	MaxMinutes = 1440

	dueKey     = "timers:due"
	itemPrefix = "timers:item:"
	sweepEvery = 10 * time.Second

	maxFlavorRunes = 300
)

// Notifier delivers the reminder message. Satisfied by discordgo.Session.
type Notifier interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Flavorer produces an optional in-character line appended to the reminder.
// Satisfied by the llm manager.
type Flavorer interface {
	Lowload(ctx context.Context, prompt string) (string, bool)
}

type Config struct {
	Redis    *redis.Client
	Notifier Notifier
	LLM      Flavorer
}

// Service stores reminders and fires the ones that come due.
type Service struct {
	rdb      *redis.Client
	notifier Notifier
	llm      Flavorer
}

func New(config Config) *Service {
	return &Service{
		rdb:      config.Redis,
		notifier: config.Notifier,
		llm:      config.LLM,
	}
}

// Schedule stores a reminder and returns its id.
func (s *Service) Schedule(ctx context.Context, channelID, userID string, minutes int, note string) (string, error) {
	if minutes < MinMinutes || minutes > MaxMinutes {
		return "", fmt.Errorf("timers: %d minutes out of range", minutes)
	}

	id := uuid.NewString()
	fireAt := time.Now().Add(time.Duration(minutes) * time.Minute)

	fields := map[string]interface{}{
		"channel_id": channelID,
		"user_id":    userID,
		"note":       note,
		"fire_at":    fireAt.Unix(),
	}
	if err := s.rdb.HSet(ctx, itemPrefix+id, fields).Err(); err != nil {
		return "", fmt.Errorf("store timer: %w", err)
	}
	member := redis.Z{Score: float64(fireAt.Unix()), Member: id}
	if err := s.rdb.ZAdd(ctx, dueKey, member).Err(); err != nil {
		s.rdb.Del(ctx, itemPrefix+id)
		return "", fmt.Errorf("enqueue timer: %w", err)
	}
	return id, nil
}

// Start sweeps for due timers until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fireDue(ctx)
		}
	}
}

func (s *Service) fireDue(ctx context.Context) {
	now := strconv.FormatInt(time.Now().Unix(), 10)
	ids, err := s.rdb.ZRangeByScore(ctx, dueKey, &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		log.Printf("timers: sweep: %v", err)
		return
	}

	for _, id := range ids {
		fields, err := s.rdb.HGetAll(ctx, itemPrefix+id).Result()
		if err != nil {
			log.Printf("timers: load %s: %v", id, err)
			continue
		}
		// Remove before sending so a delivery failure cannot refire forever.
		s.rdb.ZRem(ctx, dueKey, id)
		s.rdb.Del(ctx, itemPrefix+id)
		if len(fields) == 0 {
			continue
		}
		s.fire(ctx, fields["channel_id"], fields["user_id"], fields["note"])
	}
}

func (s *Service) fire(ctx context.Context, channelID, userID, note string) {
	if channelID == "" || userID == "" {
		return
	}

	var flavor string
	if s.llm != nil {
		prompt := fmt.Sprintf("A timer you set for the user has just gone off. Its note reads: %q. Tell the user it is time, in one short line.", note)
		if line, ok := s.llm.Lowload(ctx, prompt); ok {
			flavor = line
		}
	}

	if _, err := s.notifier.ChannelMessageSend(channelID, fireMessage(userID, note, flavor)); err != nil {
		log.Printf("timers: notify channel %s: %v", channelID, err)
	}
}

func fireMessage(userID, note, flavor string) string {
	msg := fmt.Sprintf("<@%s> Time is up.\nTimer note: 「%s」", userID, note)
	flavor = truncateRunes(flavor, maxFlavorRunes)
	if flavor != "" {
		msg += "\n" + flavor
	}
	return msg
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
