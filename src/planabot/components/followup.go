package components

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/plana-bot/plana/src/discord"
	"github.com/plana-bot/plana/src/memory"
)

const (
	maxFollowUps       = 3
	followUpTurns      = 4
	noSuggestionMarker = "no suggestions"
)

const followUpPrompt = `Based on the recent conversation below, suggest up to %d short follow-up questions or requests the user is likely to want next. Keep each one under about 15 characters so it fits a button label. If nothing is worth suggesting, answer exactly "no suggestions".

--- Recent conversation ---
%s
--- End of conversation ---

Suggestions, one per line:`

// attachFollowUps asks the lowload model for likely next questions and
// appends them to the already-sent reply. Everything here is best-effort:
// any failure just leaves the reply as it was.
func (h *Handler) attachFollowUps(s *discordgo.Session, channelID, messageID, content string) {
	turns := h.config.Memory.Windows.Load(channelID)
	if len(turns) == 0 {
		return
	}
	if len(turns) > followUpTurns {
		turns = turns[len(turns)-followUpTurns:]
	}
	transcript := memory.RenderTranscript(turns)
	if transcript == "" {
		return
	}

	prompt := fmt.Sprintf(followUpPrompt, maxFollowUps, transcript)
	raw, ok := h.config.LLM.Lowload(context.Background(), prompt)
	if !ok {
		return
	}
	suggestions := parseFollowUps(raw)
	if len(suggestions) == 0 {
		return
	}

	footer := "\n\n-# 💡 " + strings.Join(suggestions, " ・ ")
	if len(content)+len(footer) <= discord.MaxDiscordMessageLen {
		if _, err := s.ChannelMessageEdit(channelID, messageID, content+footer); err == nil {
			return
		}
	}
	if _, err := s.ChannelMessageSend(channelID, strings.TrimSpace(footer)); err != nil {
		log.Printf("handler: follow-up send: %v", err)
	}
}

// parseFollowUps extracts up to maxFollowUps suggestions from the raw
// model output, one per line. Returns nil when the model declined.
func parseFollowUps(raw string) []string {
	if strings.Contains(strings.ToLower(raw), noSuggestionMarker) {
		return nil
	}

	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•")
		line = strings.TrimSpace(line)
		if len([]rune(line)) < 3 {
			continue
		}
		out = append(out, line)
		if len(out) == maxFollowUps {
			break
		}
	}
	return out
}
