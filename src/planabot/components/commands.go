package components

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/plana-bot/plana/src/discord"
	"github.com/plana-bot/plana/src/memory"
	"github.com/plana-bot/plana/src/planabot/components/polls"
	"github.com/plana-bot/plana/src/planabot/components/timers"
	"github.com/plana-bot/plana/src/search"
)

var (
	errTimerFormat = errors.New("timer: invalid format")
	errTimerRange  = errors.New("timer: minutes out of range")
)

// timerPattern accepts "<minutes> [unit] <note>" with an optional English
// or Japanese minute unit after the number.
var timerPattern = regexp.MustCompile(`^(\d+)\s*(?:minutes|minute|mins|min|m|分後|分)?\s+(\S.*)$`)

// handleCommand routes a "!" command. It returns false for anything it
// does not recognize so the text falls through to the ask flow, which is
// where "!his" is picked up.
func (h *Handler) handleCommand(s *discordgo.Session, m *discordgo.MessageCreate, content string) bool {
	if !strings.HasPrefix(content, "!") {
		return false
	}

	switch strings.ToLower(content) {
	case "!gemini", "!mistral":
		h.switchProvider(s, m, strings.TrimPrefix(strings.ToLower(content), "!"))
		return true
	case "!cclear":
		h.clearMemory(s, m)
		return true
	case "!csum":
		h.resummarize(s, m)
		return true
	case "!help":
		h.reply(s, m, helpText)
		return true
	}

	if args, ok := commandArgs(content, "!timer"); ok {
		h.timerCommand(s, m, args)
		return true
	}
	if args, ok := commandArgs(content, "!poll"); ok {
		h.pollCommand(s, m, args)
		return true
	}
	if args, ok := commandArgs(content, "!dsrc"); ok {
		h.searchCommand(s, m, search.ModeDeep, "dsrc", args)
		return true
	}
	if args, ok := commandArgs(content, "!src"); ok {
		h.searchCommand(s, m, search.ModeQuick, "src", args)
		return true
	}
	return false
}

// commandArgs matches content against a command name and returns the
// remaining argument text. The name must be the whole content or be
// followed by whitespace, so "!poll" does not swallow "!pollen".
func commandArgs(content, name string) (string, bool) {
	lower := strings.ToLower(content)
	if lower == name {
		return "", true
	}
	if strings.HasPrefix(lower, name+" ") || strings.HasPrefix(lower, name+"\n") {
		return strings.TrimSpace(content[len(name):]), true
	}
	return "", false
}

func (h *Handler) switchProvider(s *discordgo.Session, m *discordgo.MessageCreate, name string) {
	if err := h.config.LLM.Switch(name); err != nil {
		log.Printf("handler: switch provider %s: %v", name, err)
		h.reply(s, m, fmt.Sprintf(replySwitchFailed, strings.ToUpper(name)))
		return
	}
	_ = s.UpdateGameStatus(0, "chatting via "+name)
	h.reply(s, m, fmt.Sprintf(replySwitched, strings.ToUpper(name)))
}

func (h *Handler) clearMemory(s *discordgo.Session, m *discordgo.MessageCreate) {
	if err := h.config.Memory.Reset(m.ChannelID); err != nil {
		log.Printf("handler: clear memory %s: %v", m.ChannelID, err)
		h.reply(s, m, replyMemoryClearFailed)
		return
	}
	h.reply(s, m, replyMemoryCleared)
}

func (h *Handler) resummarize(s *discordgo.Session, m *discordgo.MessageCreate) {
	_ = s.ChannelTyping(m.ChannelID)
	summary, err := h.config.Memory.Deep.Resummarize(context.Background(), m.ChannelID)
	if errors.Is(err, memory.ErrNoMemory) {
		h.reply(s, m, replyNoDeepMemory)
		return
	}
	if err != nil {
		log.Printf("handler: resummarize %s: %v", m.ChannelID, err)
		h.reply(s, m, replySummaryFailed)
		return
	}
	h.reply(s, m, replySummaryDone+"\n"+truncateRunes(summary, 1500))
}

func (h *Handler) timerCommand(s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	if h.config.Timers == nil {
		h.reply(s, m, replyInternal)
		return
	}
	minutes, note, err := parseTimer(args)
	switch {
	case errors.Is(err, errTimerRange):
		h.reply(s, m, fmt.Sprintf(replyTimerRange, timers.MinMinutes, timers.MaxMinutes))
		return
	case err != nil:
		h.reply(s, m, replyTimerFormat)
		return
	}
	if _, err := h.config.Timers.Schedule(context.Background(), m.ChannelID, m.Author.ID, minutes, note); err != nil {
		log.Printf("handler: schedule timer: %v", err)
		h.reply(s, m, replyTimerFailed)
		return
	}
	notifier := h.config.LLM.ActiveName()
	if notifier == "" {
		notifier = "someone"
	}
	h.reply(s, m, fmt.Sprintf(replyTimerSet, minutes, notifier, truncateRunes(note, 100)))
}

// parseTimer pulls the minute count and the note out of the argument text.
func parseTimer(args string) (int, string, error) {
	match := timerPattern.FindStringSubmatch(strings.TrimSpace(args))
	if match == nil {
		return 0, "", errTimerFormat
	}
	minutes, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, "", errTimerRange
	}
	if minutes < timers.MinMinutes || minutes > timers.MaxMinutes {
		return 0, "", errTimerRange
	}
	note := strings.TrimSpace(match[2])
	if note == "" {
		return 0, "", errTimerFormat
	}
	return minutes, note, nil
}

func (h *Handler) pollCommand(s *discordgo.Session, m *discordgo.MessageCreate, args string) {
	question, options, err := polls.Parse(args)
	if err != nil {
		h.reply(s, m, replyPollInvalid)
		return
	}
	if err := polls.Post(s, m.ChannelID, authorDisplayName(m), question, options); err != nil {
		log.Printf("handler: post poll: %v", err)
		h.reply(s, m, replyPollFailed)
	}
}

func (h *Handler) searchCommand(s *discordgo.Session, m *discordgo.MessageCreate, mode search.Mode, label, query string) {
	if query == "" {
		h.reply(s, m, fmt.Sprintf(replySearchUsage, label))
		return
	}
	if !h.rateLimiter.CanUse(m.Author.ID) {
		wait := h.rateLimiter.TimeUntilNext(m.Author.ID)
		h.reply(s, m, fmt.Sprintf(replyRateLimited, int(wait.Seconds())+1))
		return
	}
	_ = s.ChannelTyping(m.ChannelID)

	report, err := h.config.Searcher.Run(context.Background(), mode, query)
	if err != nil {
		log.Printf("handler: %s search: %v", label, err)
		h.reply(s, m, searchErrorMessage(err))
		return
	}

	header := fmt.Sprintf("(🔍 **%s Search Result** using %s 🔍)\n\n", strings.ToUpper(label), report.Model)
	text := discord.BeautifyForDiscord(header + report.Answer)
	h.sendSearchReport(s, m, text, report.Sources)
}

// sendSearchReport chunks the answer like a normal reply but attaches the
// source link buttons to the final chunk.
func (h *Handler) sendSearchReport(s *discordgo.Session, m *discordgo.MessageCreate, text string, sources []string) {
	if extra := discord.SourceOverflow(sources); extra != "" {
		text += "\n\nMore sources: " + extra
	}
	chunks := discord.BuildLongMessages(text, "")
	buttons := discord.SourceButtons(sources)

	for i, chunk := range chunks {
		send := &discordgo.MessageSend{Content: chunk}
		if i == 0 {
			send.Reference = m.Reference()
		}
		if i == len(chunks)-1 {
			send.Components = buttons
		}
		if _, err := s.ChannelMessageSendComplex(m.ChannelID, send); err != nil {
			log.Printf("handler: send search chunk %d: %v", i+1, err)
			return
		}
	}
}

func searchErrorMessage(err error) string {
	switch {
	case errors.Is(err, search.ErrNotConfigured):
		return replySearchNotConfigured
	case errors.Is(err, search.ErrQueryGeneration):
		return replySearchNoQueries
	case errors.Is(err, search.ErrNoResults):
		return replySearchNoResults
	case errors.Is(err, search.ErrNoContent):
		return replySearchNoContent
	case errors.Is(err, search.ErrAnswerFailed):
		return replySearchAnswerFailed
	default:
		return replySearchFailed
	}
}

func authorDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
