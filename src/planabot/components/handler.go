package components

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/plana-bot/plana/src/discord"
	"github.com/plana-bot/plana/src/llm/core"
	"github.com/plana-bot/plana/src/llm/manager"
	"github.com/plana-bot/plana/src/memory"
	"github.com/plana-bot/plana/src/planabot/components/timers"
	"github.com/plana-bot/plana/src/search"
	"github.com/plana-bot/plana/src/webclient"
)

const attachmentFetchTimeout = 30 * time.Second

// historyPattern detects the "!his" flag anywhere in the message, which
// switches one request to answering from the recent channel history.
var historyPattern = regexp.MustCompile(`(?i)(?:^|\s)!his\b`)

var errAttachmentTooLarge = errors.New("attachment too large")

// Config carries the dependencies for the message handler.
type Config struct {
	LLM      *manager.Manager
	Memory   *memory.Memory
	Searcher *search.Searcher
	Timers   *timers.Service

	// GuildID restricts guild traffic to one server when set. DMs always
	// pass.
	GuildID string

	HistoryLimit int
	MaxImages    int
	FileLimitMB  int
	AskCooldown  time.Duration
}

// Handler reacts to messages that mention the bot or arrive by DM.
type Handler struct {
	config      Config
	rateLimiter *RateLimiter
	httpClient  *http.Client
}

func NewHandler(config Config) *Handler {
	cooldown := config.AskCooldown
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}
	return &Handler{
		config:      config,
		rateLimiter: NewRateLimiter(cooldown),
		httpClient:  webclient.NewDefault(attachmentFetchTimeout),
	}
}

// HandleMessage is the discordgo MessageCreate callback.
func (h *Handler) HandleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	isDM := m.GuildID == ""
	if !isDM && h.config.GuildID != "" && m.GuildID != h.config.GuildID {
		return
	}
	if !isDM && !mentionsUser(m.Mentions, botID(s)) {
		return
	}

	content := stripMentions(m.Content, botID(s))
	if h.handleCommand(s, m, content) {
		return
	}
	h.handleAsk(s, m, content)
}

// handleAsk runs one generation round trip: gather parts, assemble the
// request, dispatch, send the reply and record the exchange.
func (h *Handler) handleAsk(s *discordgo.Session, m *discordgo.MessageCreate, content string) {
	content, historyMode := extractHistoryFlag(content)

	if content == "" && len(m.Attachments) == 0 {
		if historyMode {
			h.reply(s, m, replyNoContent)
		} else {
			h.reply(s, m, replyJustMention)
		}
		return
	}

	if !h.rateLimiter.CanUse(m.Author.ID) {
		wait := h.rateLimiter.TimeUntilNext(m.Author.ID)
		h.reply(s, m, fmt.Sprintf(replyRateLimited, int(wait.Seconds())+1))
		return
	}

	parts, warned := h.collectParts(s, m, content)
	if len(parts) == 0 {
		if !warned {
			h.reply(s, m, replyNoContent)
		}
		return
	}

	_ = s.ChannelTyping(m.ChannelID)

	var req core.Request
	if historyMode {
		history, err := h.channelHistory(s, m)
		if err != nil {
			log.Printf("handler: channel history: %v", err)
			h.reply(s, m, replyHistoryFailed)
			return
		}
		req = core.Request{Parts: parts, History: history}
	} else {
		req = h.config.Memory.BuildRequest(m.ChannelID, parts)
	}

	res := h.config.LLM.Dispatch(context.Background(), req)
	if res.IsError() {
		h.reply(s, m, res.Text)
		return
	}

	text := discord.BeautifyForDiscord(res.Text)
	lastID, lastContent := h.sendChunks(s, m, text)

	// History answers are one-off lookups and stay out of the rolling cache.
	if !historyMode {
		user := core.UserTurn(parts...)
		if err := h.config.Memory.RememberExchange(m.ChannelID, user, core.ModelTurn(res.Text)); err != nil {
			log.Printf("handler: remember exchange: %v", err)
		}
		if lastID != "" {
			go h.attachFollowUps(s, m.ChannelID, lastID, lastContent)
		}
	}
}

// collectParts turns the message text and attachments into content parts.
// Unusable attachments are skipped with at most one warning per problem.
func (h *Handler) collectParts(s *discordgo.Session, m *discordgo.MessageCreate, content string) ([]core.ContentPart, bool) {
	var parts []core.ContentPart
	if content != "" {
		parts = append(parts, core.TextPart(content))
	}

	warned := map[string]bool{}
	warn := func(msg string) {
		if !warned[msg] {
			warned[msg] = true
			if _, err := s.ChannelMessageSend(m.ChannelID, msg); err != nil {
				log.Printf("handler: attachment warning: %v", err)
			}
		}
	}

	limit := int64(h.config.FileLimitMB) * 1024 * 1024
	images := 0
	for _, att := range m.Attachments {
		if int64(att.Size) > limit {
			warn(fmt.Sprintf(replyFileTooLarge, h.config.FileLimitMB))
			continue
		}

		mimeType := attachmentMIME(att)
		switch {
		case strings.HasPrefix(mimeType, "image/"):
			if images >= h.config.MaxImages {
				warn(fmt.Sprintf(replyTooManyImages, h.config.MaxImages))
				continue
			}
			data, err := h.downloadAttachment(att.URL, limit)
			if err != nil {
				log.Printf("handler: download %s: %v", att.Filename, err)
				warn(attachmentErrorReply(err, h.config.FileLimitMB))
				continue
			}
			parts = append(parts, core.BlobPart(mimeType, data))
			images++

		case strings.HasPrefix(mimeType, "text/"):
			data, err := h.downloadAttachment(att.URL, limit)
			if err != nil {
				log.Printf("handler: download %s: %v", att.Filename, err)
				warn(attachmentErrorReply(err, h.config.FileLimitMB))
				continue
			}
			wrapped := fmt.Sprintf("--- Attached file %q ---\n%s\n--- End of file ---", att.Filename, string(data))
			parts = append(parts, core.TextPart(wrapped))

		default:
			warn(replyUnsupportedFile)
		}
	}
	return parts, len(warned) > 0
}

func (h *Handler) downloadAttachment(url string, limit int64) ([]byte, error) {
	resp, err := h.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errAttachmentTooLarge
	}
	return data, nil
}

// channelHistory loads the messages preceding the trigger, oldest first,
// as turns for a history-mode request. Attachments collapse to a marker.
func (h *Handler) channelHistory(s *discordgo.Session, m *discordgo.MessageCreate) ([]core.Turn, error) {
	msgs, err := s.ChannelMessages(m.ChannelID, h.config.HistoryLimit, m.ID, "", "")
	if err != nil {
		return nil, err
	}

	turns := make([]core.Turn, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		if msg.Author == nil {
			continue
		}
		text := strings.TrimSpace(msg.Content)
		for _, att := range msg.Attachments {
			marker := fmt.Sprintf("[%s attached]", att.Filename)
			if text == "" {
				text = marker
			} else {
				text += " " + marker
			}
		}
		if text == "" {
			continue
		}
		if s.State.User != nil && msg.Author.ID == s.State.User.ID {
			turns = append(turns, core.ModelTurn(text))
		} else {
			speaker := msg.Author.Username
			if msg.Author.GlobalName != "" {
				speaker = msg.Author.GlobalName
			}
			turns = append(turns, core.UserTurn(core.TextPart(speaker+": "+text)))
		}
	}
	return turns, nil
}

// sendChunks delivers the reply, the first chunk as a reply reference and
// the rest as plain sends. Returns the id and content of the last chunk
// that made it out.
func (h *Handler) sendChunks(s *discordgo.Session, m *discordgo.MessageCreate, text string) (string, string) {
	var lastID, lastContent string
	for i, chunk := range discord.BuildLongMessages(text, "") {
		var sent *discordgo.Message
		var err error
		if i == 0 {
			sent, err = s.ChannelMessageSendReply(m.ChannelID, chunk, m.Reference())
		} else {
			sent, err = s.ChannelMessageSend(m.ChannelID, chunk)
		}
		if err != nil {
			log.Printf("handler: send chunk %d: %v", i+1, err)
			return lastID, lastContent
		}
		lastID, lastContent = sent.ID, chunk
	}
	return lastID, lastContent
}

func (h *Handler) reply(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, text, m.Reference()); err != nil {
		log.Printf("handler: reply: %v", err)
	}
}

// extractHistoryFlag strips the "!his" flag and reports whether it was
// present.
func extractHistoryFlag(content string) (string, bool) {
	if !historyPattern.MatchString(content) {
		return content, false
	}
	return strings.TrimSpace(historyPattern.ReplaceAllString(content, "")), true
}

func attachmentMIME(att *discordgo.MessageAttachment) string {
	mimeType := att.ContentType
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(att.Filename)))
	}
	if mimeType == "" {
		return "application/octet-stream"
	}
	if base, _, found := strings.Cut(mimeType, ";"); found {
		return strings.TrimSpace(base)
	}
	return mimeType
}

func attachmentErrorReply(err error, limitMB int) string {
	if errors.Is(err, errAttachmentTooLarge) {
		return fmt.Sprintf(replyFileTooLarge, limitMB)
	}
	return replyAttachmentRead
}

func botID(s *discordgo.Session) string {
	if s.State != nil && s.State.User != nil {
		return s.State.User.ID
	}
	return ""
}

func mentionsUser(mentions []*discordgo.User, id string) bool {
	if id == "" {
		return false
	}
	for _, u := range mentions {
		if u != nil && u.ID == id {
			return true
		}
	}
	return false
}

func stripMentions(content, id string) string {
	if id != "" {
		content = strings.ReplaceAll(content, "<@"+id+">", "")
		content = strings.ReplaceAll(content, "<@!"+id+">", "")
	}
	return strings.TrimSpace(content)
}
