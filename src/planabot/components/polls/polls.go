// Package polls creates reaction polls: an embed listing the options and
// one numbered reaction per option for voting.
package polls

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	// MinOptions and MaxOptions bound how many choices a poll may carry.
	// The ceiling matches the number of keycap emojis Discord renders.
	MinOptions = 2
	MaxOptions = 10
)

// ErrFormat signals that the command text did not contain a question plus a
// valid number of options.
var ErrFormat = errors.New("polls: need a question and 2 to 10 options")

var optionEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// tokenPattern splits the argument string into quoted phrases and bare
// words, so multi-word questions and options can be wrapped in quotes.
var tokenPattern = regexp.MustCompile(`"([^"]*)"|\S+`)

// Parse extracts the question and the option list from the raw argument
// text. The first token is the question, the rest are options.
func Parse(args string) (string, []string, error) {
	matches := tokenPattern.FindAllStringSubmatch(args, -1)

	var tokens []string
	for _, m := range matches {
		token := m[0]
		if strings.HasPrefix(token, `"`) {
			token = m[1]
		}
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}

	if len(tokens) < 1+MinOptions {
		return "", nil, ErrFormat
	}
	question := tokens[0]
	options := tokens[1:]
	if len(options) > MaxOptions {
		return "", nil, ErrFormat
	}
	return question, options, nil
}

// Post sends the poll embed and adds one voting reaction per option.
func Post(s *discordgo.Session, channelID, authorName, question string, options []string) error {
	if len(options) < MinOptions || len(options) > MaxOptions {
		return ErrFormat
	}

	var lines []string
	for i, opt := range options {
		lines = append(lines, fmt.Sprintf("%s %s", optionEmojis[i], opt))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Poll: " + question,
		Description: strings.Join(lines, "\n"),
		Color:       0x3498db,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Started by " + authorName,
		},
	}

	msg, err := s.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		return fmt.Errorf("send poll embed: %w", err)
	}

	for i := range options {
		if err := s.MessageReactionAdd(channelID, msg.ID, optionEmojis[i]); err != nil {
			return fmt.Errorf("add reaction %d: %w", i+1, err)
		}
	}
	return nil
}
