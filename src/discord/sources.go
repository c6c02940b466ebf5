package discord

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	maxSourceButtons   = 25
	maxButtonLabelRune = 80
)

// SourceButtons renders link buttons for the sources a search answer was
// built from, five per row. Duplicate URLs collapse into one button.
func SourceButtons(urls []string) []discordgo.MessageComponent {
	var components []discordgo.MessageComponent
	var currentRow []discordgo.MessageComponent

	for i, u := range dedupeSources(urls) {
		if i == maxSourceButtons {
			break
		}

		button := discordgo.Button{
			Label: truncateLabel(fmt.Sprintf("Source %d · %s", i+1, summarizeURLDisplay(u)), maxButtonLabelRune),
			Style: discordgo.LinkButton,
			URL:   u,
		}
		currentRow = append(currentRow, button)
		if len(currentRow) == 5 {
			components = append(components, discordgo.ActionsRow{Components: currentRow})
			currentRow = nil
		}
	}

	if len(currentRow) > 0 {
		components = append(components, discordgo.ActionsRow{Components: currentRow})
	}
	return components
}

// SourceOverflow lists the deduped sources that do not fit on a button,
// wrapped so Discord renders no embeds. Empty when everything fit.
func SourceOverflow(urls []string) string {
	unique := dedupeSources(urls)
	if len(unique) <= maxSourceButtons {
		return ""
	}
	return FormatURLsNoEmbed(unique[maxSourceButtons:])
}

func dedupeSources(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	unique := make([]string, 0, len(urls))
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		unique = append(unique, u)
	}
	return unique
}

func summarizeURLDisplay(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}

	host := strings.TrimPrefix(parsed.Hostname(), "www.")
	path := strings.Trim(parsed.EscapedPath(), "/")
	if path == "" {
		return host
	}

	segments := strings.Split(path, "/")
	if len(segments) > 0 && segments[0] != "" {
		return fmt.Sprintf("%s/%s", host, segments[0])
	}
	return host
}

func truncateLabel(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
