package discord

import (
	"fmt"
	"regexp"
	"strings"
)

var bareURLRegex = regexp.MustCompile(`https?://[^\s\[\]()<>]+`)

// WrapURLsNoEmbed wraps URLs in angle brackets to prevent Discord embeds.
func WrapURLsNoEmbed(text string) string {
	return bareURLRegex.ReplaceAllStringFunc(text, func(url string) string {
		url = strings.TrimRight(url, ".,;:!?)")
		if strings.HasPrefix(url, "<") && strings.HasSuffix(url, ">") {
			return url
		}
		return fmt.Sprintf("<%s>", url)
	})
}

// FormatURLsNoEmbed formats a slice of URLs, wrapped to prevent embeds.
func FormatURLsNoEmbed(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	formatted := make([]string, 0, len(urls))
	for _, u := range urls {
		formatted = append(formatted, fmt.Sprintf("<%s>", u))
	}
	return strings.Join(formatted, " ")
}
