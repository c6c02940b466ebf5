package memory

import (
	"fmt"
	"strings"

	"github.com/plana-bot/plana/src/llm/core"
)

// renderEntryLimit caps how much of one turn goes into a housekeeping
// prompt.
const renderEntryLimit = 500

// RenderTranscript flattens turns into "Role: content" lines for
// housekeeping prompts. Attachments become a short placeholder, long
// entries are cut off, and empty turns are skipped.
func RenderTranscript(turns []core.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		pieces := make([]string, 0, len(turn.Parts))
		for _, p := range turn.Parts {
			switch {
			case p.IsText():
				pieces = append(pieces, p.Text)
			case p.IsBlob():
				pieces = append(pieces, fmt.Sprintf("[%s attachment]", p.Blob.MIMEType))
			}
		}
		content := strings.TrimSpace(strings.Join(pieces, " "))
		if content == "" {
			continue
		}
		if runes := []rune(content); len(runes) > renderEntryLimit {
			content = string(runes[:renderEntryLimit]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s: %s", roleLabel(turn.Role), content))
	}
	return strings.Join(lines, "\n")
}

func roleLabel(role core.Role) string {
	switch role {
	case core.RoleUser:
		return "User"
	case core.RoleModel:
		return "Model"
	default:
		return "Unknown"
	}
}
