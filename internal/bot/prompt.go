package bot

import (
	"strings"

	"github.com/ent0n29/nova-relay/internal/memory"
)

// FormatPrompt renders context the way transcripts have always looked: user lines verbatim,
// assistant lines prefixed with the bot's name.
func FormatPrompt(botName string, entries []memory.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Role == memory.RoleUser {
			lines = append(lines, e.Content)
			continue
		}
		lines = append(lines, botName+": "+e.Content)
	}
	return strings.Join(lines, "\n")
}
