package cleaner

import (
	"strings"

	"github.com/use-agent/rankscope/locale"
)

// Sanitize trims text and rejects it when it looks like a block, challenge or
// error page. Rejection yields an empty string, never an error.
func Sanitize(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, phrase := range locale.BlockPhrases() {
		if strings.Contains(lower, phrase) {
			return ""
		}
	}
	return s
}
