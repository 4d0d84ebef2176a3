package moderation

import (
	"regexp"
	"strings"
)

var blankRunPattern = regexp.MustCompile(`\n{3,}`)

// Sanitize normalises raw notice text before storage: CRLF and bare CR become
// LF, runs of three or more newlines collapse to a single blank line, and
// surrounding whitespace is trimmed. Idempotent.
func Sanitize(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
