package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLineEndings(t *testing.T) {
	assert.Equal(t, "a\nb\nc", Sanitize("a\r\nb\rc"))
}

func TestSanitizeCollapsesBlankRuns(t *testing.T) {
	assert.Equal(t, "a\n\nb", Sanitize("a\n\n\n\nb"))
	assert.Equal(t, "a\n\nb", Sanitize("a\n\n\nb"))
	// a single blank line is preserved
	assert.Equal(t, "a\n\nb", Sanitize("a\n\nb"))
}

func TestSanitizeTrimsSurroundingWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", Sanitize("  \n\thello world \n\n"))
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		"a\r\n\r\n\r\n\r\nb",
		"  mixed \r endings \n\n\n here  ",
		"already clean",
		"",
	}
	for _, input := range inputs {
		once := Sanitize(input)
		assert.Equal(t, once, Sanitize(once), "sanitize should be idempotent for %q", input)
	}
}

func TestSanitizeCRLFRunsCollapse(t *testing.T) {
	// CRLF blank runs must collapse the same way LF runs do
	assert.Equal(t, "a\n\nb", Sanitize("a\r\n\r\n\r\n\r\nb"))
}
