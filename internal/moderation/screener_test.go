package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenerCleanContentApproved(t *testing.T) {
	s := NewScreener()
	verdict := s.Screen("Library hours", "The main library will stay open until midnight during exam week.")
	assert.True(t, verdict.Approved)
	assert.Empty(t, verdict.Issues)
	assert.Equal(t, SeverityLow, verdict.Severity)
}

func TestScreenerBannedWordAnyCasing(t *testing.T) {
	s := NewScreener()
	for _, variant := range []string{"spam", "SPAM", "SpAm"} {
		verdict := s.Screen("Weekly digest", "This message contains "+variant+" somewhere in the body text.")
		require.False(t, verdict.Approved, "casing %q should be flagged", variant)
		found := false
		for _, issue := range verdict.Issues {
			if strings.Contains(strings.ToLower(issue), "spam") {
				found = true
			}
		}
		assert.True(t, found, "issue list should name the matched word for %q", variant)
	}
}

func TestScreenerBannedWordInTitle(t *testing.T) {
	s := NewScreener()
	verdict := s.Screen("Casino night fundraiser", "Join the student union for board games and snacks this friday evening.")
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Issues, "Contains banned word: casino")
}

func TestScreenerPatternChecks(t *testing.T) {
	s := NewScreener()

	verdict := s.Screen("Links", "Please check https://example.edu/schedule for the full timetable details.")
	assert.Contains(t, verdict.Issues, "Contains URLs")

	verdict = s.Screen("Phone", "Call the registrar at 0123456789 before the enrolment deadline closes.")
	assert.Contains(t, verdict.Issues, "Contains long numbers")

	verdict = s.Screen("Caps", "REMINDER everyone must submit their thesis drafts before the deadline.")
	assert.Contains(t, verdict.Issues, "Contains excessive capitalization")
}

func TestScreenerLengthBounds(t *testing.T) {
	s := NewScreener()

	verdict := s.Screen("Short", "tiny")
	assert.Contains(t, verdict.Issues, "Content is too short")
	assert.False(t, verdict.Approved)

	verdict = s.Screen("Long", strings.Repeat("lorem ipsum dolor sit amet ", 500))
	assert.Contains(t, verdict.Issues, "Content is too long")
}

func TestScreenerMeaningfulWordCount(t *testing.T) {
	s := NewScreener()
	verdict := s.Screen("Sparse", "a b c d e f")
	assert.Contains(t, verdict.Issues, "Content lacks sufficient meaningful text")
}

func TestScreenerSeverityThresholds(t *testing.T) {
	s := NewScreener()

	// zero issues -> low
	verdict := s.Screen("Hours", "The gym reopens on monday with extended evening opening hours.")
	assert.Equal(t, SeverityLow, verdict.Severity)

	// one issue -> medium
	verdict = s.Screen("Link", "Timetables have moved to https://example.edu/new-location for this semester.")
	require.Len(t, verdict.Issues, 1)
	assert.Equal(t, SeverityMedium, verdict.Severity)

	// more than two issues -> high
	verdict = s.Screen("Bad", "SPAMMY http://x.y 0123456789")
	require.Greater(t, len(verdict.Issues), 2)
	assert.Equal(t, SeverityHigh, verdict.Severity)
}

func TestScreenerCustomBannedList(t *testing.T) {
	s := NewScreener("crypto")
	verdict := s.Screen("Finance club", "We will discuss crypto markets and their regulation this semester.")
	assert.False(t, verdict.Approved)
	assert.Contains(t, verdict.Issues, "Contains banned word: crypto")

	// default words are not active when a custom list is supplied
	verdict = s.Screen("Kitchen", "The cafeteria will stop serving canned spam sandwiches from next week.")
	assert.True(t, verdict.Approved)
}
