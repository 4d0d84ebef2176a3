package moderation

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity grades how many issues a screening raised.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Verdict is the outcome of screening a notice draft. It is advisory: the
// submission pipeline surfaces it to the author but never blocks on it.
type Verdict struct {
	Approved bool     `json:"approved"`
	Issues   []string `json:"issues"`
	Severity Severity `json:"severity"`
}

const (
	MinContentLength = 10
	MaxContentLength = 10000

	minMeaningfulWords  = 3
	meaningfulWordRunes = 2
)

var defaultBannedWords = []string{
	"spam",
	"scam",
	"casino",
	"lottery",
	"viagra",
	"bitcoin doubler",
	"get rich quick",
}

var (
	urlPattern       = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	longDigitPattern = regexp.MustCompile(`\d{10,}`)
	shoutingPattern  = regexp.MustCompile(`[A-Z]{5,}`)
)

// Screener evaluates notice drafts against heuristic content rules.
type Screener struct {
	bannedWords []string
}

// NewScreener builds a screener. With no words given the default banned list
// is used.
func NewScreener(bannedWords ...string) *Screener {
	if len(bannedWords) == 0 {
		bannedWords = defaultBannedWords
	}
	lowered := make([]string, len(bannedWords))
	for i, w := range bannedWords {
		lowered[i] = strings.ToLower(w)
	}
	return &Screener{bannedWords: lowered}
}

// Screen checks title and content and returns the aggregate verdict.
// Approved is true iff no issue was raised.
func (s *Screener) Screen(title, content string) Verdict {
	var issues []string

	combined := strings.ToLower(title + " " + content)
	for _, word := range s.bannedWords {
		if strings.Contains(combined, word) {
			issues = append(issues, fmt.Sprintf("Contains banned word: %s", word))
		}
	}

	if urlPattern.MatchString(content) {
		issues = append(issues, "Contains URLs")
	}
	if longDigitPattern.MatchString(content) {
		issues = append(issues, "Contains long numbers")
	}
	if shoutingPattern.MatchString(content) {
		issues = append(issues, "Contains excessive capitalization")
	}

	if len(content) < MinContentLength {
		issues = append(issues, "Content is too short")
	} else if len(content) > MaxContentLength {
		issues = append(issues, "Content is too long")
	}

	if countMeaningfulWords(content) < minMeaningfulWords {
		issues = append(issues, "Content lacks sufficient meaningful text")
	}

	return Verdict{
		Approved: len(issues) == 0,
		Issues:   issues,
		Severity: severityFor(len(issues)),
	}
}

func countMeaningfulWords(content string) int {
	count := 0
	for _, token := range strings.Fields(content) {
		if len([]rune(token)) > meaningfulWordRunes {
			count++
		}
	}
	return count
}

func severityFor(issueCount int) Severity {
	switch {
	case issueCount > 2:
		return SeverityHigh
	case issueCount > 0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
