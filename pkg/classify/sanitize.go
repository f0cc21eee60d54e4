package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the longest canonical name accepted, in runes. Longer
// output is an explanation rather than a label.
const MaxNameLength = 64

var labelPrefix = regexp.MustCompile(`(?i)^waste item:?\s*`)

// Quote characters accepted at each end. The ends need not match.
const (
	openingQuotes = "\"'`“‘"
	closingQuotes = "\"'`”’"
)

// Sanitize turns raw model text into a canonical name. It trims whitespace,
// removes one leading and one trailing quote when both are present, removes
// a leading "waste item:" label and trims again, repeating until nothing
// changes.
// Multi-line or overlong results yield "". Sanitize is idempotent.
func Sanitize(raw string) string {
	s := raw
	for {
		next := sanitizeOnce(s)
		if next == s {
			break
		}
		s = next
	}

	if strings.ContainsAny(s, "\r\n") || utf8.RuneCountInString(s) > MaxNameLength {
		return ""
	}
	return s
}

func sanitizeOnce(s string) string {
	s = strings.TrimSpace(s)
	s = stripQuotes(s)
	s = labelPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stripQuotes removes the first and last rune when both are quotes.
func stripQuotes(s string) string {
	if utf8.RuneCountInString(s) < 2 {
		return s
	}
	first, firstSize := utf8.DecodeRuneInString(s)
	last, lastSize := utf8.DecodeLastRuneInString(s)

	if strings.ContainsRune(openingQuotes, first) && strings.ContainsRune(closingQuotes, last) {
		return s[firstSize : len(s)-lastSize]
	}
	return s
}
