// Package sanitizer strips markup from operator-provided text before it is rendered.
package sanitizer

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer reduces HTML input to plain text.
type TextSanitizer interface {
	Sanitize(input string) string
}

// StrictSanitizer implements TextSanitizer with bluemonday's strict policy,
// which allows no elements or attributes at all.
type StrictSanitizer struct {
	policy    *bluemonday.Policy
	maxLength int
}

// NewStrictSanitizer creates a sanitizer that truncates its output to maxLength runes.
// maxLength <= 0 disables truncation.
func NewStrictSanitizer(maxLength int) *StrictSanitizer {
	return &StrictSanitizer{
		policy:    bluemonday.StrictPolicy(),
		maxLength: maxLength,
	}
}

// Sanitize removes every tag from input, unescapes the entities bluemonday
// leaves behind, and collapses whitespace. The result is plain text; callers
// still escape it for the context they render into.
func (s *StrictSanitizer) Sanitize(input string) string {
	if input == "" {
		return ""
	}

	text := html.UnescapeString(s.policy.Sanitize(input))
	text = strings.Join(strings.FieldsFunc(text, unicode.IsSpace), " ")

	if s.maxLength > 0 {
		if runes := []rune(text); len(runes) > s.maxLength {
			text = strings.TrimSpace(string(runes[:s.maxLength]))
		}
	}
	return text
}
