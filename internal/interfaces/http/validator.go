package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxLoggedTextLength bounds how much mention text is written to logs.
const MaxLoggedTextLength = 200

var mentionPattern = regexp.MustCompile(`<@[^>]*>`)

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// StripMentions drops user mention tokens such as <@U024BE7LH> so their
// ids cannot match keywords. Channel links and special mentions stay.
func StripMentions(s string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(s, " "))
}

// TruncateString safely truncates a string to max runes
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen])
}

// CleanEventText prepares mention text for intent matching. The full text
// is kept.
func CleanEventText(s string) string {
	return StripMentions(SanitizeString(s))
}
