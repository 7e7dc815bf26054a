package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 64

// Slug lowercases title, NFC-normalizes it so combining-mark variants of
// the same visible string collapse to one form, replaces runs of
// non-alphanumeric characters with a single hyphen, trims leading and
// trailing hyphens, and truncates to 64 characters.
func Slug(title string) string {
	normalized := norm.NFC.String(title)
	var b strings.Builder
	lastWasHyphen := false
	for _, r := range strings.ToLower(normalized) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasHyphen = false
		default:
			if !lastWasHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastWasHyphen = true
			}
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if runes := []rune(s); len(runes) > maxSlugLen {
		s = string(runes[:maxSlugLen])
		s = strings.TrimRight(s, "-")
	}
	return s
}
