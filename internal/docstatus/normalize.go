package docstatus

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for matching: NFKD, non-ASCII dropped, lower case,
// only [a-z0-9] and single spaces kept.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	folder := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	folded, _, err := transform.String(folder, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// digitsOnly keeps the ASCII digits of s.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// capitalCase upper-cases the first letter of every word and lowers the rest.
// A Caser keeps state, so each call builds its own.
func capitalCase(text string) string {
	caser := cases.Title(language.Spanish)
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// isDocumentNumber reports whether s is 8 to 10 ASCII digits.
func isDocumentNumber(s string) bool {
	if len(s) < 8 || len(s) > 10 {
		return false
	}
	return digitsOnly(s) == s
}
