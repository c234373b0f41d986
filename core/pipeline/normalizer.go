package pipeline

import (
	"regexp"
	"strings"
	"unicode"
)

var citationPattern = regexp.MustCompile(`(\[\d+\])+`)

// Normalize cleans scraped or stored text before chunking.
// It removes citation markers like [12], turns newlines, slashes, backslashes
// and brackets into spaces, separates sentence punctuation glued to the next
// word and collapses whitespace. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	text = citationPattern.ReplaceAllString(text, "")

	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	prev := ' '
	for i, r := range runes {
		switch r {
		case '\u00a0', '\n', '\r', '/', '\\', '[', ']':
			r = ' '
		}
		b.WriteRune(r)

		if (r == '.' || r == '!' || r == '?') && !unicode.IsSpace(prev) &&
			i+1 < len(runes) && unicode.IsLetter(runes[i+1]) {
			b.WriteRune(' ')
			r = ' '
		}
		prev = r
	}

	return strings.Join(strings.Fields(b.String()), " ")
}
