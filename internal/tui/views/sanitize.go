package views

import (
	"strings"
	"unicode/utf8"
)

// sanitizeForTerminal drops codepoints that tcell renders badly or that let
// a remote user reshape the screen: emoji modifiers and joiners, variation
// selectors, bidi overrides and C0/C1 control characters other than newline
// and tab. Invalid UTF-8 bytes become U+FFFD.
func sanitizeForTerminal(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if isProblematicRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isProblematicRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t':
		return false
	case r < 0x20 || (r >= 0x7F && r <= 0x9F):
		return true
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D: // zero width joiner
		return true
	case r >= 0x202A && r <= 0x202E, r >= 0x2066 && r <= 0x2069: // bidi embeddings, isolates
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
