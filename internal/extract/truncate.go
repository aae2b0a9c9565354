package extract

import (
	"strings"
	"unicode/utf8"
)

// Truncate cuts text to at most maxChars characters on a clean boundary,
// never splitting a codepoint. The second return value reports whether the
// cap was hit.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 {
		return "", text != ""
	}
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text, false
	}

	cut := string(runes[:maxChars])

	// prefer ending on a sentence or word boundary near the cap
	if idx := strings.LastIndexAny(cut, ".!?\n"); idx > maxChars*3/4 {
		cut = cut[:idx+1]
	} else if idx := strings.LastIndex(cut, " "); idx > maxChars*3/4 {
		cut = cut[:idx]
	}

	cut = strings.TrimRight(cut, " \t\n")
	if !utf8.ValidString(cut) {
		cut = strings.ToValidUTF8(cut, "")
	}
	return cut, true
}
