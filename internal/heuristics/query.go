package heuristics

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopwords = map[string]bool{
	// en
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "this": true, "that": true, "with": true, "from": true,
	"what": true, "how": true, "does": true, "which": true, "where": true,
	"when": true, "who": true, "why": true, "can": true, "will": true,
	"not": true, "you": true, "your": true, "about": true, "please": true,
	"show": true, "tell": true, "give": true, "find": true, "some": true,
	// fr
	"les": true, "des": true, "une": true, "est": true, "sont": true,
	"dans": true, "pour": true, "avec": true, "sur": true, "qui": true,
	"que": true, "quoi": true, "comment": true, "quel": true, "quelle": true,
	"moi": true, "mes": true, "ses": true, "aux": true,
	// de
	"der": true, "die": true, "das": true, "und": true, "ist": true,
	"sind": true, "ein": true, "eine": true, "mit": true, "von": true,
	"wie": true, "wer": true, "wo": true, "mir": true, "mich": true,
	// es
	"los": true, "las": true, "uno": true, "una": true, "con": true,
	"por": true, "para": true, "como": true, "donde": true, "cual": true,
}

var diacriticFolder = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// FoldDiacritics maps accented characters to their base form so that token
// comparisons survive spelling variation ("Müller" vs "Muller").
func FoldDiacritics(text string) string {
	folded, _, err := transform.String(diacriticFolder, text)
	if err != nil {
		return text
	}
	return folded
}

// InformativeTokens tokenizes the text, folds diacritics, lowercases and
// drops stopwords plus tokens shorter than 3 runes.
func InformativeTokens(text string) []string {
	words := strings.FieldsFunc(FoldDiacritics(strings.ToLower(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var tokens []string
	seen := make(map[string]bool)
	for _, word := range words {
		if len([]rune(word)) < 3 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		tokens = append(tokens, word)
	}
	return tokens
}

// IsLowQualityQuery applies the configurable minimums. Thresholds are tuned
// empirically; callers pass them from config.
func IsLowQualityQuery(query string, minLength, minInformativeWords int) bool {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minLength {
		return true
	}
	return len(InformativeTokens(query)) < minInformativeWords
}

var (
	whoIsPattern        = regexp.MustCompile(`(?i)^\s*(who\s+is|who's|qui\s+est|wer\s+ist|qui[ée]n\s+es)\s+(.{2,80})\??\s*$`)
	latestVideoPattern  = regexp.MustCompile(`(?i)\b(latest|newest|derni[èe]re?|neueste[sn]?|[úu]ltimo)\b.*\b(video|vid[ée]o|episode|[ée]pisode|upload)\b`)
	versionedAPIPattern = regexp.MustCompile(`(?i)\b([a-z][\w.-]+)\s+(v?\d+(\.\d+)+|v\d+)\b.*\b(api|sdk|library|endpoint|method|function)\b`)
	apiVersionFlip      = regexp.MustCompile(`(?i)\b(api|sdk|library)\b.*\b([a-z][\w.-]+)\s+(v?\d+(\.\d+)+|v\d+)\b`)
)

// SynthesizeSearchQuery turns a user message into a search query using
// rule-based rewriting: biography framing for "who is X", a platform hint for
// latest-video intents, a documentation suffix for versioned API questions.
// Everything else passes through trimmed.
func SynthesizeSearchQuery(message string) string {
	message = strings.TrimSpace(message)

	if m := whoIsPattern.FindStringSubmatch(message); m != nil {
		subject := strings.TrimRight(strings.TrimSpace(m[2]), "?!. ")
		return subject + " biography"
	}

	if latestVideoPattern.MatchString(message) && !strings.Contains(strings.ToLower(message), "youtube") {
		return message + " youtube"
	}

	if versionedAPIPattern.MatchString(message) || apiVersionFlip.MatchString(message) {
		return message + " documentation"
	}

	return message
}

// RefinePrompt builds the instruction used for the one-shot query refinement
// round when a search returned zero URLs.
func RefinePrompt(query string) string {
	return "The web search query \"" + query + "\" returned no results. " +
		"Reply with a single more specific search query for the same information need. " +
		"Reply with the query text only, no quotes, no explanation."
}
