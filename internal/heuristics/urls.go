package heuristics

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]}]+`)

// trailing punctuation that belongs to the sentence, not the URL
const urlTrailingCut = ".,;:!?'\""

// ExtractURLs pulls http/https URLs out of free text. The function is
// idempotent on its own output and never returns a URL with another scheme.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, match := range matches {
		candidate := strings.TrimRight(match, urlTrailingCut)
		parsed, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			continue
		}
		if parsed.Host == "" {
			continue
		}
		if !seen[candidate] {
			seen[candidate] = true
			urls = append(urls, candidate)
		}
	}
	return urls
}

// NormalizeURL strips fragments and default ports so that two spellings of
// the same address compare equal.
func NormalizeURL(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Host == "" {
		return raw
	}
	parsed.Fragment = ""
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	if parsed.Path == "/" {
		parsed.Path = ""
	}
	return parsed.String()
}
