package images

import (
	"net/url"
	"strings"

	"verity-ai-gateway/internal/heuristics"
)

// hosts that reject hotlinking or wrap images behind auth walls
var blockedHostSuffixes = []string{
	"pinterest.com",
	"pinimg.com",
	"instagram.com",
	"cdninstagram.com",
	"facebook.com",
	"fbcdn.net",
	"tiktok.com",
	"tiktokcdn.com",
	"x.com",
	"twitter.com",
	"twimg.com",
	"gettyimages.com",
	"shutterstock.com",
	"alamy.com",
	"istockphoto.com",
}

// hosts known to serve stable, hotlink-tolerant media
var hostReliability = map[string]float64{
	"upload.wikimedia.org": 3.0,
	"commons.wikimedia.org": 3.0,
	"wikipedia.org":         2.5,
	"wikimedia.org":         2.5,
	"staticflickr.com":      2.0,
	"flickr.com":            1.5,
	"githubusercontent.com": 1.5,
	"unsplash.com":          1.5,
	"pexels.com":            1.5,
}

// IsBlockedHost reports whether the URL's host belongs to a hotlink-hostile
// platform. Checked at harvest time and again at every redirect hop.
func IsBlockedHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(parsed.Hostname())
	for _, suffix := range blockedHostSuffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func hostScore(rawURL string) float64 {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	host := strings.ToLower(parsed.Hostname())
	for suffix, score := range hostReliability {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return score
		}
	}
	return 0
}

// relevanceScore measures token overlap between the candidate's title/URL and
// the topic, after stopword removal and diacritic folding.
func relevanceScore(topicTokens []string, title, imageURL string) float64 {
	if len(topicTokens) == 0 {
		return 0
	}
	haystack := strings.ToLower(heuristics.FoldDiacritics(title + " " + imageURL))
	matches := 0
	for _, token := range topicTokens {
		if strings.Contains(haystack, token) {
			matches++
		}
	}
	return 4.0 * float64(matches) / float64(len(topicTokens))
}
