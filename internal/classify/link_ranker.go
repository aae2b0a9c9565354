package classify

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"verity-ai-gateway/internal/heuristics"
)

// RankedLink is one outbound link with its item-page score.
type RankedLink struct {
	URL   string
	Score float64
}

var (
	itemSlugPattern = regexp.MustCompile(`/[\w-]*\d{3,}[\w-]*(/|$)|/[a-z0-9]+(-[a-z0-9]+){2,}(/|$)`)
	navPathPattern  = regexp.MustCompile(`(?i)/(login|signin|signup|register|account|privacy|terms|legal|contact|cookie|rss|feed|tag|category|page/\d+)(/|$)`)
	assetExtPattern = regexp.MustCompile(`(?i)\.(css|js|png|jpe?g|gif|svg|ico|woff2?|zip|exe)$`)
)

// RankLinks scores a page's outbound links for "item page" likeness: same
// host as the base page, deep slugged paths, token overlap with the topic.
// Navigation, auth and asset links score zero and are dropped. The result is
// sorted best-first and capped at limit.
func RankLinks(baseURL string, links []string, topic string, limit int) []RankedLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	topicTokens := heuristics.InformativeTokens(topic)

	seen := make(map[string]bool)
	var ranked []RankedLink
	for _, raw := range links {
		link, err := base.Parse(strings.TrimSpace(raw))
		if err != nil {
			continue
		}
		if link.Scheme != "http" && link.Scheme != "https" {
			continue
		}
		normalized := heuristics.NormalizeURL(link.String())
		if seen[normalized] || normalized == heuristics.NormalizeURL(baseURL) {
			continue
		}
		seen[normalized] = true

		score := scoreLink(base, link, topicTokens)
		if score <= 0 {
			continue
		}
		ranked = append(ranked, RankedLink{URL: normalized, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func scoreLink(base, link *url.URL, topicTokens []string) float64 {
	path := link.Path
	if navPathPattern.MatchString(path) || assetExtPattern.MatchString(path) {
		return 0
	}

	var score float64

	if strings.EqualFold(link.Host, base.Host) {
		score += 1.0
	} else {
		score += 0.2
	}

	depth := strings.Count(strings.Trim(path, "/"), "/")
	switch {
	case depth >= 1 && depth <= 3:
		score += 1.0
	case depth > 3:
		score += 0.4
	}

	if itemSlugPattern.MatchString(path) {
		score += 1.5
	}

	if len(topicTokens) > 0 {
		haystack := strings.ToLower(path + " " + link.RawQuery)
		matches := 0
		for _, token := range topicTokens {
			if strings.Contains(haystack, token) {
				matches++
			}
		}
		score += 2.0 * float64(matches) / float64(len(topicTokens))
	}

	return score
}
