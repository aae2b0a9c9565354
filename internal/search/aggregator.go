package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/heuristics"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

const (
	resultsPageEndpoint   = "https://html.duckduckgo.com/html/"
	instantAnswerEndpoint = "https://api.duckduckgo.com/"
	engineDomain          = "duckduckgo.com"
)

var blockMarkers = []string{
	"anomaly-modal",
	"detected unusual traffic",
	"bots use duckduckgo too",
	"challenge-form",
}

// Aggregator combines the scraped results page and the instant-answer API of
// an unauthenticated search engine into one deduplicated URL list.
type Aggregator struct {
	cfg       config.SearchConfig
	collector *colly.Collector
	logger    *logger.Logger
	mu        sync.Mutex
	uaIndex   int

	// endpoint overrides for tests
	resultsPageURL   string
	instantAnswerURL string
	engineHost       string
}

var searchUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

func NewAggregator(cfg config.SearchConfig, log *logger.Logger) *Aggregator {
	collector := colly.NewCollector(
		colly.AllowedDomains(),
		colly.IgnoreRobotsTxt(),
	)
	collector.SetRequestTimeout(cfg.Timeout)

	return &Aggregator{
		cfg:              cfg,
		collector:        collector,
		logger:           log,
		resultsPageURL:   resultsPageEndpoint,
		instantAnswerURL: instantAnswerEndpoint,
		engineHost:       engineDomain,
	}
}

// Search runs both lookups concurrently and merges them: scraped-page hits
// keep their order and come first, instant-answer hits are appended, the
// merged list is deduplicated and capped at the configured limit.
func (a *Aggregator) Search(ctx context.Context, query string) (*models.WebSearchResult, error) {
	start := time.Now()
	result := &models.WebSearchResult{Query: query, FetchedAt: start}

	var (
		wg          sync.WaitGroup
		scrapedURLs []string
		instantURLs []string
		blocked     bool
		scrapeErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		scrapedURLs, blocked, scrapeErr = a.scrapeResultsPage(ctx, query)
	}()
	go func() {
		defer wg.Done()
		var err error
		instantURLs, err = a.fetchInstantAnswers(ctx, query)
		if err != nil {
			a.logger.Debug("instant answer lookup failed", "query", query, "error", err.Error())
		}
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return result, models.NewTimeoutError("SEARCH_CANCELLED", "web search cancelled").WithCause(ctx.Err())
	}

	seen := make(map[string]bool)
	for _, raw := range append(scrapedURLs, instantURLs...) {
		normalized := heuristics.NormalizeURL(raw)
		if normalized == "" || seen[normalized] || a.isEngineURL(normalized) {
			continue
		}
		seen[normalized] = true
		result.URLs = append(result.URLs, normalized)
		if a.cfg.ResultLimit > 0 && len(result.URLs) >= a.cfg.ResultLimit {
			break
		}
	}

	result.Diagnostics.ResultCount = len(result.URLs)
	result.Diagnostics.Blocked = blocked && len(scrapedURLs) == 0

	a.logger.LogService("search", "Search", time.Since(start), map[string]interface{}{
		"query":   query,
		"results": len(result.URLs),
		"blocked": result.Diagnostics.Blocked,
	}, scrapeErr)

	if scrapeErr != nil && len(result.URLs) == 0 && !result.Diagnostics.Blocked {
		return result, models.WrapExternalError("SEARCH_SCRAPE_FAILED", scrapeErr)
	}
	return result, nil
}

// scrapeResultsPage pulls the HTML results page and extracts result anchors.
// The engine wraps every result in its own redirect URL, so each href is
// unwrapped before use.
func (a *Aggregator) scrapeResultsPage(ctx context.Context, query string) ([]string, bool, error) {
	body, err := a.fetch(ctx, a.resultsPageURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, false, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}

	var urls []string
	doc.Find("a.result__a, a.result__url").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if target := decodeRedirectHref(href); target != "" {
			urls = append(urls, target)
		}
	})

	blocked := false
	if len(urls) == 0 {
		lower := strings.ToLower(string(body))
		for _, marker := range blockMarkers {
			if strings.Contains(lower, marker) {
				blocked = true
				break
			}
		}
	}
	return urls, blocked, nil
}

type instantAnswer struct {
	AbstractURL   string         `json:"AbstractURL"`
	Redirect      string         `json:"Redirect"`
	Results       []relatedTopic `json:"Results"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	FirstURL string         `json:"FirstURL"`
	Topics   []relatedTopic `json:"Topics"`
}

func (a *Aggregator) fetchInstantAnswers(ctx context.Context, query string) ([]string, error) {
	endpoint := fmt.Sprintf("%s?q=%s&format=json&no_html=1&no_redirect=1&skip_disambig=0",
		a.instantAnswerURL, url.QueryEscape(query))
	body, err := a.fetch(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var answer instantAnswer
	if err := json.Unmarshal(body, &answer); err != nil {
		return nil, err
	}

	var urls []string
	if answer.AbstractURL != "" {
		urls = append(urls, answer.AbstractURL)
	}
	if answer.Redirect != "" {
		urls = append(urls, answer.Redirect)
	}
	urls = appendTopicURLs(urls, answer.Results)
	urls = appendTopicURLs(urls, answer.RelatedTopics)
	return urls, nil
}

// related topics nest one level per disambiguation group
func appendTopicURLs(urls []string, topics []relatedTopic) []string {
	for _, topic := range topics {
		if topic.FirstURL != "" {
			urls = append(urls, topic.FirstURL)
		}
		urls = appendTopicURLs(urls, topic.Topics)
	}
	return urls
}

func (a *Aggregator) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	c := a.collector.Clone()
	c.Context = ctx

	var (
		body     []byte
		fetchErr error
	)
	c.OnRequest(func(r *colly.Request) {
		a.mu.Lock()
		userAgent := searchUserAgents[a.uaIndex]
		a.uaIndex = (a.uaIndex + 1) % len(searchUserAgents)
		a.mu.Unlock()
		r.Headers.Set("User-Agent", userAgent)
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := c.Visit(endpoint); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

// decodeRedirectHref unwraps the engine's /l/?uddg=<encoded> result wrapper.
// Plain absolute hrefs pass through untouched.
func decodeRedirectHref(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	// Query() already percent-decodes the wrapped target
	if wrapped := parsed.Query().Get("uddg"); wrapped != "" {
		parsed, err = url.Parse(wrapped)
		if err != nil {
			return ""
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ""
	}
	return parsed.String()
}

func (a *Aggregator) isEngineURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	if idx := strings.IndexByte(host, ':'); idx >= 0 {
		host = host[:idx]
	}
	return host == a.engineHost || strings.HasSuffix(host, "."+a.engineHost)
}

// HealthCheck issues a minimal instant-answer request.
func (a *Aggregator) HealthCheck(ctx context.Context) error {
	_, err := a.fetchInstantAnswers(ctx, "ping")
	if err != nil {
		return models.WrapExternalError("SEARCH_UNREACHABLE", err)
	}
	return nil
}
