package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/classify"
	"verity-ai-gateway/internal/heuristics"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

// Service reduces a single URL to a SourceDocument, trying strategies in a
// fixed order: direct fetch and readability parse, render proxy, feed
// fallbacks. First attempt that yields useful text wins.
type Service struct {
	cfg     config.ExtractionConfig
	fetcher *fetcher
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

func NewService(cfg config.ExtractionConfig, log *logger.Logger) *Service {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "render-proxy",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     45 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 4
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Service{
		cfg:     cfg,
		fetcher: newFetcher(cfg.FetchTimeout, log),
		breaker: breaker,
		logger:  log,
	}
}

// Extract runs the fallback chain for one URL. It degrades instead of
// failing: a dead URL still comes back as a descriptor with an extraction
// note, and the error is non-nil only when not even that could be built.
func (s *Service) Extract(ctx context.Context, rawURL string) (*models.SourceDocument, error) {
	start := time.Now()

	doc := &models.SourceDocument{
		RequestedURL:  rawURL,
		NormalizedURL: heuristics.NormalizeURL(rawURL),
		FetchedAt:     start,
		Kind:          models.KindGeneric,
	}

	result, fetchErr := s.fetcher.Fetch(ctx, rawURL)
	if result != nil {
		doc.HTTPStatus = result.StatusCode
		doc.ContentType = result.ContentType
		if result.FinalURL != "" {
			doc.NormalizedURL = heuristics.NormalizeURL(result.FinalURL)
		}
	}
	if ctx.Err() != nil {
		s.logService("Extract", start, rawURL, ctx.Err())
		return doc, models.NewTimeoutError("EXTRACTION_CANCELLED", "extraction cancelled").WithCause(ctx.Err())
	}

	var page *parsedPage
	directOK := fetchErr == nil && result != nil && result.StatusCode == 200 && len(result.Body) > 0

	switch {
	case directOK && result.IsHTML():
		parsed, err := parseHTML(result.Body)
		if err != nil {
			doc.ExtractionNote = "html parse failed"
		} else {
			page = parsed
			s.applyPage(doc, page)
		}
	case directOK:
		// raw non-HTML bodies are never fed forward
		doc.Kind = classify.Classify(doc, "")
		doc.ExtractionNote = "non-html content"
	}

	if len(doc.BodyText) < s.cfg.MinUsefulChars && shouldTryProxy(result, fetchErr, directOK) {
		s.tryRenderProxy(ctx, doc, rawURL)
	}

	if len(doc.BodyText) < s.cfg.MinUsefulChars {
		s.tryFeedFallback(ctx, doc, page, result)
	}

	doc.BodyText, doc.Truncated = Truncate(doc.BodyText, s.cfg.MaxChars)

	if page != nil {
		doc.Kind = classify.Classify(doc, page.EmbedType)
	}

	if !doc.HasContent() {
		if doc.ExtractionNote == "" {
			doc.ExtractionNote = "no extractable content"
		}
		err := fetchErr
		if err == nil {
			err = fmt.Errorf("no content at %s (status %d)", rawURL, doc.HTTPStatus)
		}
		s.logService("Extract", start, rawURL, err)
		return doc, models.NewAcquisitionError("NO_CONTENT", "extraction produced no content").WithCause(err)
	}

	s.logService("Extract", start, rawURL, nil)
	return doc, nil
}

func (s *Service) applyPage(doc *models.SourceDocument, page *parsedPage) {
	doc.Title = page.Title
	doc.Description = page.Description
	doc.Facts = page.Facts
	doc.Headings = page.Headings
	doc.BodyText = page.BodyText
	doc.OutboundLinks = page.OutboundLinks
	if page.CanonicalURL != "" {
		if canonical := heuristics.NormalizeURL(page.CanonicalURL); canonical != "" && strings.HasPrefix(canonical, "http") {
			doc.NormalizedURL = canonical
		}
	}
}

func shouldTryProxy(result *fetchResult, fetchErr error, directOK bool) bool {
	if fetchErr != nil || !directOK {
		return true
	}
	return result.Blocked() || result.IsHTML()
}

// tryRenderProxy asks the text-rendering proxy for the page. The result only
// replaces what the direct fetch produced when it is materially longer; the
// bar scales with how much text was already there.
func (s *Service) tryRenderProxy(ctx context.Context, doc *models.SourceDocument, rawURL string) {
	if s.cfg.RenderProxyURL == "" {
		return
	}

	proxyURL := strings.TrimSuffix(s.cfg.RenderProxyURL, "/") + "/" + rawURL
	raw, err := s.breaker.Execute(func() (interface{}, error) {
		result, err := s.fetcher.Fetch(ctx, proxyURL)
		if err != nil {
			return nil, err
		}
		if result.StatusCode != 200 || len(result.Body) == 0 {
			return nil, fmt.Errorf("render proxy returned status %d", result.StatusCode)
		}
		return result.Body, nil
	})
	if err != nil {
		s.logger.Debug("render proxy fallback failed", "url", rawURL, "error", err.Error())
		return
	}

	text := strings.TrimSpace(string(raw.([]byte)))
	original := len(doc.BodyText)
	threshold := original + original/2
	if min := original + 200; threshold < min {
		threshold = min
	}
	if len(text) <= threshold {
		return
	}

	doc.BodyText = text
	doc.ExtractionNote = "rendered via proxy"
	if doc.Title == "" {
		if line := firstLine(text); len(line) <= 160 {
			doc.Title = strings.TrimLeft(line, "# ")
		}
	}
}

// tryFeedFallback covers pages that never render server-side but publish a
// feed: blogs behind JS shells and video-platform channel pages.
func (s *Service) tryFeedFallback(ctx context.Context, doc *models.SourceDocument, page *parsedPage, result *fetchResult) {
	var candidates []string

	if result != nil {
		if feedURL, ok := videoChannelFeedURL(doc.RequestedURL, result.Body); ok {
			candidates = append(candidates, feedURL)
		}
	}
	if page != nil {
		base, err := url.Parse(doc.RequestedURL)
		if err == nil {
			for _, raw := range page.FeedURLs {
				if resolved, err := base.Parse(raw); err == nil {
					candidates = append(candidates, resolved.String())
				}
			}
		}
	}

	for _, feedURL := range candidates {
		feed, err := fetchFeed(ctx, s.fetcher, feedURL)
		if err != nil {
			s.logger.Debug("feed fallback failed", "feed_url", feedURL, "error", err.Error())
			continue
		}
		body := renderFeed(feed)
		if body == "" {
			continue
		}
		doc.BodyText = body
		doc.ExtractionNote = "summarized from feed"
		if doc.Title == "" {
			doc.Title = feed.Title
		}
		return
	}
}

// HealthCheck verifies the service can still reach the render proxy tier.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.breaker.State() == gobreaker.StateOpen {
		return models.NewExternalError("BREAKER_OPEN", "render proxy circuit breaker open")
	}
	return nil
}

func (s *Service) logService(operation string, start time.Time, rawURL string, err error) {
	s.logger.LogService("extraction", operation, time.Since(start), map[string]interface{}{
		"url": rawURL,
	}, err)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
