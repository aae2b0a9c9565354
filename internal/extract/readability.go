package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"verity-ai-gateway/internal/models"
)

// parsedPage holds everything a single goquery pass pulls out of an HTML
// document before truncation and classification.
type parsedPage struct {
	Title         string
	Description   string
	CanonicalURL  string
	EmbedType     string
	Facts         models.StructuredFacts
	Headings      []string
	BodyText      string
	OutboundLinks []string
	FeedURLs      []string
}

var boilerplateSelectors = []string{
	"script", "style", "noscript", "template", "iframe", "svg",
	"nav", "header", "footer", "aside", "form",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	".nav", ".navbar", ".menu", ".sidebar", ".footer", ".header",
	".cookie", ".consent", ".advertisement", ".ad", ".social-share",
}

var contentSelectors = []string{
	"article", "main", "[role=main]",
	"#content", "#main-content", ".post-content", ".article-body",
	".entry-content", ".story-body",
}

// parseHTML runs the readability pass over a raw HTML body. It never fails
// hard: a page with no recognizable content comes back with empty fields and
// the caller decides whether that is enough.
func parseHTML(body []byte) (*parsedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &parsedPage{}

	page.Title = firstNonEmpty(
		metaContent(doc, `meta[property="og:title"]`),
		strings.TrimSpace(doc.Find("title").First().Text()),
		strings.TrimSpace(doc.Find("h1").First().Text()),
	)
	page.Description = firstNonEmpty(
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
	)
	page.EmbedType = metaContent(doc, `meta[property="og:type"]`)
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		page.CanonicalURL = strings.TrimSpace(href)
	}

	if author := metaContent(doc, `meta[name="author"]`); author != "" {
		page.Facts.Author = author
	}
	if published := metaContent(doc, `meta[property="article:published_time"]`); published != "" {
		page.Facts.Published = published
	}
	if modified := metaContent(doc, `meta[property="article:modified_time"]`); modified != "" {
		page.Facts.Modified = modified
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		parseJSONLD(s.Text(), &page.Facts)
	})

	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		linkType, _ := s.Attr("type")
		href, _ := s.Attr("href")
		switch strings.ToLower(strings.TrimSpace(linkType)) {
		case "application/rss+xml", "application/atom+xml", "application/feed+json":
			if href = strings.TrimSpace(href); href != "" {
				page.FeedURLs = append(page.FeedURLs, href)
			}
		}
	})

	// collect links and headings before boilerplate removal so navigation
	// targets still reach the link ranker
	seenLinks := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if !seenLinks[href] {
			seenLinks[href] = true
			page.OutboundLinks = append(page.OutboundLinks, href)
		}
	})

	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := collapseSpace(s.Text())
		if text != "" && len(page.Headings) < 40 {
			page.Headings = append(page.Headings, text)
		}
	})

	for _, selector := range boilerplateSelectors {
		doc.Find(selector).Remove()
	}

	page.BodyText = extractBodyText(doc)
	return page, nil
}

// extractBodyText prefers a dedicated content container and falls back to the
// whole body. Within the container, block elements are joined with newlines so
// paragraph structure survives.
func extractBodyText(doc *goquery.Document) string {
	var container *goquery.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			container = sel
			break
		}
	}
	if container == nil {
		container = doc.Find("body").First()
	}
	if container.Length() == 0 {
		return ""
	}

	var blocks []string
	container.Find("p, li, td, blockquote, pre, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Filter("p, li, blockquote").Length() > 0 {
			return
		}
		text := collapseSpace(s.Text())
		if len(text) >= 2 {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		return collapseSpace(container.Text())
	}
	return strings.Join(blocks, "\n")
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
