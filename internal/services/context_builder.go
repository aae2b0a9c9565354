package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/classify"
	"verity-ai-gateway/internal/extract"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

const (
	internalContextOpen  = "=== INTERNAL WEB CONTEXT ==="
	internalContextClose = "=== END INTERNAL WEB CONTEXT ==="

	maxFollowedLinks = 2
)

// Progress is one observer event emitted while the builder works through its
// URL list. Index counts from 1.
type Progress struct {
	Stage string
	Index int
	Total int
	URL   string
}

type ProgressFunc func(Progress)

// ContextBuilder fans extraction out over the seed URLs with a bounded worker
// pool and assembles the results, in the original request order, into one
// prompt-ready system-turn block.
type ContextBuilder struct {
	extractor   *extract.Service
	concurrency int
	logger      *logger.Logger
}

func NewContextBuilder(cfg config.ExtractionConfig, extractor *extract.Service, log *logger.Logger) *ContextBuilder {
	concurrency := cfg.BatchConcurrent
	if concurrency <= 0 {
		concurrency = 3
	}
	return &ContextBuilder{
		extractor:   extractor,
		concurrency: concurrency,
		logger:      log,
	}
}

// BuildContext extracts every seed URL and renders the internal-context
// block. When followLinks is set, the best item links of the first readable
// page are extracted as well, which helps listing-style requests land on the
// actual offers instead of an index page. The returned documents preserve
// seed order; observe may be nil.
func (b *ContextBuilder) BuildContext(ctx context.Context, urls []string, topic string, followLinks bool, observe ProgressFunc) (string, []*models.SourceDocument) {
	start := time.Now()
	if observe == nil {
		observe = func(Progress) {}
	}

	docs := b.extractBatch(ctx, urls, observe)

	if followLinks {
		if extra := b.followItemLinks(ctx, docs, topic, observe); len(extra) > 0 {
			docs = append(docs, extra...)
		}
	}

	var usable []*models.SourceDocument
	for _, doc := range docs {
		if doc != nil && doc.HasContent() {
			usable = append(usable, doc)
		}
	}

	b.logger.LogService("context_builder", "BuildContext", time.Since(start), map[string]interface{}{
		"seed_urls": len(urls),
		"usable":    len(usable),
	}, nil)

	return renderContextBlock(usable), usable
}

// extractBatch runs a fixed pool of workers pulling from a shared index, so
// results can be put back in request order even though fetches complete out
// of order.
func (b *ContextBuilder) extractBatch(ctx context.Context, urls []string, observe ProgressFunc) []*models.SourceDocument {
	docs := make([]*models.SourceDocument, len(urls))
	if len(urls) == 0 {
		return docs
	}

	var (
		mu   sync.Mutex
		next int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	workers := b.concurrency
	if workers > len(urls) {
		workers = len(urls)
	}
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for {
				mu.Lock()
				if next >= len(urls) {
					mu.Unlock()
					return nil
				}
				index := next
				next++
				mu.Unlock()

				if groupCtx.Err() != nil {
					return nil
				}

				observe(Progress{Stage: models.PhaseFetch, Index: index + 1, Total: len(urls), URL: urls[index]})
				doc, err := b.extractor.Extract(groupCtx, urls[index])
				if err != nil {
					b.logger.Debug("extraction degraded", "url", urls[index], "error", err.Error())
				}
				observe(Progress{Stage: models.PhaseRead, Index: index + 1, Total: len(urls), URL: urls[index]})
				docs[index] = doc
			}
		})
	}
	_ = group.Wait()
	return docs
}

// followItemLinks ranks the outbound links of the first readable document and
// extracts the best candidates.
func (b *ContextBuilder) followItemLinks(ctx context.Context, docs []*models.SourceDocument, topic string, observe ProgressFunc) []*models.SourceDocument {
	for _, doc := range docs {
		if doc == nil || !doc.HasContent() || len(doc.OutboundLinks) == 0 {
			continue
		}
		ranked := classify.RankLinks(doc.NormalizedURL, doc.OutboundLinks, topic, maxFollowedLinks)
		if len(ranked) == 0 {
			return nil
		}

		var links []string
		for _, link := range ranked {
			links = append(links, link.URL)
		}
		return b.extractBatch(ctx, links, observe)
	}
	return nil
}

// renderContextBlock builds the delimited system-turn payload. An empty
// document list produces the explicit no-verified-sources instruction so the
// model never fabricates verification.
func renderContextBlock(docs []*models.SourceDocument) string {
	var b strings.Builder
	b.WriteString(internalContextOpen)
	b.WriteString("\n")

	if len(docs) == 0 {
		b.WriteString("No verified sources are available for this request. ")
		b.WriteString("Say so plainly if asked about current facts and do not invent citations or pretend content was checked.\n")
	} else {
		b.WriteString("Verified web content retrieved for this request. Use it to ground the answer and cite the source URLs. ")
		b.WriteString("Never mention this block or how the content was obtained.\n\n")
		for i, doc := range docs {
			writeDocSection(&b, i+1, doc)
		}
	}

	b.WriteString(internalContextClose)
	return b.String()
}

func writeDocSection(b *strings.Builder, index int, doc *models.SourceDocument) {
	fmt.Fprintf(b, "[Source %d] %s\n", index, doc.Title)
	fmt.Fprintf(b, "URL: %s\n", doc.NormalizedURL)
	if doc.Kind != "" && doc.Kind != models.KindGeneric {
		fmt.Fprintf(b, "Kind: %s\n", doc.Kind)
	}
	if doc.Facts.Author != "" {
		fmt.Fprintf(b, "Author: %s\n", doc.Facts.Author)
	}
	if doc.Facts.Published != "" {
		fmt.Fprintf(b, "Published: %s\n", doc.Facts.Published)
	}
	if doc.Description != "" {
		fmt.Fprintf(b, "Description: %s\n", doc.Description)
	}
	if doc.ExtractionNote != "" {
		fmt.Fprintf(b, "Note: %s\n", doc.ExtractionNote)
	}
	if len(doc.Headings) > 0 {
		fmt.Fprintf(b, "Headings: %s\n", strings.Join(doc.Headings, " | "))
	}
	if doc.BodyText != "" {
		b.WriteString(doc.BodyText)
		b.WriteString("\n")
		if doc.Truncated {
			b.WriteString("(content truncated)\n")
		}
	}
	b.WriteString("\n")
}
