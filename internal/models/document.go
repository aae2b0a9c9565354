package models

import "time"

// StructuredFacts carries the subset of page structured data (JSON-LD, meta
// tags) the context builder injects into prompts.
type StructuredFacts struct {
	Author    string   `json:"author,omitempty"`
	Published string   `json:"published,omitempty"`
	Modified  string   `json:"modified,omitempty"`
	Types     []string `json:"types,omitempty"`
}

// SourceDocument is the result of extracting one URL. BodyText never exceeds
// the caller-supplied cap; Truncated is set when the cap was hit.
type SourceDocument struct {
	RequestedURL   string          `json:"requested_url"`
	NormalizedURL  string          `json:"normalized_url"`
	HTTPStatus     int             `json:"http_status"`
	ContentType    string          `json:"content_type"`
	FetchedAt      time.Time       `json:"fetched_at"`
	ExtractionNote string          `json:"extraction_note,omitempty"`
	Title          string          `json:"title,omitempty"`
	Description    string          `json:"description,omitempty"`
	Facts          StructuredFacts `json:"structured_facts"`
	Headings       []string        `json:"headings,omitempty"`
	BodyText       string          `json:"body_text,omitempty"`
	OutboundLinks  []string        `json:"outbound_links,omitempty"`
	Kind           SourceKind      `json:"kind,omitempty"`
	Truncated      bool            `json:"truncated"`
}

func (d *SourceDocument) HasContent() bool {
	return d != nil && (d.BodyText != "" || d.Description != "" || d.Title != "")
}

type SearchDiagnostics struct {
	Blocked     bool `json:"blocked"`
	ResultCount int  `json:"result_count"`
}

// WebSearchResult aggregates one search round. URLs are deduplicated and
// order-preserving: scraped-page hits first, instant-answer hits appended.
type WebSearchResult struct {
	Query       string            `json:"query"`
	FetchedAt   time.Time         `json:"fetched_at"`
	URLs        []string          `json:"urls"`
	Diagnostics SearchDiagnostics `json:"diagnostics"`
}

// ImageCandidate is a harvested, not yet validated image reference.
type ImageCandidate struct {
	ImageURL string  `json:"image_url"`
	PageURL  string  `json:"page_url,omitempty"`
	Title    string  `json:"title,omitempty"`
	Provider string  `json:"provider,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

// ValidatedImage is a candidate whose content type was confirmed by a live
// probe. FinalURL is the post-redirect target; no two validated images in one
// response share it.
type ValidatedImage struct {
	ImageURL    string `json:"image_url"`
	FinalURL    string `json:"final_url"`
	PageURL     string `json:"page_url,omitempty"`
	Title       string `json:"title,omitempty"`
	ContentType string `json:"content_type"`
}
