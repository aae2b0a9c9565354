package images

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/cache"
	"verity-ai-gateway/internal/pkg/logger"
)

var strongImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif", ".svg"}

type probeOutcome struct {
	OK          bool
	FinalURL    string
	ContentType string
}

// Prober validates candidates with a HEAD-then-GET content-type check,
// following redirects up to a small bound and re-checking the host blocklist
// at every hop. Outcomes are cached by image URL.
type Prober struct {
	client       *http.Client
	logger       *logger.Logger
	cache        *cache.TTLCache[probeOutcome]
	maxRedirects int
	concurrency  int
}

func NewProber(timeout time.Duration, maxRedirects, concurrency int, probeCacheTTL time.Duration, log *logger.Logger) *Prober {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Prober{
		// redirects are followed manually so each hop can be validated
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:       log,
		cache:        cache.NewTTL[probeOutcome](probeCacheTTL, 512),
		maxRedirects: maxRedirects,
		concurrency:  concurrency,
	}
}

// Validate probes candidates with a bounded worker pool pulling from a shared
// index and stops handing out work once `count` images have been accepted. No
// two accepted images share a final URL.
func (p *Prober) Validate(ctx context.Context, candidates []models.ImageCandidate, count int) []models.ValidatedImage {
	if count <= 0 || len(candidates) == 0 {
		return nil
	}
	start := time.Now()

	var (
		mu        sync.Mutex
		next      int
		finalSeen = make(map[string]bool)
		accepted  = make([]models.ValidatedImage, 0, count)
	)

	group, groupCtx := errgroup.WithContext(ctx)
	workers := p.concurrency
	if workers > len(candidates) {
		workers = len(candidates)
	}
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for {
				mu.Lock()
				if len(accepted) >= count || next >= len(candidates) {
					mu.Unlock()
					return nil
				}
				candidate := candidates[next]
				next++
				mu.Unlock()

				if groupCtx.Err() != nil {
					return nil
				}

				outcome := p.probe(groupCtx, candidate.ImageURL)
				if !outcome.OK {
					continue
				}

				mu.Lock()
				if len(accepted) < count && !finalSeen[outcome.FinalURL] {
					finalSeen[outcome.FinalURL] = true
					accepted = append(accepted, models.ValidatedImage{
						ImageURL:    candidate.ImageURL,
						FinalURL:    outcome.FinalURL,
						PageURL:     candidate.PageURL,
						Title:       candidate.Title,
						ContentType: outcome.ContentType,
					})
				}
				mu.Unlock()
			}
		})
	}
	_ = group.Wait()

	p.logger.LogService("images", "Validate", time.Since(start), map[string]interface{}{
		"candidates": len(candidates),
		"accepted":   len(accepted),
	}, nil)
	return accepted
}

func (p *Prober) probe(ctx context.Context, imageURL string) probeOutcome {
	if cached, ok := p.cache.Get(imageURL); ok {
		return cached
	}

	outcome, err := p.probeMethod(ctx, http.MethodHead, imageURL)
	if err != nil || !outcome.OK {
		// some hosts reject HEAD outright; retry with a ranged GET
		if getOutcome, getErr := p.probeMethod(ctx, http.MethodGet, imageURL); getErr == nil {
			outcome = getOutcome
		}
	}

	p.cache.Set(imageURL, outcome)
	return outcome
}

func (p *Prober) probeMethod(ctx context.Context, method, imageURL string) (probeOutcome, error) {
	current := imageURL
	for hop := 0; hop <= p.maxRedirects; hop++ {
		if IsBlockedHost(current) {
			return probeOutcome{}, nil
		}

		req, err := http.NewRequestWithContext(ctx, method, current, nil)
		if err != nil {
			return probeOutcome{}, err
		}
		req.Header.Set("User-Agent", harvestUserAgent)
		req.Header.Set("Accept", "image/*,*/*;q=0.5")
		if method == http.MethodGet {
			req.Header.Set("Range", "bytes=0-1023")
		}

		resp, err := p.client.Do(req)
		if err != nil {
			return probeOutcome{}, err
		}
		resp.Body.Close()

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			if location == "" {
				return probeOutcome{}, fmt.Errorf("redirect without location from %s", current)
			}
			redirected, err := resp.Request.URL.Parse(location)
			if err != nil {
				return probeOutcome{}, err
			}
			current = redirected.String()
			continue
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			return probeOutcome{}, nil
		}

		contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(resp.Header.Get("Content-Type"), ";", 2)[0]))
		if strings.HasPrefix(contentType, "image/") {
			return probeOutcome{OK: true, FinalURL: current, ContentType: contentType}, nil
		}
		// ambiguous or empty content type: accept only on a strong extension
		if (contentType == "" || contentType == "application/octet-stream" || contentType == "binary/octet-stream") && hasStrongImageExtension(current) {
			return probeOutcome{OK: true, FinalURL: current, ContentType: contentType}, nil
		}
		return probeOutcome{}, nil
	}
	return probeOutcome{}, fmt.Errorf("too many redirects for %s", imageURL)
}

func hasStrongImageExtension(rawURL string) bool {
	path := strings.ToLower(rawURL)
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	for _, ext := range strongImageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
