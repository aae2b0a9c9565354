package images

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"verity-ai-gateway/internal/heuristics"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/cache"
	"verity-ai-gateway/internal/pkg/logger"
)

const (
	providerEngine       = "engine"
	providerOpenverse    = "openverse"
	providerEncyclopedia = "wikipedia"
	providerRepository   = "commons"

	harvestUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	perProviderLimit = 16
)

// Harvester gathers image candidates from four independent free providers in
// parallel, deduplicates them, and scores them by topic relevance plus host
// reliability. Results are cached per normalized query.
type Harvester struct {
	client *http.Client
	logger *logger.Logger
	cache  *cache.TTLCache[[]models.ImageCandidate]
}

func NewHarvester(timeout time.Duration, searchCacheTTL time.Duration, log *logger.Logger) *Harvester {
	return &Harvester{
		client: &http.Client{Timeout: timeout},
		logger: log,
		cache:  cache.NewTTL[[]models.ImageCandidate](searchCacheTTL, 256),
	}
}

// Harvest runs all providers for one query variant. Provider failures are
// logged and skipped; an empty result is a valid answer.
func (h *Harvester) Harvest(ctx context.Context, query, topic string) []models.ImageCandidate {
	cacheKey := strings.ToLower(heuristics.FoldDiacritics(strings.TrimSpace(query)))
	if cached, ok := h.cache.Get(cacheKey); ok {
		return cached
	}

	start := time.Now()
	topicTokens := heuristics.InformativeTokens(heuristics.FoldDiacritics(topic))

	var (
		mu         sync.Mutex
		candidates []models.ImageCandidate
	)
	group, groupCtx := errgroup.WithContext(ctx)
	collect := func(provider string, fetch func(context.Context, string) ([]models.ImageCandidate, error)) func() error {
		return func() error {
			found, err := fetch(groupCtx, query)
			if err != nil {
				h.logger.Debug("image provider failed", "provider", provider, "query", query, "error", err.Error())
				return nil
			}
			mu.Lock()
			candidates = append(candidates, found...)
			mu.Unlock()
			return nil
		}
	}

	group.Go(collect(providerEngine, h.searchEngineImages))
	group.Go(collect(providerOpenverse, h.searchOpenverse))
	group.Go(collect(providerEncyclopedia, h.searchEncyclopedia))
	group.Go(collect(providerRepository, h.SearchRepository))
	_ = group.Wait()

	scored := scoreAndDedup(candidates, topicTokens)
	h.cache.Set(cacheKey, scored)

	h.logger.LogService("images", "Harvest", time.Since(start), map[string]interface{}{
		"query":      query,
		"candidates": len(scored),
	}, nil)
	return scored
}

func scoreAndDedup(candidates []models.ImageCandidate, topicTokens []string) []models.ImageCandidate {
	seen := make(map[string]bool)
	var out []models.ImageCandidate
	for _, candidate := range candidates {
		imageURL := strings.TrimSpace(candidate.ImageURL)
		if imageURL == "" || seen[imageURL] || IsBlockedHost(imageURL) {
			continue
		}
		seen[imageURL] = true
		candidate.ImageURL = imageURL
		candidate.Score = relevanceScore(topicTokens, candidate.Title, imageURL) + hostScore(imageURL)
		out = append(out, candidate)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

var vqdPattern = regexp.MustCompile(`vqd=['"]?([\d-]+)['"]?`)

// searchEngineImages scrapes the engine's image-search JSON endpoint. The
// endpoint rejects requests without a session token, which has to be lifted
// from the HTML search page first.
func (h *Harvester) searchEngineImages(ctx context.Context, query string) ([]models.ImageCandidate, error) {
	page, err := h.getBody(ctx, "https://duckduckgo.com/?iax=images&ia=images&q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	match := vqdPattern.FindSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("no session token in image search page")
	}

	endpoint := fmt.Sprintf("https://duckduckgo.com/i.js?l=us-en&o=json&q=%s&vqd=%s",
		url.QueryEscape(query), string(match[1]))
	body, err := h.getBody(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []struct {
			Image string `json:"image"`
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var candidates []models.ImageCandidate
	for _, result := range payload.Results {
		candidates = append(candidates, models.ImageCandidate{
			ImageURL: result.Image,
			PageURL:  result.URL,
			Title:    result.Title,
			Provider: providerEngine,
		})
		if len(candidates) >= perProviderLimit {
			break
		}
	}
	return candidates, nil
}

// searchOpenverse queries the rights-cleared media API.
func (h *Harvester) searchOpenverse(ctx context.Context, query string) ([]models.ImageCandidate, error) {
	endpoint := fmt.Sprintf("https://api.openverse.org/v1/images/?q=%s&page_size=%d&mature=false",
		url.QueryEscape(query), perProviderLimit)
	body, err := h.getBody(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []struct {
			URL               string `json:"url"`
			Title             string `json:"title"`
			ForeignLandingURL string `json:"foreign_landing_url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var candidates []models.ImageCandidate
	for _, result := range payload.Results {
		candidates = append(candidates, models.ImageCandidate{
			ImageURL: result.URL,
			PageURL:  result.ForeignLandingURL,
			Title:    result.Title,
			Provider: providerOpenverse,
		})
	}
	return candidates, nil
}

// searchEncyclopedia looks up lead images of encyclopedia pages matching the
// query.
func (h *Harvester) searchEncyclopedia(ctx context.Context, query string) ([]models.ImageCandidate, error) {
	endpoint := fmt.Sprintf("https://en.wikipedia.org/w/api.php?action=query&generator=search&gsrsearch=%s&gsrlimit=8&prop=pageimages&piprop=original&format=json",
		url.QueryEscape(query))
	body, err := h.getBody(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Query struct {
			Pages map[string]struct {
				Title    string `json:"title"`
				Original struct {
					Source string `json:"source"`
				} `json:"original"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var candidates []models.ImageCandidate
	for _, page := range payload.Query.Pages {
		if page.Original.Source == "" {
			continue
		}
		candidates = append(candidates, models.ImageCandidate{
			ImageURL: page.Original.Source,
			PageURL:  "https://en.wikipedia.org/wiki/" + url.PathEscape(strings.ReplaceAll(page.Title, " ", "_")),
			Title:    page.Title,
			Provider: providerEncyclopedia,
		})
	}
	return candidates, nil
}

// SearchRepository queries the media-repository search API. Exported because
// it doubles as the last-resort fallback when ranked candidates under-deliver.
func (h *Harvester) SearchRepository(ctx context.Context, query string) ([]models.ImageCandidate, error) {
	endpoint := fmt.Sprintf("https://commons.wikimedia.org/w/api.php?action=query&generator=search&gsrsearch=filetype:bitmap %s&gsrnamespace=6&gsrlimit=%d&prop=imageinfo&iiprop=url&format=json",
		query, perProviderLimit)
	body, err := h.getBody(ctx, strings.ReplaceAll(endpoint, " ", "%20"))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Query struct {
			Pages map[string]struct {
				Title     string `json:"title"`
				ImageInfo []struct {
					URL string `json:"url"`
				} `json:"imageinfo"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var candidates []models.ImageCandidate
	for _, page := range payload.Query.Pages {
		if len(page.ImageInfo) == 0 || page.ImageInfo[0].URL == "" {
			continue
		}
		candidates = append(candidates, models.ImageCandidate{
			ImageURL: page.ImageInfo[0].URL,
			Title:    strings.TrimPrefix(page.Title, "File:"),
			Provider: providerRepository,
		})
	}
	return candidates, nil
}

func (h *Harvester) getBody(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", harvestUserAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.8")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}
