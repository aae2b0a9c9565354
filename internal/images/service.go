package images

import (
	"context"
	"strings"
	"time"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/heuristics"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

// Service glues harvesting and probing together: it walks progressively
// simplified query variants until the requested number of validated images is
// reached, ending with a direct media-repository lookup as the last resort.
type Service struct {
	harvester *Harvester
	prober    *Prober
	logger    *logger.Logger
}

func NewService(cfg config.ImageConfig, log *logger.Logger) *Service {
	return &Service{
		harvester: NewHarvester(cfg.ProbeTimeout, cfg.SearchCacheTTL, log),
		prober:    NewProber(cfg.ProbeTimeout, cfg.MaxRedirects, cfg.ProbeConcurrent, cfg.ProbeCacheTTL, log),
		logger:    log,
	}
}

// FindImages returns up to count validated images for the user's phrasing.
// The topic is the stopword-filtered core of the request and drives both
// relevance scoring and the simplified retry variants.
func (s *Service) FindImages(ctx context.Context, query string, count int) []models.ValidatedImage {
	start := time.Now()
	topic := topicOf(query)

	var validated []models.ValidatedImage
	finalSeen := make(map[string]bool)
	absorb := func(images []models.ValidatedImage) {
		for _, image := range images {
			if finalSeen[image.FinalURL] || len(validated) >= count {
				continue
			}
			finalSeen[image.FinalURL] = true
			validated = append(validated, image)
		}
	}

	for _, variant := range queryVariants(query, topic) {
		if len(validated) >= count || ctx.Err() != nil {
			break
		}
		candidates := s.harvester.Harvest(ctx, variant, topic)
		absorb(s.prober.Validate(ctx, candidates, count-len(validated)))
	}

	if len(validated) < count && ctx.Err() == nil {
		if candidates, err := s.harvester.SearchRepository(ctx, topic); err == nil {
			absorb(s.prober.Validate(ctx, scoreAndDedup(candidates, heuristics.InformativeTokens(topic)), count-len(validated)))
		}
	}

	s.logger.LogService("images", "FindImages", time.Since(start), map[string]interface{}{
		"query":     query,
		"requested": count,
		"validated": len(validated),
	}, nil)
	return validated
}

// queryVariants orders retry attempts from most to least specific: the raw
// phrasing, the extracted topic, then the topic trimmed token by token.
func queryVariants(query, topic string) []string {
	seen := make(map[string]bool)
	var variants []string
	push := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[strings.ToLower(v)] {
			seen[strings.ToLower(v)] = true
			variants = append(variants, v)
		}
	}

	push(query)
	push(topic)
	tokens := strings.Fields(topic)
	for len(tokens) > 2 {
		tokens = tokens[:len(tokens)-1]
		push(strings.Join(tokens, " "))
	}
	return variants
}

func topicOf(query string) string {
	tokens := heuristics.InformativeTokens(query)
	if len(tokens) == 0 {
		return strings.TrimSpace(query)
	}
	return strings.Join(tokens, " ")
}
