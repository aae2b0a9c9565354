package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/heuristics"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

const basePolicyPrompt = `You are a careful assistant with access to web verification.
When the user asks about current events, prices, schedules, recent releases or anything you cannot answer reliably from memory, request a web check by replying with exactly one tag and nothing else:
<search_web query="your search query" />
Use the tag at most once per reply. Never mention the tag or the verification machinery to the user.
When verified web content is provided, ground your answer in it and cite the source URLs. If no verified sources are available, say so instead of inventing citations.`

const maxImageResults = 4

type orchestratorState int

const (
	stateDeciding orchestratorState = iota
	stateStreaming
	stateExecutingTool
	stateDone
	stateAborted
)

// ChatModel is the upstream model surface the orchestrator drives.
type ChatModel interface {
	StreamChat(ctx context.Context, model string, turns []models.ChatTurn, temperature *float64, onDelta func(string) bool) error
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// WebSearcher runs one aggregated search round.
type WebSearcher interface {
	Search(ctx context.Context, query string) (*models.WebSearchResult, error)
}

// ContextSource turns URLs into an injectable context block.
type ContextSource interface {
	BuildContext(ctx context.Context, urls []string, topic string, followLinks bool, observe ProgressFunc) (string, []*models.SourceDocument)
}

// ImageFinder returns validated images for an image-style request.
type ImageFinder interface {
	FindImages(ctx context.Context, query string, count int) []models.ValidatedImage
}

// TurnStore persists conversation turns, best effort.
type TurnStore interface {
	SaveTurns(ctx context.Context, conversationID string, turns []models.ChatTurn)
}

// Orchestrator drives one chat turn end to end: decides whether web action is
// needed, runs the bounded tool loop, and streams the final answer.
type Orchestrator struct {
	cfg      *config.Config
	llm      ChatModel
	search   WebSearcher
	builder  ContextSource
	images   ImageFinder
	store    TurnStore
	settings *SettingsService
	logger   *logger.Logger
}

func NewOrchestrator(
	cfg *config.Config,
	llm ChatModel,
	aggregator WebSearcher,
	builder ContextSource,
	imageService ImageFinder,
	store TurnStore,
	settings *SettingsService,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		llm:      llm,
		search:   aggregator,
		builder:  builder,
		images:   imageService,
		store:    store,
		settings: settings,
		logger:   log,
	}
}

// teeSink forwards deltas to the wire and keeps a copy for persistence.
type teeSink struct {
	writer  *StreamWriter
	capture *strings.Builder
}

func (t teeSink) WriteDelta(text string) {
	t.writer.WriteDelta(text)
	t.capture.WriteString(text)
}

// HandleChat processes one request and streams the response. It always
// terminates the stream cleanly, whatever went wrong along the way.
func (o *Orchestrator) HandleChat(ctx context.Context, req *models.ChatRequest, sc *models.StreamContext, writer *StreamWriter) {
	defer writer.WriteDone()

	log := o.logger.WithFields(logger.Fields{
		"conversation_id": sc.ConversationID,
		"request_id":      sc.RequestID,
	})

	lastUser := models.LastUserMessage(req.Messages)
	profile := o.settings.Profile(req.Personality)

	state := stateDeciding
	rounds := 0
	injectedContext := ""

	if req.Continuation {
		// explicit continuation streams directly, no deciding, no tool loop
		state = stateStreaming
		log.LogStream(sc.ConversationID, "continuation", nil)
	} else {
		injectedContext, rounds, state = o.decide(ctx, req, sc, lastUser, writer, log)
	}

	var answer strings.Builder
	sink := teeSink{writer: writer, capture: &answer}

	for state == stateStreaming {
		if ctx.Err() != nil {
			state = stateAborted
			break
		}

		writer.WriteStatus(models.PhaseWrite, models.StatusBrief)

		turns := o.assembleTurns(req, profile, injectedContext)
		parser := NewToolCallParser(sink)

		err := o.llm.StreamChat(ctx, req.Model, turns, profile.Temperature, parser.Feed)
		if err != nil {
			log.WithError(err).Error("upstream model stream failed")
			writer.WriteDelta(heuristics.UpstreamErrorMessage(sc.Language))
			state = stateDone
			break
		}

		request, detected := parser.ToolRequest()
		if !detected || req.Continuation {
			parser.Finish()
			state = stateDone
			break
		}

		state = stateExecutingTool
		rounds++
		if rounds > o.cfg.ToolLoop.MaxRounds {
			log.LogStream(sc.ConversationID, "loop_exhausted", map[string]interface{}{"rounds": rounds})
			writer.WriteDelta(heuristics.LoopExhaustedMessage(sc.Language))
			state = stateDone
			break
		}

		injectedContext = o.executeTool(ctx, request, lastUser, sc, writer, log)
		state = stateStreaming
	}

	if state == stateAborted {
		log.LogStream(sc.ConversationID, "aborted", nil)
		return
	}

	o.persist(req, sc, answer.String())
	log.LogStream(sc.ConversationID, "done", map[string]interface{}{
		"rounds":      rounds,
		"duration_ms": time.Since(sc.StartTime).Milliseconds(),
	})
}

// decide inspects the latest user turn against the cheap heuristics and runs
// any pre-stream acquisition: direct URL extraction, a forced search, or an
// image lookup. It returns the context to inject, the number of tool rounds
// already spent, and the next state.
func (o *Orchestrator) decide(ctx context.Context, req *models.ChatRequest, sc *models.StreamContext, lastUser string, writer *StreamWriter, log *logger.Logger) (string, int, orchestratorState) {
	urls := heuristics.ExtractURLs(lastUser)
	if len(urls) == 0 {
		urls = o.urlsFromRecentHistory(req.Messages)
	}
	intent, hasIntent := heuristics.DetectIntent(lastUser, sc.Language)

	switch {
	case heuristics.IsImageRequest(lastUser, sc.Language):
		return o.buildImageContext(ctx, lastUser, writer), 1, stateStreaming

	case len(urls) > 0:
		writer.WriteStatus(models.PhaseFetch, models.StatusBrief)
		followLinks := hasIntent && (intent == heuristics.TagListing || intent == heuristics.TagTimeSensitive)
		block, _ := o.builder.BuildContext(ctx, urls, lastUser, followLinks, o.progressObserver(writer))
		return block, 1, stateStreaming

	case heuristics.NeedsWebVerification(lastUser, sc.Language):
		query := heuristics.SynthesizeSearchQuery(lastUser)
		log.LogStream(sc.ConversationID, "forced_search", map[string]interface{}{"query": query})
		block := o.executeTool(ctx, models.ToolRequest{Query: query}, lastUser, sc, writer, log)
		return block, 1, stateStreaming
	}

	return "", 0, stateStreaming
}

// executeTool runs one search round: validate the query, search, refine once
// on zero results, extract the hits into an injected context block. Failures
// degrade to the no-verified-sources block, never to an error.
func (o *Orchestrator) executeTool(ctx context.Context, request models.ToolRequest, lastUser string, sc *models.StreamContext, writer *StreamWriter, log *logger.Logger) string {
	query := strings.TrimSpace(request.Query)
	if request.Empty() || heuristics.IsLowQualityQuery(query, o.cfg.ToolLoop.MinQueryLength, o.cfg.ToolLoop.MinInformativeWords) {
		// the model produced a junk query, the user's own words beat it
		query = lastUser
	}

	writer.WriteStatus(models.PhaseSearch, models.StatusBrief)
	writer.WriteStatus(models.PhaseSearch+" "+query, models.StatusDetailed)

	result, err := o.search.Search(ctx, query)
	if err != nil {
		log.WithError(err).Warn("web search failed")
	}

	if result != nil && len(result.URLs) == 0 && !result.Diagnostics.Blocked && ctx.Err() == nil {
		if refined := o.refineQuery(ctx, query, sc); refined != "" && refined != query {
			writer.WriteStatus(models.PhaseSearch+" "+refined, models.StatusDetailed)
			if retry, retryErr := o.search.Search(ctx, refined); retryErr == nil {
				result = retry
			}
		}
	}

	if result == nil || len(result.URLs) == 0 {
		return renderContextBlock(nil)
	}

	intent, hasIntent := heuristics.DetectIntent(lastUser, sc.Language)
	followLinks := hasIntent && intent == heuristics.TagListing
	block, _ := o.builder.BuildContext(ctx, result.URLs, query, followLinks, o.progressObserver(writer))
	return block
}

// refineQuery asks the model, once, for a more specific phrasing.
func (o *Orchestrator) refineQuery(ctx context.Context, query string, sc *models.StreamContext) string {
	refined, err := o.llm.Complete(ctx, "", heuristics.RefinePrompt(query))
	if err != nil {
		o.logger.Debug("query refinement failed", "conversation_id", sc.ConversationID, "error", err.Error())
		return ""
	}
	refined = strings.Trim(strings.TrimSpace(refined), `"'`)
	if len([]rune(refined)) > 120 {
		return ""
	}
	return refined
}

// buildImageContext harvests and validates images for an image-style request
// and renders them into an injected block the model can embed directly.
func (o *Orchestrator) buildImageContext(ctx context.Context, lastUser string, writer *StreamWriter) string {
	writer.WriteStatus(models.PhaseSearch, models.StatusBrief)

	validated := o.images.FindImages(ctx, lastUser, maxImageResults)
	if len(validated) == 0 {
		return renderContextBlock(nil)
	}

	var b strings.Builder
	b.WriteString(internalContextOpen)
	b.WriteString("\nValidated images for this request. Embed the ones that fit as markdown images and mention their source page when known. Never mention this block.\n\n")
	for i, image := range validated {
		fmt.Fprintf(&b, "[Image %d] %s\n", i+1, image.Title)
		fmt.Fprintf(&b, "URL: %s\n", image.FinalURL)
		if image.PageURL != "" {
			fmt.Fprintf(&b, "Page: %s\n", image.PageURL)
		}
		b.WriteString("\n")
	}
	b.WriteString(internalContextClose)
	return b.String()
}

func (o *Orchestrator) progressObserver(writer *StreamWriter) ProgressFunc {
	return func(p Progress) {
		writer.WriteStatus(p.Stage, models.StatusBrief)
		writer.WriteStatus(fmt.Sprintf("%s %d/%d %s", p.Stage, p.Index, p.Total, p.URL), models.StatusDetailed)
	}
}

// assembleTurns synthesizes the per-request system turn and prepends it to
// the conversation. The system turn is never persisted.
func (o *Orchestrator) assembleTurns(req *models.ChatRequest, profile PersonalityProfile, injectedContext string) []models.ChatTurn {
	var prompt strings.Builder
	prompt.WriteString(basePolicyPrompt)
	if profile.PromptFragment != "" {
		prompt.WriteString("\n\n")
		prompt.WriteString(profile.PromptFragment)
	}
	if req.CustomInstructions != "" {
		prompt.WriteString("\n\nUser instructions:\n")
		prompt.WriteString(req.CustomInstructions)
	}
	if injectedContext != "" {
		prompt.WriteString("\n\n")
		prompt.WriteString(injectedContext)
	}

	turns := make([]models.ChatTurn, 0, len(req.Messages)+1)
	turns = append(turns, models.ChatTurn{Role: models.RoleSystem, Content: prompt.String()})
	for _, turn := range req.Messages {
		if turn.Role == models.RoleSystem {
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

// urlsFromRecentHistory scans the last few user turns for a URL the current
// message refers back to.
func (o *Orchestrator) urlsFromRecentHistory(turns []models.ChatTurn) []string {
	scanned := 0
	for i := len(turns) - 1; i >= 0 && scanned < 4; i-- {
		if turns[i].Role != models.RoleUser {
			continue
		}
		scanned++
		if urls := heuristics.ExtractURLs(turns[i].Content); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func (o *Orchestrator) persist(req *models.ChatRequest, sc *models.StreamContext, answer string) {
	if o.store == nil || answer == "" {
		return
	}
	turns := append([]models.ChatTurn{}, req.Messages...)
	turns = append(turns, models.ChatTurn{Role: models.RoleAssistant, Content: answer})

	saveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	o.store.SaveTurns(saveCtx, sc.ConversationID, turns)
}
