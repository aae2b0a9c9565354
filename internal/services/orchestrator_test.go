package services_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/services"
)

type mockModel struct {
	responses []string
	calls     int
	turnsSeen [][]models.ChatTurn
	refined   string
}

func (m *mockModel) StreamChat(_ context.Context, _ string, turns []models.ChatTurn, _ *float64, onDelta func(string) bool) error {
	m.turnsSeen = append(m.turnsSeen, turns)
	response := m.responses[len(m.responses)-1]
	if m.calls < len(m.responses) {
		response = m.responses[m.calls]
	}
	m.calls++

	// stream in small chunks the way a real backend does
	for i := 0; i < len(response); i += 7 {
		end := i + 7
		if end > len(response) {
			end = len(response)
		}
		if !onDelta(response[i:end]) {
			return nil
		}
	}
	return nil
}

func (m *mockModel) Complete(context.Context, string, string) (string, error) {
	return m.refined, nil
}

type mockSearcher struct {
	queries []string
	result  *models.WebSearchResult
}

func (m *mockSearcher) Search(_ context.Context, query string) (*models.WebSearchResult, error) {
	m.queries = append(m.queries, query)
	result := *m.result
	result.Query = query
	return &result, nil
}

type mockBuilder struct {
	urlsSeen [][]string
	block    string
}

func (m *mockBuilder) BuildContext(_ context.Context, urls []string, _ string, _ bool, observe services.ProgressFunc) (string, []*models.SourceDocument) {
	m.urlsSeen = append(m.urlsSeen, urls)
	if observe != nil {
		for i, u := range urls {
			observe(services.Progress{Stage: models.PhaseFetch, Index: i + 1, Total: len(urls), URL: u})
		}
	}
	return m.block, nil
}

type mockImageFinder struct {
	images []models.ValidatedImage
}

func (m *mockImageFinder) FindImages(context.Context, string, int) []models.ValidatedImage {
	return m.images
}

type mockStore struct {
	saved [][]models.ChatTurn
}

func (m *mockStore) SaveTurns(_ context.Context, _ string, turns []models.ChatTurn) {
	m.saved = append(m.saved, turns)
}

type orchestratorFixture struct {
	model    *mockModel
	searcher *mockSearcher
	builder  *mockBuilder
	finder   *mockImageFinder
	store    *mockStore
	orch     *services.Orchestrator
	buf      *bytes.Buffer
}

func newFixture(t *testing.T, model *mockModel, searcher *mockSearcher) *orchestratorFixture {
	t.Helper()
	cfg := &config.Config{
		ToolLoop: config.ToolLoopConfig{MaxRounds: 3, MinQueryLength: 10, MinInformativeWords: 2},
	}
	builder := &mockBuilder{block: "=== INTERNAL WEB CONTEXT ===\n[Source 1] stub\n=== END INTERNAL WEB CONTEXT ==="}
	finder := &mockImageFinder{}
	store := &mockStore{}

	orch := services.NewOrchestrator(cfg, model, searcher, builder, finder, store, services.NewSettingsService(), testLogger(t))
	return &orchestratorFixture{
		model:    model,
		searcher: searcher,
		builder:  builder,
		finder:   finder,
		store:    store,
		orch:     orch,
		buf:      &bytes.Buffer{},
	}
}

func (f *orchestratorFixture) run(t *testing.T, req *models.ChatRequest, language string) string {
	t.Helper()
	sc := models.NewStreamContext("", language, models.StatusBrief)
	writer := services.NewStreamWriter(f.buf, sc.Verbosity, testLogger(t))
	f.orch.HandleChat(context.Background(), req, sc, writer)
	return f.buf.String()
}

func userRequest(message string) *models.ChatRequest {
	return &models.ChatRequest{
		Model:    "test-model",
		Messages: []models.ChatTurn{{Role: models.RoleUser, Content: message}},
	}
}

func searchResult(urls ...string) *models.WebSearchResult {
	return &models.WebSearchResult{URLs: urls, Diagnostics: models.SearchDiagnostics{ResultCount: len(urls)}}
}

func TestPlainAnswerStreamsThrough(t *testing.T) {
	model := &mockModel{responses: []string{"Turtles are reptiles of the order Testudines."}}
	f := newFixture(t, model, &mockSearcher{result: searchResult()})

	out := f.run(t, userRequest("tell me something about turtles"), "en")

	assert.Contains(t, out, "Testudines")
	assert.Contains(t, out, "[DONE]")
	assert.Equal(t, 1, model.calls)
	assert.Empty(t, f.searcher.queries)
}

func TestToolLoopNeverExceedsThreeRounds(t *testing.T) {
	// the model asks for a search on every round, forever
	model := &mockModel{responses: []string{`<search_web query="some repeating verification query" />`}}
	searcher := &mockSearcher{result: searchResult("https://example.com/a")}
	f := newFixture(t, model, searcher)

	out := f.run(t, userRequest("please double check a stubborn claim for me"), "en")

	assert.Len(t, searcher.queries, 3)
	assert.Equal(t, 4, model.calls)
	assert.Contains(t, out, "could not gather reliable information")
	assert.Contains(t, out, "[DONE]")
	assert.NotContains(t, out, "search_web")
}

func TestForcedSearchForFrenchTimeSensitiveMessage(t *testing.T) {
	model := &mockModel{responses: []string{"Le magasin ouvre demain à 9h."}}
	searcher := &mockSearcher{result: searchResult("https://magasin.example/horaires")}
	f := newFixture(t, model, searcher)

	message := "horaires du magasin demain"
	out := f.run(t, userRequest(message), "fr")

	// the search ran before streaming, without any tool-call round trip
	require.Len(t, searcher.queries, 1)
	assert.NotEmpty(t, searcher.queries[0])
	assert.Contains(t, searcher.queries[0], message)
	assert.Equal(t, 1, model.calls)
	assert.Contains(t, out, "9h")
}

func TestSearchRoundTripInjectsContextAndLeaksNothing(t *testing.T) {
	model := &mockModel{responses: []string{
		`<search_web query="Eiffel Tower height" />`,
		"The Eiffel Tower is about 330 metres tall.",
	}}
	searcher := &mockSearcher{result: searchResult("https://en.wikipedia.org/wiki/Eiffel_Tower")}
	f := newFixture(t, model, searcher)

	out := f.run(t, userRequest("give me a fact about a famous landmark"), "en")

	require.Equal(t, 2, model.calls)
	assert.Equal(t, []string{"Eiffel Tower height"}, searcher.queries)
	require.Len(t, f.builder.urlsSeen, 1)
	assert.Equal(t, []string{"https://en.wikipedia.org/wiki/Eiffel_Tower"}, f.builder.urlsSeen[0])

	// the second round's system turn carries the injected block
	secondSystem := f.model.turnsSeen[1][0]
	assert.Equal(t, models.RoleSystem, secondSystem.Role)
	assert.Contains(t, secondSystem.Content, "[Source 1] stub")

	assert.Contains(t, out, "330 metres")
	assert.NotContains(t, out, "search_web")
	assert.NotContains(t, out, "Eiffel Tower height\"")
}

func TestBlockedSearchInjectsNoVerifiedSourcesNote(t *testing.T) {
	model := &mockModel{responses: []string{
		`<search_web query="completely blocked verification query" />`,
		"I could not verify this against current sources.",
	}}
	searcher := &mockSearcher{result: &models.WebSearchResult{Diagnostics: models.SearchDiagnostics{Blocked: true}}}
	f := newFixture(t, model, searcher)

	out := f.run(t, userRequest("please verify an obscure recent claim"), "en")

	require.Equal(t, 2, model.calls)
	secondSystem := f.model.turnsSeen[1][0]
	assert.Contains(t, secondSystem.Content, "No verified sources are available")
	assert.NotContains(t, out, "INTERNAL WEB CONTEXT")
	assert.Empty(t, f.builder.urlsSeen)
}

func TestLowQualityToolQueryFallsBackToUserMessage(t *testing.T) {
	model := &mockModel{responses: []string{
		`<search_web query="it" />`,
		"Here is what I found.",
	}}
	searcher := &mockSearcher{result: searchResult("https://example.com/page")}
	f := newFixture(t, model, searcher)

	message := "what did the city council decide about parking fees"
	f.run(t, userRequest(message), "en")

	require.Len(t, searcher.queries, 1)
	assert.Equal(t, message, searcher.queries[0])
}

func TestDirectURLMessageSkipsSearch(t *testing.T) {
	model := &mockModel{responses: []string{"That page describes the project roadmap."}}
	searcher := &mockSearcher{result: searchResult()}
	f := newFixture(t, model, searcher)

	f.run(t, userRequest("summarize https://example.com/roadmap please"), "en")

	assert.Empty(t, searcher.queries)
	require.Len(t, f.builder.urlsSeen, 1)
	assert.Equal(t, []string{"https://example.com/roadmap"}, f.builder.urlsSeen[0])
}

func TestZeroResultSearchTriggersOneRefinement(t *testing.T) {
	model := &mockModel{
		responses: []string{
			`<search_web query="an initial query with no hits at all" />`,
			"Done.",
		},
		refined: "a sharper replacement query",
	}
	searcher := &mockSearcher{result: searchResult()}
	f := newFixture(t, model, searcher)

	f.run(t, userRequest("dig up something extremely specific for me"), "en")

	require.Len(t, searcher.queries, 2)
	assert.Equal(t, "an initial query with no hits at all", searcher.queries[0])
	assert.Equal(t, "a sharper replacement query", searcher.queries[1])
}

func TestContinuationBypassesDecidingAndToolLoop(t *testing.T) {
	model := &mockModel{responses: []string{"...and that concludes the earlier answer."}}
	searcher := &mockSearcher{result: searchResult("https://example.com")}
	f := newFixture(t, model, searcher)

	req := userRequest("horaires du magasin demain")
	req.Continuation = true
	out := f.run(t, req, "fr")

	assert.Empty(t, searcher.queries)
	assert.Equal(t, 1, model.calls)
	assert.Contains(t, out, "concludes the earlier answer")
}

func TestAnswerIsPersistedWithAssistantTurn(t *testing.T) {
	model := &mockModel{responses: []string{"A short answer."}}
	f := newFixture(t, model, &mockSearcher{result: searchResult()})

	f.run(t, userRequest("say something short about anything"), "en")

	require.Len(t, f.store.saved, 1)
	turns := f.store.saved[0]
	require.NotEmpty(t, turns)
	last := turns[len(turns)-1]
	assert.Equal(t, models.RoleAssistant, last.Role)
	assert.Equal(t, "A short answer.", last.Content)
}
