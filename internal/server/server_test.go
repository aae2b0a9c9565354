package server_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/extract"
	"verity-ai-gateway/internal/images"
	"verity-ai-gateway/internal/pkg/logger"
	"verity-ai-gateway/internal/search"
	"verity-ai-gateway/internal/server"
	"verity-ai-gateway/internal/services"
)

// fakeModelBackend answers every chat completion with one fixed streamed
// sentence in the OpenAI wire format.
func fakeModelBackend(t *testing.T) *httptest.Server {
	t.Helper()
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"from the backend.\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(backend.Close)
	return backend
}

func testServer(t *testing.T, checkers map[string]server.HealthChecker) *server.Server {
	t.Helper()
	backend := fakeModelBackend(t)

	cfg := &config.Config{
		Port:        "0",
		Environment: "test",
		LLM:         config.LLMConfig{BaseURL: backend.URL, DefaultModel: "test-model", Timeout: 5 * time.Second, MaxRetries: 1, RetryInterval: time.Millisecond},
		Extraction:  config.ExtractionConfig{MaxChars: 9000, MinUsefulChars: 240, FetchTimeout: 2 * time.Second, BatchConcurrent: 2},
		Search:      config.SearchConfig{ResultLimit: 6, Timeout: 2 * time.Second},
		Images:      config.ImageConfig{ProbeConcurrent: 2, ProbeTimeout: 2 * time.Second, MaxRedirects: 2, ProbeCacheTTL: time.Minute, SearchCacheTTL: time.Minute},
		ToolLoop:    config.ToolLoopConfig{MaxRounds: 3, MinQueryLength: 10, MinInformativeWords: 2},
	}

	log, err := logger.New(logger.Config{Level: "panic", Format: "text"})
	require.NoError(t, err)

	extractor := extract.NewService(cfg.Extraction, log)
	orch := services.NewOrchestrator(
		cfg,
		services.NewLLMService(cfg.LLM, log),
		search.NewAggregator(cfg.Search, log),
		services.NewContextBuilder(cfg.Extraction, extractor, log),
		images.NewService(cfg.Images, log),
		nil,
		services.NewSettingsService(),
		log,
	)
	return server.New(cfg, orch, checkers, log)
}

func TestChatRejectsInvalidBody(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"model":}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatRejectsMissingUserTurn(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"model":"m","messages":[{"role":"assistant","content":"only me"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamsAnswer(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"model":"test-model","messages":[{"role":"user","content":"greet me back kindly my friend"}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("X-UI-Language", "en")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	out := rec.Body.String()
	assert.Contains(t, out, "Hello ")
	assert.Contains(t, out, "from the backend.")
	assert.Contains(t, out, "[DONE]")
	assert.NotContains(t, out, "INTERNAL WEB CONTEXT")
}

type fakeChecker struct {
	err error
}

func (f fakeChecker) HealthCheck(context.Context) error { return f.err }

func TestHealthEndpointReportsPerService(t *testing.T) {
	srv := testServer(t, map[string]server.HealthChecker{
		"good": fakeChecker{},
		"bad":  fakeChecker{err: errors.New("down")},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"good":"ok"`)
	assert.Contains(t, rec.Body.String(), "down")
}

func TestHealthEndpointAllOK(t *testing.T) {
	srv := testServer(t, map[string]server.HealthChecker{"good": fakeChecker{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
