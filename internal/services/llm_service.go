package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

// LLMService talks to an OpenAI-compatible chat-completions backend. The
// streaming path hands the raw text fragments to the caller as they arrive;
// parsing of embedded tool tags happens upstream of this service.
type LLMService struct {
	cfg    config.LLMConfig
	client *http.Client
	logger *logger.Logger
}

func NewLLMService(cfg config.LLMConfig, log *logger.Logger) *LLMService {
	return &LLMService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

type chatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []models.ChatTurn `json:"messages"`
	Stream      bool              `json:"stream"`
	Temperature *float64          `json:"temperature,omitempty"`
}

type chatCompletionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// StreamChat streams one completion. onDelta is invoked per text fragment and
// returns false to abandon the rest of the upstream response, which is not an
// error. Transport failures before the first fragment are retried with
// exponential backoff; once streaming has begun the response is never retried.
func (s *LLMService) StreamChat(ctx context.Context, model string, turns []models.ChatTurn, temperature *float64, onDelta func(string) bool) error {
	start := time.Now()
	started := false

	operation := func() (struct{}, error) {
		resp, err := s.post(ctx, chatCompletionRequest{
			Model:       s.resolveModel(model),
			Messages:    turns,
			Stream:      true,
			Temperature: temperature,
		})
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" || payload == doneMarker {
				continue
			}

			var chunk chatCompletionChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				started = true
				if !onDelta(content) {
					return struct{}{}, nil
				}
			}
		}
		if err := scanner.Err(); err != nil && ctx.Err() == nil && !started {
			return struct{}{}, err
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		result, err := operation()
		if err != nil && started {
			return result, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.cfg.MaxRetries)),
	)

	s.logger.LogService("llm", "StreamChat", time.Since(start), map[string]interface{}{
		"model": s.resolveModel(model),
		"turns": len(turns),
	}, err)
	if err != nil {
		return models.WrapExternalError("LLM_STREAM_FAILED", err)
	}
	return nil
}

// Complete runs one non-streaming completion, used for the query-refinement
// round.
func (s *LLMService) Complete(ctx context.Context, model, prompt string) (string, error) {
	start := time.Now()

	result, err := backoff.Retry(ctx, func() (string, error) {
		resp, err := s.post(ctx, chatCompletionRequest{
			Model:    s.resolveModel(model),
			Messages: []models.ChatTurn{{Role: models.RoleUser, Content: prompt}},
		})
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return "", err
		}
		var completion chatCompletionResponse
		if err := json.Unmarshal(body, &completion); err != nil {
			return "", err
		}
		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("completion response had no choices")
		}
		return strings.TrimSpace(completion.Choices[0].Message.Content), nil
	},
		backoff.WithBackOff(s.newBackOff()),
		backoff.WithMaxTries(uint(s.cfg.MaxRetries)),
	)

	s.logger.LogService("llm", "Complete", time.Since(start), map[string]interface{}{
		"model": s.resolveModel(model),
	}, err)
	if err != nil {
		return "", models.WrapExternalError("LLM_COMPLETE_FAILED", err)
	}
	return result, nil
}

func (s *LLMService) post(ctx context.Context, body chatCompletionRequest) (*http.Response, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(s.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		err := fmt.Errorf("upstream model returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	return resp, nil
}

func (s *LLMService) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInterval
	return b
}

func (s *LLMService) resolveModel(model string) string {
	if model == "" {
		return s.cfg.DefaultModel
	}
	return model
}

// HealthCheck verifies the backend answers the models listing endpoint.
func (s *LLMService) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(s.cfg.BaseURL, "/")+"/models", nil)
	if err != nil {
		return err
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return models.WrapExternalError("LLM_UNREACHABLE", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.NewExternalError("LLM_UNHEALTHY", fmt.Sprintf("models endpoint returned status %d", resp.StatusCode))
	}
	return nil
}
