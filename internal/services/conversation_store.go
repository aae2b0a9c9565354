package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

const (
	conversationKeyPrefix = "conversation:"
	conversationTTL       = 7 * 24 * time.Hour
)

// ConversationStore persists conversation turns in Redis, keyed by the
// conversation id the client sends. Persistence is best-effort: a failed save
// never blocks the stream.
type ConversationStore struct {
	client *redis.Client
	logger *logger.Logger
}

func NewConversationStore(redisURL string, log *logger.Logger) (*ConversationStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &ConversationStore{
		client: redis.NewClient(opts),
		logger: log,
	}, nil
}

func (s *ConversationStore) SaveTurns(ctx context.Context, conversationID string, turns []models.ChatTurn) {
	// the synthesized system turn never gets stored
	var persistable []models.ChatTurn
	for _, turn := range turns {
		if turn.Role != models.RoleSystem {
			persistable = append(persistable, turn)
		}
	}

	encoded, err := json.Marshal(persistable)
	if err != nil {
		s.logger.Warn("failed to encode conversation", "conversation_id", conversationID, "error", err.Error())
		return
	}
	if err := s.client.Set(ctx, conversationKeyPrefix+conversationID, encoded, conversationTTL).Err(); err != nil {
		s.logger.Warn("failed to persist conversation", "conversation_id", conversationID, "error", err.Error())
	}
}

func (s *ConversationStore) LoadTurns(ctx context.Context, conversationID string) ([]models.ChatTurn, error) {
	encoded, err := s.client.Get(ctx, conversationKeyPrefix+conversationID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var turns []models.ChatTurn
	if err := json.Unmarshal(encoded, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func (s *ConversationStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *ConversationStore) Close() error {
	return s.client.Close()
}
