package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatTurn is one message of the conversation. The system turn is synthesized
// per request and never stored.
type ChatTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model              string     `json:"model" binding:"required"`
	Messages           []ChatTurn `json:"messages" binding:"required"`
	CustomInstructions string     `json:"customInstructions,omitempty"`
	Personality        string     `json:"personality,omitempty"`
	Continuation       bool       `json:"continuation,omitempty"`
}

type StatusLevel string

const (
	StatusBrief    StatusLevel = "brief"
	StatusDetailed StatusLevel = "detailed"
)

// StatusEvent is an out-of-band progress marker emitted inside the answer
// stream. Consecutive duplicates are suppressed per level.
type StatusEvent struct {
	Level StatusLevel `json:"level"`
	Text  string      `json:"text"`
}

// Phase tokens the client uses to render progress.
const (
	PhaseSearch = "search"
	PhaseFetch  = "fetch"
	PhaseRead   = "read"
	PhaseWrite  = "write"
)

// ToolRequest is parsed from the inline <search_web> tag the model emits in
// place of a final answer. At most one per stream segment.
type ToolRequest struct {
	Query string `json:"query"`
}

func (tr ToolRequest) Empty() bool {
	return tr.Query == ""
}

// LastUserMessage returns the content of the most recent user turn, or "".
func LastUserMessage(turns []ChatTurn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser {
			return turns[i].Content
		}
	}
	return ""
}

type StreamContext struct {
	ConversationID string
	RequestID      string
	Language       string
	Verbosity      StatusLevel
	StartTime      time.Time
}

func NewStreamContext(conversationID, language string, verbosity StatusLevel) *StreamContext {
	if conversationID == "" {
		conversationID = uuid.New().String()
	}
	if language == "" {
		language = "en"
	}
	if verbosity == "" {
		verbosity = StatusBrief
	}
	return &StreamContext{
		ConversationID: conversationID,
		RequestID:      uuid.New().String(),
		Language:       language,
		Verbosity:      verbosity,
		StartTime:      time.Now(),
	}
}
