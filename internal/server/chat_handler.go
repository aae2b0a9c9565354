package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
	"verity-ai-gateway/internal/services"
)

// Headers the chat endpoint consumes. The conversation id is used only for
// persistence and diagnostic logging.
const (
	headerLanguage       = "X-UI-Language"
	headerVerbosity      = "X-Status-Verbosity"
	headerConversationID = "X-Conversation-Id"
)

type chatHandler struct {
	orchestrator *services.Orchestrator
	logger       *logger.Logger
}

func newChatHandler(orchestrator *services.Orchestrator, log *logger.Logger) *chatHandler {
	return &chatHandler{orchestrator: orchestrator, logger: log}
}

// Chat accepts one chat request and answers with a server-sent-event stream.
func (h *chatHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if models.LastUserMessage(req.Messages) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages must contain at least one user turn"})
		return
	}

	verbosity := models.StatusLevel(c.GetHeader(headerVerbosity))
	if verbosity != models.StatusDetailed {
		verbosity = models.StatusBrief
	}
	sc := models.NewStreamContext(c.GetHeader(headerConversationID), c.GetHeader(headerLanguage), verbosity)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	writer := services.NewStreamWriter(c.Writer, sc.Verbosity, h.logger)
	h.orchestrator.HandleChat(c.Request.Context(), &req, sc, writer)
}
