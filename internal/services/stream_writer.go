package services

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-contrib/sse"

	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

const doneMarker = "[DONE]"

// StreamWriter encodes outgoing answer deltas, status events and the terminal
// marker onto one server-sent-event stream. Every event is flushed
// immediately. Once the transport errors the writer goes silent: streaming
// best-effort events must never throw back into business logic.
type StreamWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	logger  *logger.Logger

	enabled map[models.StatusLevel]bool
	last    map[models.StatusLevel]string
	closed  bool
}

func NewStreamWriter(w io.Writer, verbosity models.StatusLevel, log *logger.Logger) *StreamWriter {
	enabled := map[models.StatusLevel]bool{models.StatusBrief: true}
	if verbosity == models.StatusDetailed {
		enabled[models.StatusDetailed] = true
	}

	writer := &StreamWriter{
		w:       w,
		logger:  log,
		enabled: enabled,
		last:    make(map[models.StatusLevel]string),
	}
	if flusher, ok := w.(http.Flusher); ok {
		writer.flusher = flusher
	}
	return writer
}

// WriteDelta appends one answer-text fragment.
func (s *StreamWriter) WriteDelta(text string) {
	if text == "" {
		return
	}
	s.emit(sse.Event{Event: "delta", Data: text})
}

// WriteStatus appends one out-of-band status marker. It is a no-op when the
// level is not enabled for this response, and consecutive duplicates are
// suppressed per level independently.
func (s *StreamWriter) WriteStatus(text string, level models.StatusLevel) {
	s.mu.Lock()
	if !s.enabled[level] || s.last[level] == text {
		s.mu.Unlock()
		return
	}
	s.last[level] = text
	s.mu.Unlock()

	s.emit(sse.Event{
		Event: "status",
		Data:  fmt.Sprintf(`<status level=%q>%s</status>`, level, text),
	})
}

// WriteDone appends the terminal marker.
func (s *StreamWriter) WriteDone() {
	s.emit(sse.Event{Event: "done", Data: doneMarker})
}

func (s *StreamWriter) emit(event sse.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if err := sse.Encode(s.w, event); err != nil {
		s.closed = true
		s.logger.Debug("stream transport closed, swallowing further writes", "error", err.Error())
		return
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
