package services

import (
	"regexp"
	"strings"

	"verity-ai-gateway/internal/models"
)

type parserState int

const (
	stateForwarding parserState = iota
	stateInsideTag
	stateToolDetected
)

const (
	toolTagOpen  = "<search_web"
	toolTagClose = "</search_web"
)

var (
	toolQueryPattern = regexp.MustCompile(`(?i)<search_web\s[^>]*?query\s*=\s*(?:"([^"]*)"|'([^']*)')[^>]*>`)
	strayToolMarkup  = regexp.MustCompile(`(?i)</?search_web[^>]*>?`)
)

// DeltaSink receives the clean text fragments the parser decides to forward.
type DeltaSink interface {
	WriteDelta(text string)
}

// ToolCallParser consumes the raw model output stream, forwards clean text to
// its sink, and halts the moment a complete <search_web> tag shows up in the
// accumulated output. No fragment of the tag, even one split across chunk
// boundaries, is ever forwarded.
type ToolCallParser struct {
	sink    DeltaSink
	state   parserState
	pending string
	all     strings.Builder
	request models.ToolRequest
}

func NewToolCallParser(sink DeltaSink) *ToolCallParser {
	return &ToolCallParser{sink: sink}
}

// Feed processes one upstream fragment. Returns true while the caller should
// keep feeding; false once a tool call was detected and the rest of the
// upstream response can be abandoned.
func (p *ToolCallParser) Feed(chunk string) bool {
	if p.state == stateToolDetected || chunk == "" {
		return p.state != stateToolDetected
	}

	p.all.WriteString(chunk)
	p.pending += chunk
	p.drain(false)
	return p.state != stateToolDetected
}

// Finish flushes any buffered-but-unforwarded text. Called exactly once, when
// the upstream stream completes without a detected tool call.
func (p *ToolCallParser) Finish() {
	if p.state == stateToolDetected {
		return
	}
	p.drain(true)
	if p.pending != "" {
		p.sink.WriteDelta(sanitizeVisible(p.pending))
		p.pending = ""
	}
	p.state = stateForwarding
}

// ToolRequest reports the detected request, if any.
func (p *ToolCallParser) ToolRequest() (models.ToolRequest, bool) {
	return p.request, p.state == stateToolDetected
}

// drain forwards everything in the pending buffer that can no longer be part
// of a tool tag. When final is set, a trailing possible tag prefix is kept for
// Finish to flush instead of waiting for more input.
func (p *ToolCallParser) drain(final bool) {
	for p.pending != "" && p.state != stateToolDetected {
		switch p.state {
		case stateForwarding:
			lt := strings.IndexByte(p.pending, '<')
			if lt < 0 {
				p.sink.WriteDelta(sanitizeVisible(p.pending))
				p.pending = ""
				return
			}
			if lt > 0 {
				p.sink.WriteDelta(sanitizeVisible(p.pending[:lt]))
				p.pending = p.pending[lt:]
			}

			// pending now starts with '<'
			if matchesTagPrefix(p.pending) {
				p.state = stateInsideTag
				continue
			}
			if isPossibleTagPrefix(p.pending) && !final {
				// could still become a tool tag, wait for the next chunk
				return
			}
			// ordinary '<': forward it and move on
			p.sink.WriteDelta(sanitizeVisible(p.pending[:1]))
			p.pending = p.pending[1:]

		case stateInsideTag:
			gt := strings.IndexByte(p.pending, '>')
			if gt < 0 {
				if final {
					// unterminated tag at end of stream is dropped entirely
					p.pending = ""
				}
				return
			}
			// the whole tag, opener or closer, is suppressed
			p.pending = p.pending[gt+1:]
			if p.detectCompleteTag() {
				// nothing after the tag is forwarded
				p.state = stateToolDetected
				p.pending = ""
				return
			}
			p.state = stateForwarding
		}
	}
}

func (p *ToolCallParser) detectCompleteTag() bool {
	match := toolQueryPattern.FindStringSubmatch(p.all.String())
	if match == nil {
		return false
	}
	query := match[1]
	if query == "" {
		query = match[2]
	}
	p.request = models.ToolRequest{Query: strings.TrimSpace(query)}
	return true
}

// matchesTagPrefix reports whether text starts with the full tool tag opener
// or closer, case-insensitively.
func matchesTagPrefix(text string) bool {
	lower := strings.ToLower(text)
	return strings.HasPrefix(lower, toolTagOpen) || strings.HasPrefix(lower, toolTagClose)
}

// isPossibleTagPrefix reports whether text is a proper prefix of the opener or
// closer, so the decision has to wait for more input.
func isPossibleTagPrefix(text string) bool {
	lower := strings.ToLower(text)
	return strings.HasPrefix(toolTagOpen, lower) || strings.HasPrefix(toolTagClose, lower)
}

// sanitizeVisible strips stray tool markup and leaked internal-context
// markers from text about to reach the client.
func sanitizeVisible(text string) string {
	text = strayToolMarkup.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, internalContextOpen, "")
	text = strings.ReplaceAll(text, internalContextClose, "")
	return text
}
