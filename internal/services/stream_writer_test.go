package services_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
	"verity-ai-gateway/internal/services"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "panic", Format: "text"})
	require.NoError(t, err)
	return log
}

func TestStreamWriterEncodesDeltaAndDone(t *testing.T) {
	var buf bytes.Buffer
	writer := services.NewStreamWriter(&buf, models.StatusBrief, testLogger(t))

	writer.WriteDelta("hello")
	writer.WriteDone()

	out := buf.String()
	assert.Contains(t, out, "event:delta")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "event:done")
	assert.Contains(t, out, "[DONE]")
}

func TestStreamWriterVerbosityGate(t *testing.T) {
	var buf bytes.Buffer
	writer := services.NewStreamWriter(&buf, models.StatusBrief, testLogger(t))

	writer.WriteStatus("search", models.StatusBrief)
	writer.WriteStatus("fetch 1/3 https://example.com", models.StatusDetailed)

	out := buf.String()
	assert.Contains(t, out, `<status level="brief">search</status>`)
	assert.NotContains(t, out, "fetch 1/3")
}

func TestStreamWriterDetailedEnablesBothLevels(t *testing.T) {
	var buf bytes.Buffer
	writer := services.NewStreamWriter(&buf, models.StatusDetailed, testLogger(t))

	writer.WriteStatus("search", models.StatusBrief)
	writer.WriteStatus("search my query", models.StatusDetailed)

	out := buf.String()
	assert.Contains(t, out, `<status level="brief">search</status>`)
	assert.Contains(t, out, `<status level="detailed">search my query</status>`)
}

func TestStreamWriterSuppressesConsecutiveDuplicatesPerLevel(t *testing.T) {
	var buf bytes.Buffer
	writer := services.NewStreamWriter(&buf, models.StatusDetailed, testLogger(t))

	writer.WriteStatus("fetch", models.StatusBrief)
	writer.WriteStatus("fetch", models.StatusBrief)
	writer.WriteStatus("fetch 1/2 https://a.example", models.StatusDetailed)
	writer.WriteStatus("fetch", models.StatusBrief)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `<status level="brief">fetch</status>`))
	assert.Equal(t, 1, strings.Count(out, "fetch 1/2"))
}

type failingWriter struct {
	writes int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("connection reset")
}

func TestStreamWriterSwallowsWritesAfterTransportFailure(t *testing.T) {
	fw := &failingWriter{}
	writer := services.NewStreamWriter(fw, models.StatusBrief, testLogger(t))

	writer.WriteDelta("first")
	before := fw.writes
	writer.WriteDelta("second")
	writer.WriteStatus("search", models.StatusBrief)
	writer.WriteDone()

	assert.Equal(t, before, fw.writes)
}

func TestStreamWriterEmptyDeltaIsNoop(t *testing.T) {
	var buf bytes.Buffer
	writer := services.NewStreamWriter(&buf, models.StatusBrief, testLogger(t))

	writer.WriteDelta("")
	assert.Zero(t, buf.Len())
}
