package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity-ai-gateway/config"
	"verity-ai-gateway/internal/pkg/logger"
)

func testAggregator(t *testing.T, resultsHTML, instantJSON string) *Aggregator {
	t.Helper()

	results := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, resultsHTML)
	}))
	t.Cleanup(results.Close)

	instant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, instantJSON)
	}))
	t.Cleanup(instant.Close)

	log, err := logger.New(logger.Config{Level: "panic", Format: "text"})
	require.NoError(t, err)

	agg := NewAggregator(config.SearchConfig{ResultLimit: 6, Timeout: 5 * time.Second}, log)
	agg.resultsPageURL = results.URL + "/html/"
	agg.instantAnswerURL = instant.URL + "/"
	return agg
}

func wrappedHref(target string) string {
	return "/l/?uddg=" + url.QueryEscape(target) + "&rtt=25"
}

func TestSearchMergesScrapedFirstThenInstant(t *testing.T) {
	html := fmt.Sprintf(`<html><body>
		<a class="result__a" href="%s">First</a>
		<a class="result__a" href="%s">Second</a>
	</body></html>`,
		wrappedHref("https://first.example.com/page"),
		wrappedHref("https://second.example.com/page"))
	instant := `{"AbstractURL":"https://instant.example.com/abstract","RelatedTopics":[{"FirstURL":"https://related.example.com/a"},{"Topics":[{"FirstURL":"https://related.example.com/nested"}]}]}`

	agg := testAggregator(t, html, instant)
	result, err := agg.Search(context.Background(), "some query")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://first.example.com/page",
		"https://second.example.com/page",
		"https://instant.example.com/abstract",
		"https://related.example.com/a",
		"https://related.example.com/nested",
	}, result.URLs)
	assert.False(t, result.Diagnostics.Blocked)
	assert.Equal(t, 5, result.Diagnostics.ResultCount)
}

func TestSearchDeduplicatesAndStripsEngineHost(t *testing.T) {
	html := fmt.Sprintf(`<html><body>
		<a class="result__a" href="%s">Dup</a>
		<a class="result__a" href="%s">Dup again</a>
		<a class="result__a" href="%s">Engine self link</a>
	</body></html>`,
		wrappedHref("https://dup.example.com/page"),
		wrappedHref("https://dup.example.com/page#section"),
		wrappedHref("https://duckduckgo.com/about"))
	instant := `{"AbstractURL":"https://dup.example.com/page"}`

	agg := testAggregator(t, html, instant)
	result, err := agg.Search(context.Background(), "dup query")
	require.NoError(t, err)

	assert.Equal(t, []string{"https://dup.example.com/page"}, result.URLs)
	for _, u := range result.URLs {
		assert.NotContains(t, u, "duckduckgo.com")
	}
}

func TestSearchCapsAtResultLimit(t *testing.T) {
	var anchors strings.Builder
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&anchors, `<a class="result__a" href="%s">r</a>`, wrappedHref(fmt.Sprintf("https://site%d.example.com/", i)))
	}
	agg := testAggregator(t, "<html><body>"+anchors.String()+"</body></html>", `{}`)

	result, err := agg.Search(context.Background(), "many results")
	require.NoError(t, err)
	assert.Len(t, result.URLs, 6)
}

func TestSearchFlagsBotChallengeAsBlocked(t *testing.T) {
	html := `<html><body><div class="anomaly-modal">Bots use DuckDuckGo too</div></body></html>`
	agg := testAggregator(t, html, `{}`)

	result, err := agg.Search(context.Background(), "blocked query")
	require.NoError(t, err)
	assert.True(t, result.Diagnostics.Blocked)
	assert.Empty(t, result.URLs)
}

func TestSearchEmptyPageIsNotBlocked(t *testing.T) {
	agg := testAggregator(t, "<html><body><p>no results found</p></body></html>", `{}`)

	result, err := agg.Search(context.Background(), "no hits")
	require.NoError(t, err)
	assert.False(t, result.Diagnostics.Blocked)
	assert.Empty(t, result.URLs)
}

func TestDecodeRedirectHref(t *testing.T) {
	assert.Equal(t, "https://target.example.com/a?b=1&c=2",
		decodeRedirectHref("/l/?uddg="+url.QueryEscape("https://target.example.com/a?b=1&c=2")+"&rtt=10"))
	assert.Equal(t, "https://plain.example.com/x", decodeRedirectHref("https://plain.example.com/x"))
	assert.Equal(t, "https://proto.example.com/x", decodeRedirectHref("//proto.example.com/x"))
	assert.Empty(t, decodeRedirectHref("javascript:void(0)"))
	assert.Empty(t, decodeRedirectHref(""))
}
