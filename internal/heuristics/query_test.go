package heuristics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"verity-ai-gateway/internal/heuristics"
)

func TestFoldDiacritics(t *testing.T) {
	assert.Equal(t, "Muller", heuristics.FoldDiacritics("Müller"))
	assert.Equal(t, "creme brulee", heuristics.FoldDiacritics("crème brûlée"))
	assert.Equal(t, "plain", heuristics.FoldDiacritics("plain"))
}

func TestInformativeTokensDropsStopwordsAndShortWords(t *testing.T) {
	tokens := heuristics.InformativeTokens("What are the opening hours of the museum?")
	assert.Equal(t, []string{"opening", "hours", "museum"}, tokens)
}

func TestInformativeTokensDeduplicates(t *testing.T) {
	tokens := heuristics.InformativeTokens("prices prices prices in london")
	assert.Equal(t, []string{"prices", "london"}, tokens)
}

func TestIsLowQualityQuery(t *testing.T) {
	assert.True(t, heuristics.IsLowQualityQuery("it", 10, 2))
	assert.True(t, heuristics.IsLowQualityQuery("the and for", 10, 2))
	assert.False(t, heuristics.IsLowQualityQuery("current inflation rate germany", 10, 2))
}

func TestSynthesizeSearchQueryBiographyFraming(t *testing.T) {
	assert.Equal(t, "Marie Curie biography", heuristics.SynthesizeSearchQuery("who is Marie Curie?"))
	assert.Equal(t, "Ada Lovelace biography", heuristics.SynthesizeSearchQuery("Who's Ada Lovelace"))
}

func TestSynthesizeSearchQueryLatestVideoHint(t *testing.T) {
	query := heuristics.SynthesizeSearchQuery("what is the latest video from veritasium")
	assert.Contains(t, query, "youtube")

	// no double hint when the platform is already named
	query = heuristics.SynthesizeSearchQuery("latest veritasium video on youtube")
	assert.Equal(t, "latest veritasium video on youtube", query)
}

func TestSynthesizeSearchQueryVersionedAPIHint(t *testing.T) {
	query := heuristics.SynthesizeSearchQuery("how do I paginate with stripe v10.2 api")
	assert.Contains(t, query, "documentation")
}

func TestSynthesizeSearchQueryPassThrough(t *testing.T) {
	message := "horaires du magasin demain"
	assert.Equal(t, message, heuristics.SynthesizeSearchQuery(message))
}
