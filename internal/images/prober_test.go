package images

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verity-ai-gateway/internal/models"
	"verity-ai-gateway/internal/pkg/logger"
)

func testProber(t *testing.T) *Prober {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "panic", Format: "text"})
	require.NoError(t, err)
	return NewProber(5*time.Second, 4, 4, time.Minute, log)
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/final.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/hop1", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final.png", http.StatusFound)
	})
	mux.HandleFunc("/hop2", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final.png", http.StatusFound)
	})
	mux.HandleFunc("/ambiguous.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/notimage", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/toblocked", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://pinterest.com/pin/1", http.StatusFound)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestProberAcceptsImageContentType(t *testing.T) {
	server := imageServer(t)
	prober := testProber(t)

	accepted := prober.Validate(context.Background(), []models.ImageCandidate{
		{ImageURL: server.URL + "/final.png", Title: "ok"},
	}, 3)

	require.Len(t, accepted, 1)
	assert.Equal(t, server.URL+"/final.png", accepted[0].FinalURL)
	assert.Equal(t, "image/png", accepted[0].ContentType)
}

func TestProberRecordsFinalRedirectTarget(t *testing.T) {
	server := imageServer(t)
	prober := testProber(t)

	accepted := prober.Validate(context.Background(), []models.ImageCandidate{
		{ImageURL: server.URL + "/hop1"},
	}, 1)

	require.Len(t, accepted, 1)
	assert.Equal(t, server.URL+"/final.png", accepted[0].FinalURL)
	assert.Equal(t, server.URL+"/hop1", accepted[0].ImageURL)
}

func TestProberNeverAcceptsDuplicateFinalURLs(t *testing.T) {
	server := imageServer(t)
	prober := testProber(t)

	// two distinct candidates resolving to one final URL
	accepted := prober.Validate(context.Background(), []models.ImageCandidate{
		{ImageURL: server.URL + "/hop1"},
		{ImageURL: server.URL + "/hop2"},
	}, 5)

	assert.Len(t, accepted, 1)
}

func TestProberRejectsBlockedHostAtRedirectHop(t *testing.T) {
	server := imageServer(t)
	prober := testProber(t)

	accepted := prober.Validate(context.Background(), []models.ImageCandidate{
		{ImageURL: server.URL + "/toblocked"},
	}, 1)

	assert.Empty(t, accepted)
}

func TestProberRejectsBlockedHostDirectly(t *testing.T) {
	prober := testProber(t)
	accepted := prober.Validate(context.Background(), []models.ImageCandidate{
		{ImageURL: "https://i.pinimg.com/some/image.jpg"},
	}, 1)
	assert.Empty(t, accepted)
}

func TestProberBoundsRedirects(t *testing.T) {
	server := imageServer(t)
	prober := testProber(t)

	accepted := prober.Validate(context.Background(), []models.ImageCandidate{
		{ImageURL: server.URL + "/loop"},
	}, 1)
	assert.Empty(t, accepted)
}

func TestProberAmbiguousTypeNeedsStrongExtension(t *testing.T) {
	server := imageServer(t)
	prober := testProber(t)

	accepted := prober.Validate(context.Background(), []models.ImageCandidate{
		{ImageURL: server.URL + "/ambiguous.png"},
		{ImageURL: server.URL + "/notimage"},
	}, 5)

	require.Len(t, accepted, 1)
	assert.Equal(t, server.URL+"/ambiguous.png", accepted[0].FinalURL)
}

func TestProberStopsAtRequestedCount(t *testing.T) {
	server := imageServer(t)
	prober := testProber(t)

	var candidates []models.ImageCandidate
	for i := 0; i < 10; i++ {
		candidates = append(candidates, models.ImageCandidate{ImageURL: fmt.Sprintf("%s/final.png?v=%d", server.URL, i)})
	}

	accepted := prober.Validate(context.Background(), candidates, 2)
	assert.Len(t, accepted, 2)
}
