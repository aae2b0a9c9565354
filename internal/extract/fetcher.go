package extract

import (
	"context"
	"crypto/x509"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"verity-ai-gateway/internal/pkg/logger"
)

type fetchResult struct {
	StatusCode  int
	ContentType string
	FinalURL    string
	Body        []byte
}

func (r *fetchResult) IsHTML() bool {
	mediaType := strings.ToLower(strings.SplitN(r.ContentType, ";", 2)[0])
	return strings.Contains(mediaType, "text/html") || strings.Contains(mediaType, "application/xhtml")
}

func (r *fetchResult) Blocked() bool {
	return r.StatusCode == 403 || r.StatusCode == 429 || r.StatusCode >= 500
}

type fetcher struct {
	collector  *colly.Collector
	logger     *logger.Logger
	timeout    time.Duration
	mu         sync.Mutex
	userAgents []string
	uaIndex    int
}

func newFetcher(timeout time.Duration, log *logger.Logger) *fetcher {
	collector := colly.NewCollector(
		colly.AllowedDomains(), // allow all domains
		colly.IgnoreRobotsTxt(),
	)
	collector.SetRequestTimeout(timeout)

	return &fetcher{
		collector: collector,
		logger:    log,
		timeout:   timeout,
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
		},
	}
}

// Fetch retrieves one URL with a browser-like header set. On a TLS hostname
// mismatch it retries once with a www. prefix, which covers apex domains
// whose certificate only names the www host.
func (f *fetcher) Fetch(ctx context.Context, targetURL string) (*fetchResult, error) {
	result, err := f.fetchOnce(ctx, targetURL)
	if err != nil && isTLSHostnameMismatch(err) {
		if retryURL, ok := withWWWPrefix(targetURL); ok {
			f.logger.Debug("TLS hostname mismatch, retrying with www prefix", "url", targetURL)
			return f.fetchOnce(ctx, retryURL)
		}
	}
	return result, err
}

func (f *fetcher) fetchOnce(ctx context.Context, targetURL string) (*fetchResult, error) {
	c := f.collector.Clone()
	c.Context = ctx

	result := &fetchResult{FinalURL: targetURL}
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		f.mu.Lock()
		userAgent := f.userAgents[f.uaIndex]
		f.uaIndex = (f.uaIndex + 1) % len(f.userAgents)
		f.mu.Unlock()

		r.Headers.Set("User-Agent", userAgent)
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		r.Headers.Set("Cache-Control", "max-age=0")
	})

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.FinalURL = r.Request.URL.String()
		result.Body = r.Body
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			result.StatusCode = r.StatusCode
			result.ContentType = r.Headers.Get("Content-Type")
			if r.Request != nil && r.Request.URL != nil {
				result.FinalURL = r.Request.URL.String()
			}
			result.Body = r.Body
		}
	})

	if err := c.Visit(targetURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	c.Wait()

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, fetchErr
}

func isTLSHostnameMismatch(err error) bool {
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	return strings.Contains(err.Error(), "certificate is valid for")
}

func withWWWPrefix(targetURL string) (string, bool) {
	parsed, err := url.Parse(targetURL)
	if err != nil || strings.HasPrefix(parsed.Host, "www.") {
		return "", false
	}
	parsed.Host = "www." + parsed.Host
	return parsed.String(), true
}
