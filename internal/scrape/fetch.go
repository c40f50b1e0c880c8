// Package scrape fetches outage announcement pages and extracts the panel
// describing today's outages from their loosely structured markup.
package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the monitor to the source site.
const DefaultUserAgent = "H2O-Monitor/1.0 (outage monitoring; contact: ops@example.com)"

// FetchStatus classifies the outcome of a conditional fetch.
type FetchStatus int

const (
	// StatusFetched means HTTP 200: the body and fresh validators are set.
	StatusFetched FetchStatus = iota
	// StatusUnchanged means HTTP 304: the cached content is still current.
	StatusUnchanged
	// StatusFailed means a network error or any other HTTP status.
	StatusFailed
)

// FetchResult is the outcome of one conditional GET.
type FetchResult struct {
	Status       FetchStatus
	Body         string
	ETag         string
	LastModified string
	HTTPStatus   int
}

// Fetcher performs conditional GETs against source pages.
type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewFetcher creates a Fetcher with a hard request timeout so a hanging
// source cannot stall the cycle.
func NewFetcher(timeout time.Duration, userAgent string, logger *slog.Logger) *Fetcher {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch GETs the URL, sending If-None-Match / If-Modified-Since when the
// caller has cached validators. A 304 yields StatusUnchanged with no body;
// any status other than 200 or 304 yields StatusFailed with an error.
func (f *Fetcher) Fetch(ctx context.Context, url, etag, lastModified string) (FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{Status: StatusFailed}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{Status: StatusFailed}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return FetchResult{Status: StatusUnchanged, HTTPStatus: resp.StatusCode}, nil
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{Status: StatusFailed, HTTPStatus: resp.StatusCode}, fmt.Errorf("read body: %w", err)
		}
		return FetchResult{
			Status:       StatusFetched,
			Body:         string(body),
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			HTTPStatus:   resp.StatusCode,
		}, nil
	default:
		return FetchResult{Status: StatusFailed, HTTPStatus: resp.StatusCode},
			fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
}
