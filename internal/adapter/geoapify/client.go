// Package geoapify implements domain.Geocoder against the Geoapify
// forward-geocoding API, scoped to the Belgrade city context.
package geoapify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/outage-monitor/internal/domain"
	"github.com/couchcryptid/outage-monitor/internal/observability"
)

// queryPrefix scopes every lookup to the city the monitored utility serves.
const queryPrefix = "Beograd, Serbia, "

// Client implements domain.Geocoder using the Geoapify Geocoding API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Geoapify geocoding client.
func NewClient(apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.geoapify.com/v1/geocode/search",
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode resolves a free-text address within the city context. An empty
// feature set is not an error: the zero result is returned and the caller
// treats the address as unresolvable.
func (c *Client) Geocode(ctx context.Context, address string) (domain.GeocodingResult, error) {
	params := url.Values{
		"text":   {queryPrefix + address},
		"apiKey": {c.apiKey},
		"limit":  {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return domain.GeocodingResult{}, fmt.Errorf("geoapify API error: status %d: %s", resp.StatusCode, body)
	}

	var geoResp response
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, fmt.Errorf("decode response: %w", err)
	}

	if len(geoResp.Features) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return domain.GeocodingResult{}, nil
	}

	f := geoResp.Features[0]
	result := domain.GeocodingResult{
		Formatted:  f.Properties.Formatted,
		Confidence: f.Properties.Rank.Confidence,
	}
	// GeoJSON order is [lon, lat].
	if len(f.Geometry.Coordinates) == 2 {
		result.Lon = f.Geometry.Coordinates[0]
		result.Lat = f.Geometry.Coordinates[1]
	}
	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return result, nil
}

// Geoapify API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
}

type properties struct {
	Formatted string `json:"formatted"`
	Rank      rank   `json:"rank"`
}

type rank struct {
	Confidence float64 `json:"confidence"`
}
