package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
// An empty Formatted field means the provider had no match.
type GeocodingResult struct {
	Lat        float64
	Lon        float64
	Formatted  string
	Confidence float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (GeocodingResult, error)
}
