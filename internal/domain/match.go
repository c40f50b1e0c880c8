package domain

import (
	"context"
	"log/slog"
	"strings"
)

// MatchEngine decides which subscribers are affected by an incident, either
// by exact normalized area/address match or by geodesic proximity of a
// geocoded user address. The geocoder may be nil, which disables the
// proximity rule.
type MatchEngine struct {
	geocoder Geocoder
	radiusKm float64
	logger   *slog.Logger
}

// NewMatchEngine creates a MatchEngine with the given proximity radius in
// kilometers. A radius at or below zero disables proximity matching.
func NewMatchEngine(geocoder Geocoder, radiusKm float64, logger *slog.Logger) *MatchEngine {
	return &MatchEngine{
		geocoder: geocoder,
		radiusKm: radiusKm,
		logger:   logger,
	}
}

// MatchedUsers returns the emails of subscribers affected by the incident,
// in subscription order, each at most once. An exact area or address match
// short-circuits; otherwise, when the incident carries coordinates, each of
// the user's addresses is geocoded and matched on distance ≤ radius. The
// boundary is inclusive.
func (e *MatchEngine) MatchedUsers(ctx context.Context, inc Incident, users []UserSubscription) []string {
	area := NormalizeForMatch(areaToken(inc.AddressText))
	full := NormalizeForMatch(inc.AddressText)

	var matched []string
	seen := make(map[string]struct{}, len(users))
	for _, user := range users {
		if user.Email == "" {
			continue
		}
		if _, done := seen[user.Email]; done {
			continue
		}
		if e.matches(ctx, inc, user, area, full) {
			seen[user.Email] = struct{}{}
			matched = append(matched, user.Email)
		}
	}
	return matched
}

func (e *MatchEngine) matches(ctx context.Context, inc Incident, user UserSubscription, area, full string) bool {
	for _, a := range user.Areas {
		if area != "" && NormalizeForMatch(a) == area {
			return true
		}
	}
	for _, addr := range user.Addresses {
		if full != "" && NormalizeForMatch(addr) == full {
			return true
		}
	}

	if e.geocoder == nil || e.radiusKm <= 0 || !inc.HasCoordinates() {
		return false
	}

	for _, addr := range user.Addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		// The geocoder expects Latin script.
		result, err := e.geocoder.Geocode(ctx, ToLatin(addr))
		if err != nil {
			e.logger.Warn("user address geocoding failed",
				"stage", "match",
				"user", user.Email,
				"error", err,
			)
			continue
		}
		if result.Formatted == "" {
			continue
		}
		if HaversineKm(*inc.Lat, *inc.Lon, result.Lat, result.Lon) <= e.radiusKm {
			return true
		}
	}
	return false
}

// areaToken takes the leading comma-separated component of an address text,
// which for parsed incidents is the municipality name.
func areaToken(addressText string) string {
	head, _, _ := strings.Cut(addressText, ",")
	return strings.TrimSpace(head)
}
