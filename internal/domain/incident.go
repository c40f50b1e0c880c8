package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// Source is one monitored announcements page. The set of sources is static
// configuration, immutable for the lifetime of the process.
type Source struct {
	Name string
	URL  string
}

// CacheEntry holds the conditional-fetch state for one source URL: the HTTP
// validators from the last 200 response and the hash of the last extracted
// section. Empty strings mean "not known yet".
type CacheEntry struct {
	URL          string
	ETag         string
	LastModified string
	ContentHash  string
}

// Incident is one outage at one place, as persisted. Lat/Lon are nil when
// geocoding failed or was disabled.
type Incident struct {
	Source      string
	SourceURL   string
	Title       string
	Description string
	AddressText string
	DedupeHash  string
	Lat         *float64
	Lon         *float64
	Seen        bool
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasCoordinates reports whether the incident was geocoded successfully.
func (i Incident) HasCoordinates() bool {
	return i.Lat != nil && i.Lon != nil
}

// UserSubscription is a read-only snapshot of one subscriber's declared
// areas and addresses. The pipeline never mutates it; the owning API service
// maintains the underlying rows.
type UserSubscription struct {
	Email     string
	Areas     []string
	Addresses []string
}

// NewDedupeHash derives the stable identity of one logical outage.
// Description is excluded on purpose: refreshed wording must update the
// existing row, not create a second one.
func NewDedupeHash(source, title, addressText string) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s", source, title, addressText)))
	return hex.EncodeToString(sum[:])
}
