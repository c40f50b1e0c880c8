// Package pipeline drives one monitoring cycle: reset liveness flags, fetch
// and parse every source, upsert incidents, sweep the ones no longer
// reported, and dispatch digests for genuinely new incidents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/outage-monitor/internal/domain"
	"github.com/couchcryptid/outage-monitor/internal/observability"
	"github.com/couchcryptid/outage-monitor/internal/scrape"
)

// Fetcher performs the conditional GET against a source page.
type Fetcher interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (scrape.FetchResult, error)
}

// Store is the persistence surface the cycle needs.
type Store interface {
	ResetSeen(ctx context.Context) error
	Upsert(ctx context.Context, inc domain.Incident) (bool, error)
	MarkSeenBySource(ctx context.Context, source string) (int64, error)
	SweepUnseen(ctx context.Context) (int64, error)
	LoadCache(ctx context.Context, url string) (domain.CacheEntry, error)
	SaveCache(ctx context.Context, entry domain.CacheEntry) error
	ListSubscriptions(ctx context.Context) ([]domain.UserSubscription, error)
}

// Matcher decides which subscribers an incident affects.
type Matcher interface {
	MatchedUsers(ctx context.Context, inc domain.Incident, users []domain.UserSubscription) []string
}

// Notifier delivers one digest to one recipient.
type Notifier interface {
	Notify(ctx context.Context, recipient string, incidents []domain.Incident) error
}

// Deps collects everything a Monitor needs. Geocoder and Notifier may be
// nil: geocoding then yields incidents without coordinates, and matched
// users are logged instead of mailed.
type Deps struct {
	Sources  []domain.Source
	Location *time.Location
	Fetcher  Fetcher
	Store    Store
	Geocoder domain.Geocoder
	Matcher  Matcher
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Monitor orchestrates monitoring cycles. At most one cycle runs at a time:
// a trigger arriving while a cycle is in flight is absorbed, never queued,
// which protects the reset → upsert → sweep invariant.
type Monitor struct {
	sources  []domain.Source
	location *time.Location
	fetcher  Fetcher
	store    Store
	geocoder domain.Geocoder
	matcher  Matcher
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics

	running sync.Mutex
	ready   atomic.Bool
}

// New creates a Monitor.
func New(d Deps) *Monitor {
	return &Monitor{
		sources:  d.Sources,
		location: d.Location,
		fetcher:  d.Fetcher,
		store:    d.Store,
		geocoder: d.Geocoder,
		matcher:  d.Matcher,
		notifier: d.Notifier,
		logger:   d.Logger,
		metrics:  d.Metrics,
	}
}

// CheckReadiness returns nil once at least one cycle has completed.
func (m *Monitor) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("no monitoring cycle has completed yet")
	}
	return nil
}

// TryRun starts a cycle unless one is already in flight, in which case the
// trigger is absorbed and false is returned.
func (m *Monitor) TryRun(ctx context.Context) bool {
	if !m.running.TryLock() {
		return false
	}
	defer m.running.Unlock()

	if err := m.runCycle(ctx); err != nil {
		m.logger.Error("monitoring cycle failed", "error", err)
	}
	return true
}

// RunCycle runs one cycle synchronously, waiting for any in-flight cycle to
// finish first. This is the entry point for tests and one-shot invocations.
func (m *Monitor) RunCycle(ctx context.Context) error {
	m.running.Lock()
	defer m.running.Unlock()
	return m.runCycle(ctx)
}

func (m *Monitor) runCycle(ctx context.Context) error {
	start := time.Now()
	m.metrics.CycleRuns.Inc()
	m.metrics.CycleRunning.Set(1)
	defer m.metrics.CycleRunning.Set(0)

	if err := m.store.ResetSeen(ctx); err != nil {
		return fmt.Errorf("reset seen flags: %w", err)
	}

	today := domain.TodayIn(m.location)
	var fresh []domain.Incident
	for _, src := range m.sources {
		fresh = append(fresh, m.processSource(ctx, src, today)...)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	// The sweep runs exactly once, after every source has been processed.
	// A failed or skipped source never short-circuits it.
	swept, err := m.store.SweepUnseen(ctx)
	if err != nil {
		return fmt.Errorf("sweep unseen incidents: %w", err)
	}
	m.metrics.IncidentsSwept.Add(float64(swept))
	if swept > 0 {
		m.logger.Info("retired incidents no longer reported", "count", swept)
	}

	if len(fresh) > 0 {
		m.dispatch(ctx, fresh)
	}

	m.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	m.ready.Store(true)
	m.logger.Info("cycle complete", "new_incidents", len(fresh), "swept", swept,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// processSource runs one source through fetch → extract → parse → geocode →
// upsert and returns the incidents newly inserted for it. Every failure is
// logged with the source and stage and skips only this source.
func (m *Monitor) processSource(ctx context.Context, src domain.Source, today time.Time) []domain.Incident {
	log := m.logger.With("source", src.Name)

	cache, err := m.store.LoadCache(ctx, src.URL)
	if err != nil {
		log.Error("cache lookup failed", "stage", "cache", "error", err)
		return nil
	}

	res, err := m.fetcher.Fetch(ctx, src.URL, cache.ETag, cache.LastModified)
	if err != nil || res.Status == scrape.StatusFailed {
		m.metrics.FetchRequests.WithLabelValues(src.Name, "failed").Inc()
		log.Warn("fetch failed", "stage", "fetch", "http_status", res.HTTPStatus, "error", err)
		return nil
	}
	if res.Status == scrape.StatusUnchanged {
		m.metrics.FetchRequests.WithLabelValues(src.Name, "unchanged").Inc()
		m.keepAlive(ctx, src, log)
		log.Info("not modified", "stage", "fetch")
		return nil
	}
	m.metrics.FetchRequests.WithLabelValues(src.Name, "fetched").Inc()

	section, err := scrape.ExtractSection(res.Body, today)
	if err != nil {
		switch {
		case errors.Is(err, scrape.ErrNoPanelToday):
			log.Info("no panel published for today yet", "stage", "extract")
		case errors.Is(err, scrape.ErrNoContent):
			log.Info("date title found without content block", "stage", "extract")
		default:
			log.Warn("section extraction failed", "stage", "extract", "error", err)
		}
		return nil
	}

	if cache.ContentHash != "" && section.Hash == cache.ContentHash {
		// Same section text as last cycle: keep the source's incidents
		// alive without re-parsing or writing any incident rows.
		m.keepAlive(ctx, src, log)
		m.saveCache(ctx, src, res, section, log)
		log.Info("section unchanged", "stage", "extract")
		return nil
	}

	records := domain.Parse(src.Name, section.Text)
	if len(records) == 0 {
		log.Info("no incident records in panel", "stage", "parse")
	}

	var inserted, updated int
	var fresh []domain.Incident
	for _, rec := range records {
		inc := m.buildIncident(ctx, src, rec, log)
		isNew, err := m.store.Upsert(ctx, inc)
		if err != nil {
			log.Error("incident write failed", "stage", "store", "title", rec.Title, "error", err)
			continue
		}
		if isNew {
			inserted++
			fresh = append(fresh, inc)
		} else {
			updated++
		}
	}
	m.metrics.IncidentsInserted.Add(float64(inserted))
	m.metrics.IncidentsUpdated.Add(float64(updated))

	m.saveCache(ctx, src, res, section, log)
	log.Info("source processed", "inserted", inserted, "updated", updated)
	return fresh
}

func (m *Monitor) buildIncident(ctx context.Context, src domain.Source, rec domain.Record, log *slog.Logger) domain.Incident {
	inc := domain.Incident{
		Source:      src.Name,
		SourceURL:   src.URL,
		Title:       rec.Title,
		Description: rec.Description,
		AddressText: rec.AddressText,
		DedupeHash:  domain.NewDedupeHash(src.Name, rec.Title, rec.AddressText),
	}
	if m.geocoder == nil || inc.AddressText == "" {
		return inc
	}

	result, err := m.geocoder.Geocode(ctx, inc.AddressText)
	if err != nil {
		log.Warn("geocoding failed", "stage", "geocode", "address", inc.AddressText, "error", err)
		return inc
	}
	if result.Formatted != "" {
		lat, lon := result.Lat, result.Lon
		inc.Lat, inc.Lon = &lat, &lon
	}
	return inc
}

// keepAlive re-marks a source's incidents seen when its content is known to
// be unchanged, so the global sweep does not retire still-current outages.
func (m *Monitor) keepAlive(ctx context.Context, src domain.Source, log *slog.Logger) {
	kept, err := m.store.MarkSeenBySource(ctx, src.Name)
	if err != nil {
		log.Error("keep-alive mark failed", "stage", "store", "error", err)
		return
	}
	if kept > 0 {
		log.Debug("kept incidents alive", "count", kept)
	}
}

func (m *Monitor) saveCache(ctx context.Context, src domain.Source, res scrape.FetchResult, section scrape.Section, log *slog.Logger) {
	err := m.store.SaveCache(ctx, domain.CacheEntry{
		URL:          src.URL,
		ETag:         res.ETag,
		LastModified: res.LastModified,
		ContentHash:  section.Hash,
	})
	if err != nil {
		log.Error("cache save failed", "stage", "cache", "error", err)
	}
}

// dispatch matches the cycle's new incidents against the subscription
// snapshot and sends each affected user a single aggregated digest.
func (m *Monitor) dispatch(ctx context.Context, fresh []domain.Incident) {
	users, err := m.store.ListSubscriptions(ctx)
	if err != nil {
		m.logger.Error("subscription snapshot failed", "stage", "notify", "error", err)
		return
	}
	if len(users) == 0 {
		return
	}

	perUser := make(map[string][]domain.Incident)
	var order []string
	for _, inc := range fresh {
		for _, recipient := range m.matcher.MatchedUsers(ctx, inc, users) {
			if _, ok := perUser[recipient]; !ok {
				order = append(order, recipient)
			}
			perUser[recipient] = append(perUser[recipient], inc)
		}
	}

	for _, recipient := range order {
		if m.notifier == nil {
			m.logger.Info("notifications disabled, matched user not mailed",
				"stage", "notify", "recipient", recipient, "incidents", len(perUser[recipient]))
			continue
		}
		if err := m.notifier.Notify(ctx, recipient, perUser[recipient]); err != nil {
			m.metrics.NotificationErrors.Inc()
			m.logger.Error("notification dispatch failed", "stage", "notify",
				"recipient", recipient, "error", err)
			continue
		}
		m.metrics.NotificationsSent.Inc()
		m.logger.Info("digest sent", "stage", "notify",
			"recipient", recipient, "incidents", len(perUser[recipient]))
	}
}
