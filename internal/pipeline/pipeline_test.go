package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/outage-monitor/internal/domain"
	"github.com/couchcryptid/outage-monitor/internal/observability"
	"github.com/couchcryptid/outage-monitor/internal/scrape"
)

const (
	bvkURL = "https://www.bvk.rs/kvarovi-na-mrezi/"
	epsURL = "https://example.com/eps/"
)

// panelPage wraps body text in the accordion layout under a panel titled with
// the fixed test date.
func panelPage(body string) string {
	return fmt.Sprintf(`<html><body>
		<div class="elementor-accordion-item">
			<div class="elementor-tab-title" aria-controls="c-1">06.10.2025. (понедељак)</div>
			<div class="elementor-tab-content" id="c-1">%s</div>
		</div>
	</body></html>`, body)
}

type storedIncident struct {
	inc  domain.Incident
	seen bool
}

type fakeStore struct {
	mu        sync.Mutex
	incidents map[string]*storedIncident
	cache     map[string]domain.CacheEntry
	users     []domain.UserSubscription

	upsertCalls  int
	resetEntered chan struct{}
	resetRelease chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		incidents: make(map[string]*storedIncident),
		cache:     make(map[string]domain.CacheEntry),
	}
}

func (s *fakeStore) ResetSeen(_ context.Context) error {
	if s.resetEntered != nil {
		s.resetEntered <- struct{}{}
		<-s.resetRelease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stored := range s.incidents {
		stored.seen = false
	}
	return nil
}

func (s *fakeStore) Upsert(_ context.Context, inc domain.Incident) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	if stored, ok := s.incidents[inc.DedupeHash]; ok {
		stored.inc = inc
		stored.seen = true
		return false, nil
	}
	s.incidents[inc.DedupeHash] = &storedIncident{inc: inc, seen: true}
	return true, nil
}

func (s *fakeStore) MarkSeenBySource(_ context.Context, source string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, stored := range s.incidents {
		if stored.inc.Source == source && !stored.seen {
			stored.seen = true
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) SweepUnseen(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for hash, stored := range s.incidents {
		if !stored.seen {
			delete(s.incidents, hash)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) LoadCache(_ context.Context, url string) (domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[url]
	if !ok {
		return domain.CacheEntry{URL: url}, nil
	}
	return entry, nil
}

func (s *fakeStore) SaveCache(_ context.Context, entry domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[entry.URL] = entry
	return nil
}

func (s *fakeStore) ListSubscriptions(_ context.Context) ([]domain.UserSubscription, error) {
	return s.users, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.incidents)
}

func (s *fakeStore) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var titles []string
	for _, stored := range s.incidents {
		titles = append(titles, stored.inc.Title)
	}
	return titles
}

type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]scrape.FetchResult
	errs    map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url, _, _ string) (scrape.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[url]; err != nil {
		return scrape.FetchResult{Status: scrape.StatusFailed}, err
	}
	return f.results[url], nil
}

func (f *fakeFetcher) set(url string, res scrape.FetchResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = res
}

// matchAll pairs every incident with every subscriber.
type matchAll struct{}

func (matchAll) MatchedUsers(_ context.Context, _ domain.Incident, users []domain.UserSubscription) []string {
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails
}

type sentDigest struct {
	recipient string
	incidents []domain.Incident
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentDigest
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, recipient string, incidents []domain.Incident) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentDigest{recipient: recipient, incidents: incidents})
	return nil
}

func (n *fakeNotifier) digests() []sentDigest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

func setFixedDate(t *testing.T) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2025, time.October, 6, 8, 0, 0, 0, time.UTC),
	))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func newMonitor(sources []domain.Source, fetcher Fetcher, store Store, notifier Notifier) *Monitor {
	return New(Deps{
		Sources:  sources,
		Location: time.UTC,
		Fetcher:  fetcher,
		Store:    store,
		Matcher:  matchAll{},
		Notifier: notifier,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  observability.NewMetricsForTesting(),
	})
}

func bvkSources() []domain.Source {
	return []domain.Source{{Name: "BVK", URL: bvkURL}}
}

func TestRunCycle(t *testing.T) {
	ctx := context.Background()
	twoStreets := panelPage("До 22:00 часова. Палилула: Улица 1. Звездара: Улица 3")

	t.Run("first cycle inserts and sends one digest per user", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		store.users = []domain.UserSubscription{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
		}
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusFetched, Body: twoStreets, ETag: `"v1"`},
		}}
		notifier := &fakeNotifier{}
		m := newMonitor(bvkSources(), fetcher, store, notifier)

		require.NoError(t, m.RunCycle(ctx))

		assert.Equal(t, 2, store.count())
		assert.ElementsMatch(t, []string{"Палилула: Улица 1", "Звездара: Улица 3"}, store.titles())
		assert.Equal(t, `"v1"`, store.cache[bvkURL].ETag)
		assert.NotEmpty(t, store.cache[bvkURL].ContentHash)

		digests := notifier.digests()
		require.Len(t, digests, 2)
		assert.Equal(t, "a@example.com", digests[0].recipient)
		assert.Len(t, digests[0].incidents, 2)
		assert.Equal(t, "b@example.com", digests[1].recipient)
	})

	t.Run("identical refetch updates nothing and stays quiet", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		store.users = []domain.UserSubscription{{Email: "a@example.com"}}
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusFetched, Body: twoStreets},
		}}
		notifier := &fakeNotifier{}
		m := newMonitor(bvkSources(), fetcher, store, notifier)

		require.NoError(t, m.RunCycle(ctx))
		upsertsAfterFirst := store.upsertCalls

		require.NoError(t, m.RunCycle(ctx))

		assert.Equal(t, upsertsAfterFirst, store.upsertCalls, "unchanged section must not write incident rows")
		assert.Equal(t, 2, store.count(), "incidents must survive the sweep")
		assert.Len(t, notifier.digests(), 1)
	})

	t.Run("304 keeps incidents alive with zero writes", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusFetched, Body: twoStreets},
		}}
		notifier := &fakeNotifier{}
		m := newMonitor(bvkSources(), fetcher, store, notifier)

		require.NoError(t, m.RunCycle(ctx))
		upsertsAfterFirst := store.upsertCalls

		fetcher.set(bvkURL, scrape.FetchResult{Status: scrape.StatusUnchanged})
		require.NoError(t, m.RunCycle(ctx))

		assert.Equal(t, upsertsAfterFirst, store.upsertCalls)
		assert.Equal(t, 2, store.count())
	})

	t.Run("panel disappearance retires the incidents", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusFetched, Body: twoStreets},
		}}
		m := newMonitor(bvkSources(), fetcher, store, &fakeNotifier{})

		require.NoError(t, m.RunCycle(ctx))
		require.Equal(t, 2, store.count())

		fetcher.set(bvkURL, scrape.FetchResult{
			Status: scrape.StatusFetched,
			Body:   "<html><body><h2>07.10.2025.</h2></body></html>",
		})
		require.NoError(t, m.RunCycle(ctx))

		assert.Zero(t, store.count())
	})

	t.Run("changed panel notifies only the new incident", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		store.users = []domain.UserSubscription{{Email: "a@example.com"}}
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusFetched, Body: twoStreets},
		}}
		notifier := &fakeNotifier{}
		m := newMonitor(bvkSources(), fetcher, store, notifier)

		require.NoError(t, m.RunCycle(ctx))

		fetcher.set(bvkURL, scrape.FetchResult{
			Status: scrape.StatusFetched,
			Body:   panelPage("До 22:00 часова. Палилула: Улица 1. Звездара: Улица 3, Нова улица"),
		})
		require.NoError(t, m.RunCycle(ctx))

		assert.Equal(t, 3, store.count())
		digests := notifier.digests()
		require.Len(t, digests, 2)
		require.Len(t, digests[1].incidents, 1)
		assert.Equal(t, "Звездара: Нова улица", digests[1].incidents[0].Title)
	})

	t.Run("failed source is isolated but still swept", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		fetcher := &fakeFetcher{
			results: map[string]scrape.FetchResult{
				bvkURL: {Status: scrape.StatusFetched, Body: twoStreets},
				epsURL: {Status: scrape.StatusFetched, Body: panelPage("Земун: Главна")},
			},
			errs: map[string]error{},
		}
		sources := []domain.Source{
			{Name: "BVK", URL: bvkURL},
			{Name: "EPS", URL: epsURL},
		}
		m := newMonitor(sources, fetcher, store, &fakeNotifier{})

		require.NoError(t, m.RunCycle(ctx))
		require.Equal(t, 2, store.count(), "only BVK has a registered grammar")

		fetcher.errs[bvkURL] = errors.New("connection refused")
		fetcher.set(epsURL, scrape.FetchResult{Status: scrape.StatusUnchanged})
		require.NoError(t, m.RunCycle(ctx))

		assert.Zero(t, store.count(), "unreachable source's incidents are retired")
	})

	t.Run("notifier errors do not fail the cycle", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		store.users = []domain.UserSubscription{{Email: "a@example.com"}}
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusFetched, Body: twoStreets},
		}}
		m := newMonitor(bvkSources(), fetcher, store, &fakeNotifier{err: errors.New("smtp down")})

		require.NoError(t, m.RunCycle(ctx))
		assert.Equal(t, 2, store.count())
	})

	t.Run("nil notifier logs matches instead of mailing", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		store.users = []domain.UserSubscription{{Email: "a@example.com"}}
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusFetched, Body: twoStreets},
		}}
		m := newMonitor(bvkSources(), fetcher, store, nil)

		require.NoError(t, m.RunCycle(ctx))
		assert.Equal(t, 2, store.count())
	})
}

func TestTryRun(t *testing.T) {
	t.Run("concurrent trigger is absorbed", func(t *testing.T) {
		setFixedDate(t)
		store := newFakeStore()
		store.resetEntered = make(chan struct{})
		store.resetRelease = make(chan struct{})
		fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
			bvkURL: {Status: scrape.StatusUnchanged},
		}}
		m := newMonitor(bvkSources(), fetcher, store, nil)

		done := make(chan bool)
		go func() {
			done <- m.TryRun(context.Background())
		}()

		<-store.resetEntered
		assert.False(t, m.TryRun(context.Background()), "second trigger must be absorbed")

		close(store.resetRelease)
		assert.True(t, <-done)
	})
}

func TestCheckReadiness(t *testing.T) {
	setFixedDate(t)
	store := newFakeStore()
	fetcher := &fakeFetcher{results: map[string]scrape.FetchResult{
		bvkURL: {Status: scrape.StatusUnchanged},
	}}
	m := newMonitor(bvkSources(), fetcher, store, nil)

	assert.Error(t, m.CheckReadiness(context.Background()))
	require.NoError(t, m.RunCycle(context.Background()))
	assert.NoError(t, m.CheckReadiness(context.Background()))
}
