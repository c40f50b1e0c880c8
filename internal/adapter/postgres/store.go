// Package postgres persists incidents and per-source fetch cache state, and
// reads the subscription snapshot owned by the user-facing API service.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/outage-monitor/internal/domain"
)

// Store wraps a pgx connection pool with the pipeline's persistence
// operations.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to the database and verifies the connection.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Exec runs arbitrary SQL, for schema setup in tests and migrations.
func (s *Store) Exec(ctx context.Context, sql string) error {
	if _, err := s.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// ResetSeen clears every incident's liveness flag. Called once at cycle
// start; rows not re-marked by the end of the cycle are swept.
func (s *Store) ResetSeen(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `UPDATE incident SET seen = FALSE`); err != nil {
		return fmt.Errorf("reset seen flags: %w", err)
	}
	return nil
}

// Upsert inserts the incident or, when a row with the same dedupe hash
// exists, refreshes its description and marks it seen. The write is a single
// conditional statement so concurrent cycles cannot race a check-then-insert.
// Returns true when a new row was inserted.
func (s *Store) Upsert(ctx context.Context, inc domain.Incident) (bool, error) {
	hash := inc.DedupeHash
	if hash == "" {
		hash = domain.NewDedupeHash(inc.Source, inc.Title, inc.AddressText)
	}

	// (xmax = 0) distinguishes a fresh insert from a conflict update.
	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO incident (
			source, source_url, title, description,
			address_text, dedupe_hash, lat, lon, seen
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
		ON CONFLICT (dedupe_hash)
		DO UPDATE SET
			description = EXCLUDED.description,
			updated_at  = now(),
			seen        = TRUE
		RETURNING (xmax = 0)`,
		inc.Source, inc.SourceURL, inc.Title, inc.Description,
		inc.AddressText, hash, inc.Lat, inc.Lon,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert incident %q: %w", inc.Title, err)
	}
	return inserted, nil
}

// MarkSeenBySource re-marks every incident of one source as seen. Used when
// a source reports unchanged content (HTTP 304 or an unchanged section
// hash): its incidents are still current and must survive the sweep.
func (s *Store) MarkSeenBySource(ctx context.Context, source string) (int64, error) {
	ct, err := s.pool.Exec(ctx, `UPDATE incident SET seen = TRUE WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("mark source %q seen: %w", source, err)
	}
	return ct.RowsAffected(), nil
}

// SweepUnseen deletes every incident not re-observed this cycle and returns
// the number removed.
func (s *Store) SweepUnseen(ctx context.Context) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM incident WHERE seen = FALSE`)
	if err != nil {
		return 0, fmt.Errorf("sweep unseen incidents: %w", err)
	}
	return ct.RowsAffected(), nil
}

// LoadCache returns the cached fetch validators for a source URL. A URL
// never fetched before yields a zero-valued entry, not an error.
func (s *Store) LoadCache(ctx context.Context, url string) (domain.CacheEntry, error) {
	entry := domain.CacheEntry{URL: url}
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(etag, ''), COALESCE(last_modified, ''), COALESCE(content_hash, '')
		FROM source_cache WHERE url = $1`,
		url,
	).Scan(&entry.ETag, &entry.LastModified, &entry.ContentHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CacheEntry{URL: url}, nil
	}
	if err != nil {
		return domain.CacheEntry{}, fmt.Errorf("load cache for %s: %w", url, err)
	}
	return entry, nil
}

// SaveCache stores fetch validators and the section hash for a source URL,
// creating the row on first fetch. Empty validators are stored as NULL.
func (s *Store) SaveCache(ctx context.Context, entry domain.CacheEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_cache (url, etag, last_modified, content_hash, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), now())
		ON CONFLICT (url) DO UPDATE SET
			etag          = EXCLUDED.etag,
			last_modified = EXCLUDED.last_modified,
			content_hash  = EXCLUDED.content_hash,
			updated_at    = now()`,
		entry.URL, entry.ETag, entry.LastModified, entry.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("save cache for %s: %w", entry.URL, err)
	}
	return nil
}

// ListSubscriptions reads a fresh snapshot of every subscriber's declared
// areas and addresses. The pipeline never writes to this table.
func (s *Store) ListSubscriptions(ctx context.Context) ([]domain.UserSubscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT email, COALESCE(areas, '{}'), COALESCE(addressofuser, '{}')
		FROM "user"`)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var users []domain.UserSubscription
	for rows.Next() {
		var u domain.UserSubscription
		if err := rows.Scan(&u.Email, &u.Areas, &u.Addresses); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
