package artcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"artgrab/internal/media"
	"artgrab/internal/providers"
	"artgrab/internal/services"
)

// completionArtType is the pseudo art type that records "a full multi-type
// fetch for this item already ran"; its presence short-circuits repeat
// provider calls even when individual type lists came back empty.
const completionArtType = "_complete"

// Key addresses one cached provider result list.
type Key struct {
	MediaType  media.Type
	ProviderID string
	Source     providers.Source
	ArtType    media.ArtType
}

// Stats summarizes cache contents for the CLI.
type Stats struct {
	Records int
	Expired int
	Markers int
}

// Cache is a TTL-keyed store of normalized provider responses backed by its
// own SQLite database. It owns all access to that database; other components
// only see Get/Put/marker operations.
type Cache struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS art_cache (
    media_type  TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    source      TEXT NOT NULL,
    art_type    TEXT NOT NULL,
    payload     TEXT NOT NULL,
    expires_at  TEXT NOT NULL,
    PRIMARY KEY (media_type, provider_id, source, art_type)
);
CREATE INDEX IF NOT EXISTS idx_art_cache_expiry ON art_cache (expires_at);
`

// Open initializes or connects to the cache database.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Cache{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns the cached candidate list for a key. The second result is
// false on a miss or an expired record.
func (c *Cache) Get(ctx context.Context, key Key) ([]providers.Candidate, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM art_cache
         WHERE media_type = ? AND provider_id = ? AND source = ? AND art_type = ?`,
		key.MediaType, key.ProviderID, key.Source, key.ArtType)

	var payload, expiresRaw string
	if err := row.Scan(&payload, &expiresRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, services.Wrap(services.ErrStorage, "artcache", "get", string(key.ArtType), err)
	}
	if c.expired(expiresRaw) {
		return nil, false, nil
	}

	var candidates []providers.Candidate
	if err := json.Unmarshal([]byte(payload), &candidates); err != nil {
		return nil, false, services.Wrap(services.ErrStorage, "artcache", "get", "decode payload", err)
	}
	return candidates, true, nil
}

// Put stores a candidate list under a key with the given TTL, replacing any
// previous record.
func (c *Cache) Put(ctx context.Context, key Key, candidates []providers.Candidate, ttl time.Duration) error {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return services.Wrap(services.ErrStorage, "artcache", "put", "encode payload", err)
	}
	expires := c.now().UTC().Add(ttl).Format(time.RFC3339Nano)
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO art_cache (media_type, provider_id, source, art_type, payload, expires_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (media_type, provider_id, source, art_type)
         DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key.MediaType, key.ProviderID, key.Source, key.ArtType, string(payload), expires)
	if err != nil {
		return services.Wrap(services.ErrStorage, "artcache", "put", string(key.ArtType), err)
	}
	return nil
}

// MarkComplete records that a full multi-type fetch ran for the item against
// one source.
func (c *Cache) MarkComplete(ctx context.Context, mediaType media.Type, providerID string, source providers.Source, ttl time.Duration) error {
	return c.Put(ctx, Key{
		MediaType:  mediaType,
		ProviderID: providerID,
		Source:     source,
		ArtType:    completionArtType,
	}, nil, ttl)
}

// IsComplete reports whether an unexpired completion marker exists for the
// item against one source.
func (c *Cache) IsComplete(ctx context.Context, mediaType media.Type, providerID string, source providers.Source) (bool, error) {
	_, ok, err := c.Get(ctx, Key{
		MediaType:  mediaType,
		ProviderID: providerID,
		Source:     source,
		ArtType:    completionArtType,
	})
	return ok, err
}

// PruneExpired removes records whose TTL has lapsed.
func (c *Cache) PruneExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM art_cache WHERE expires_at < ?`,
		c.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "artcache", "prune", "", err)
	}
	return res.RowsAffected()
}

// Clear removes every record.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM art_cache`)
	if err != nil {
		return 0, services.Wrap(services.ErrStorage, "artcache", "clear", "", err)
	}
	return res.RowsAffected()
}

// ReadStats aggregates record counts for diagnostic output.
func (c *Cache) ReadStats(ctx context.Context) (Stats, error) {
	stats := Stats{}
	now := c.now().UTC().Format(time.RFC3339Nano)
	row := c.db.QueryRowContext(ctx, `SELECT COUNT(1),
        COALESCE(SUM(CASE WHEN expires_at < ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN art_type = ? THEN 1 ELSE 0 END), 0)
        FROM art_cache`, now, completionArtType)
	if err := row.Scan(&stats.Records, &stats.Expired, &stats.Markers); err != nil {
		return Stats{}, services.Wrap(services.ErrStorage, "artcache", "stats", "", err)
	}
	return stats, nil
}

func (c *Cache) expired(raw string) bool {
	expires, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return true
	}
	return expires.Before(c.now().UTC())
}
