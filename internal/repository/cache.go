package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS audit_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);`

// sqliteResultCache is a local idempotence cache: one row per pipeline key,
// written once and never updated. Identical keys must carry identical
// payloads, so a conflicting insert is a no-op rather than an overwrite.
type sqliteResultCache struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenResultCache opens (creating if needed) the SQLite cache at path.
func OpenResultCache(path string, logger *slog.Logger) (ResultCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}

	logger.Debug("cache.opened", "path", path)
	return &sqliteResultCache{db: db, logger: logger}, nil
}

func (c *sqliteResultCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM audit_cache WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	c.logger.Debug("cache.hit", "key", key)
	return payload, true, nil
}

func (c *sqliteResultCache) Put(ctx context.Context, key string, payload []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO audit_cache (cache_key, payload) VALUES (?, ?) ON CONFLICT(cache_key) DO NOTHING`,
		key, payload)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *sqliteResultCache) Close() error {
	return c.db.Close()
}
