// Package cache provides TTL key-value stores used to memoize provider
// responses.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);`

// SQLite is a TTL cache backed by a local SQLite file. Expired entries
// are dropped lazily on read. The path may be ":memory:".
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (c *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value   []byte
		expires int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if time.Now().Unix() >= expires {
		_, _ = c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return nil, false, nil
	}
	return value, true, nil
}

func (c *SQLite) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := time.Now().Add(ttl).Unix()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at`,
		key, value, expires,
	)
	return err
}

// Purge removes every expired entry. Callers may run it periodically;
// nothing depends on it since reads expire lazily.
func (c *SQLite) Purge(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().Unix())
	return err
}

func (c *SQLite) Close() error {
	return c.db.Close()
}
