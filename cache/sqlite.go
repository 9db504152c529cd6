package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"
)

type sqliteCache struct {
	db  *sql.DB
	cfg config
}

var _ Backend = (*sqliteCache)(nil)

// NewSQLite returns a new Backend persisted in SQLite.
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLite(ctx context.Context, dbPath string, opts ...Option) (Backend, error) {
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection keeps ":memory:" databases shared across calls.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		inserted_at INTEGER NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteCache{db: db, cfg: applyOptions(opts)}, nil
}

func (c *sqliteCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *sqliteCache) Load(ctx context.Context, key string) (Entry, bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var data []byte
	var insertedAt int64
	err := c.db.QueryRowContext(qctx,
		`SELECT value, inserted_at FROM cache WHERE key = ?`, key,
	).Scan(&data, &insertedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Value: data, InsertedAt: time.Unix(0, insertedAt)}, true, nil
}

func (c *sqliteCache) Store(ctx context.Context, key string, entry Entry) error {
	data, err := msgpack.Marshal(entry.Value)
	if err != nil {
		return err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	_, err = c.db.ExecContext(qctx,
		`INSERT INTO cache (key, value, inserted_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, inserted_at = excluded.inserted_at`,
		key, data, entry.InsertedAt.UnixNano(),
	)
	return err
}

func (c *sqliteCache) Delete(ctx context.Context, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	result, err := c.db.ExecContext(qctx, `DELETE FROM cache WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (c *sqliteCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	rows, err := c.db.QueryContext(qctx,
		`SELECT key FROM cache WHERE substr(key, 1, length(?)) = ?`, prefix, prefix,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (c *sqliteCache) Clear(ctx context.Context) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	_, err := c.db.ExecContext(qctx, `DELETE FROM cache`)
	return err
}

func (c *sqliteCache) Close() error {
	return c.db.Close()
}
