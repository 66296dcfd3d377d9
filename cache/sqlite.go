package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"permitkeeper/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// SQLite is the on-device implementation of Store, a single kv table in a
// sqlite file so cached sections survive restarts.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and if needed creates) the cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	// Writes are serialized per key by the engine; a single connection keeps
	// sqlite out of SQLITE_BUSY territory entirely.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to cache database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database.
func (c *SQLite) Close() error {
	return c.db.Close()
}

func (c *SQLite) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &models.TransientIOError{Op: "cache get", Err: err}
	}
	return value, true, nil
}

func (c *SQLite) Set(key string, value []byte) error {
	_, err := c.db.Exec(
		"INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		key, value,
	)
	if err != nil {
		return &models.TransientIOError{Op: "cache set", Err: err}
	}
	return nil
}

func (c *SQLite) Delete(key string) error {
	if _, err := c.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return &models.TransientIOError{Op: "cache delete", Err: err}
	}
	return nil
}

func (c *SQLite) Keys() ([]string, error) {
	rows, err := c.db.Query("SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, &models.TransientIOError{Op: "cache keys", Err: err}
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, &models.TransientIOError{Op: "cache keys", Err: err}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.TransientIOError{Op: "cache keys", Err: err}
	}
	return keys, nil
}

func (c *SQLite) Clear() error {
	if _, err := c.db.Exec("DELETE FROM kv"); err != nil {
		return &models.TransientIOError{Op: "cache clear", Err: err}
	}
	return nil
}
