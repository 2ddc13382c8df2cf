// Package snippetcache persists fetched snippets in SQLite so a document is
// only downloaded once per machine.
package snippetcache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one cached snippet.
type Entry struct {
	Key       string
	Size      int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cache is a key-value store of snippet sources.
type Cache struct {
	db *sql.DB
}

// DefaultPath is $XDG_CACHE_HOME/gorupad/snippets.db.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "snippets.db"
	}
	return filepath.Join(dir, "gorupad", "snippets.db")
}

// Open opens the database at path, creating it and its directory if needed.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Cache{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, entry := range entries {
		version := entry.Name()

		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if count > 0 {
			continue
		}

		migrationSQL, err := migrations.ReadFile("migrations/" + version)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", version, err)
		}
		if _, err := db.Exec(string(migrationSQL)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", version, err)
		}
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
	}
	return nil
}

// Get returns the cached content for key. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (content string, ok bool, err error) {
	err = c.db.QueryRowContext(ctx, "SELECT content FROM snippets WHERE key = ?", key).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read snippet %q: %w", key, err)
	}
	return content, true, nil
}

// Put stores content under key, replacing any previous value.
func (c *Cache) Put(ctx context.Context, key, content string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO snippets (key, content) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, updated_at = CURRENT_TIMESTAMP
	`, key, content)
	if err != nil {
		return fmt.Errorf("write snippet %q: %w", key, err)
	}
	return nil
}

// List returns all entries, most recently updated first.
func (c *Cache) List(ctx context.Context) ([]Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT key, length(content), created_at, updated_at FROM snippets ORDER BY updated_at DESC, key")
	if err != nil {
		return nil, fmt.Errorf("list snippets: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Size, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan snippet: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM snippets WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete snippet %q: %w", key, err)
	}
	return nil
}

// Clear removes every entry and reports how many there were.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM snippets")
	if err != nil {
		return 0, fmt.Errorf("clear snippets: %w", err)
	}
	return res.RowsAffected()
}

func (c *Cache) Close() error {
	return c.db.Close()
}
