package images

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record describes the last optimization of one source image.
type Record struct {
	Path          string // slash-separated, relative to the source root
	SourceHash    string // sha256 hex of the source bytes
	Size          int64
	OptimizedSize int64
	OptimizedAt   time.Time
}

// Cache persists Records across runs.
type Cache interface {
	Get(ctx context.Context, path string) (Record, bool, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, path string) error
	Close() error
}

// MemoryPath selects an in-process SQLite database.
const MemoryPath = ":memory:"

// SQLiteCache implements Cache using SQLite.
type SQLiteCache struct {
	db *sql.DB
	mu sync.RWMutex
}

// OpenSQLiteCache opens (and creates) the cache database at dbPath.
// Use MemoryPath for a cache that lives only as long as the process.
func OpenSQLiteCache(dbPath string) (*SQLiteCache, error) {
	if dbPath == "" {
		dbPath = MemoryPath
	}
	if dbPath != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Every pooled connection to :memory: would see its own empty database.
	db.SetMaxOpenConns(1)

	c := &SQLiteCache{db: db}
	if err := c.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return c, nil
}

func (c *SQLiteCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS image_cache (
		path TEXT PRIMARY KEY,
		source_hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		optimized_size INTEGER NOT NULL,
		optimized_at INTEGER NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Get returns the record for path, if any.
func (c *SQLiteCache) Get(ctx context.Context, path string) (Record, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var rec Record
	var at int64
	err := c.db.QueryRowContext(ctx,
		"SELECT path, source_hash, size, optimized_size, optimized_at FROM image_cache WHERE path = ?",
		path,
	).Scan(&rec.Path, &rec.SourceHash, &rec.Size, &rec.OptimizedSize, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("query image cache: %w", err)
	}
	rec.OptimizedAt = time.Unix(0, at)
	return rec, true, nil
}

// Put inserts or replaces the record for rec.Path.
func (c *SQLiteCache) Put(ctx context.Context, rec Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO image_cache (path, source_hash, size, optimized_size, optimized_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			source_hash = excluded.source_hash,
			size = excluded.size,
			optimized_size = excluded.optimized_size,
			optimized_at = excluded.optimized_at`,
		rec.Path, rec.SourceHash, rec.Size, rec.OptimizedSize, rec.OptimizedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert image cache: %w", err)
	}
	return nil
}

// Delete removes the record for path. A missing record is not an error.
func (c *SQLiteCache) Delete(ctx context.Context, path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.ExecContext(ctx, "DELETE FROM image_cache WHERE path = ?", path); err != nil {
		return fmt.Errorf("delete image cache entry: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *SQLiteCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db.Close()
}
