package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteStore keeps one row per label in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS resolutions (
		label TEXT PRIMARY KEY,
		result BLOB
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create resolutions table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache_meta table: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Driver() Driver { return DriverSQLite }

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Load reads every row. An empty database is reported as ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context) (*Cache, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, result FROM resolutions`)
	if err != nil {
		return nil, fmt.Errorf("select resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	c := New()
	for rows.Next() {
		var label string
		var payload []byte
		if err := rows.Scan(&label, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		c.Set(label, decodeEntry(payload))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resolutions: %w", err)
	}

	var stamp string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM cache_meta WHERE key = ?`, FetchedAtKey).Scan(&stamp)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if c.Len() == 0 {
			return nil, ErrNotFound
		}
	case err != nil:
		return nil, fmt.Errorf("select fetched_at: %w", err)
	default:
		if t, perr := time.Parse(time.RFC3339Nano, stamp); perr == nil {
			c.Stamp(t)
		}
	}
	return c, nil
}

// Save replaces all rows in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, c *Cache) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM resolutions`); err != nil {
		return fmt.Errorf("clear resolutions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO resolutions(label, result) VALUES(?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, label := range c.Labels() {
		res, _ := c.Lookup(label)
		var payload any
		if res != nil {
			data, err := json.Marshal(res)
			if err != nil {
				return fmt.Errorf("encode %q: %w", label, err)
			}
			payload = data
		}
		if _, err := stmt.ExecContext(ctx, label, payload); err != nil {
			return fmt.Errorf("insert %q: %w", label, err)
		}
	}

	if !c.FetchedAt().IsZero() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cache_meta(key, value) VALUES(?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
			FetchedAtKey, c.FetchedAt().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("upsert fetched_at: %w", err)
		}
	}
	return tx.Commit()
}
