package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is the production Store. Optimistic concurrency maps onto a
// conditional UPDATE: the write carries the version the caller read and only
// lands when the stored row still has it.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) a SQLite-backed store at path.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			kind TEXT NOT NULL,
			id TEXT NOT NULL,
			doc TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (kind, id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, kind, id string) (json.RawMessage, uint64, error) {
	var doc []byte
	var version uint64
	err := s.db.QueryRowContext(ctx,
		"SELECT doc, version FROM documents WHERE kind = ? AND id = ?",
		kind, id).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return doc, version, nil
}

func (s *SQLite) Put(ctx context.Context, kind, id string, doc json.RawMessage, expected uint64) (uint64, error) {
	now := time.Now().UTC()

	if expected == 0 {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO documents (kind, id, doc, version, updated_at) VALUES (?, ?, ?, 1, ?)",
			kind, id, []byte(doc), now)
		if err != nil {
			// A unique-constraint failure means the document exists.
			if _, _, getErr := s.Get(ctx, kind, id); getErr == nil {
				return 0, ErrVersionConflict
			}
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return 1, nil
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET doc = ?, version = version + 1, updated_at = ? WHERE kind = ? AND id = ? AND version = ?",
		[]byte(doc), now, kind, id, expected)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		if _, _, getErr := s.Get(ctx, kind, id); getErr != nil {
			return 0, ErrNotFound
		}
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}

func (s *SQLite) Delete(ctx context.Context, kind, id string, expected uint64) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE kind = ? AND id = ? AND version = ?",
		kind, id, expected)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if n == 0 {
		if _, _, getErr := s.Get(ctx, kind, id); getErr != nil {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error { return s.db.Close() }
