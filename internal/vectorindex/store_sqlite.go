package vectorindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps artifacts as blobs in a single table, one row per name.
// Every Put inserts a fresh row, so the AUTOINCREMENT id doubles as the
// artifact version and is never handed out twice.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir failed: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS vector_indexes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            data BLOB NOT NULL,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );
    `)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create vector_indexes table failed: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM vector_indexes WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select index failed: %w", err)
	}
	return data, nil
}

func (s *SQLiteStore) Put(ctx context.Context, name string, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx failed: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
        INSERT OR REPLACE INTO vector_indexes (name, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
    `, name, data)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert index failed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit index failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM vector_indexes WHERE name = ?`, name).Scan(&n); err != nil {
		return false, fmt.Errorf("count index failed: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Version(ctx context.Context, name string) (string, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM vector_indexes WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select index version failed: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM vector_indexes WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete index failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
