package storage

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

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore keeps every object as one row of the objects table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	version, dirty, err := RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("Database migrations applied", "path", dbPath, "version", version, "dirty", dirty)

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return false, err
	}

	var found int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM objects WHERE key = ?`, cleaned).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check object %s: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Read(ctx context.Context, key string) ([]byte, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM objects WHERE key = ?`, cleaned).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *SQLiteStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	cleaned, err := cleanKey(key)
	if err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (key, data, content_type, size, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			content_type = excluded.content_type,
			size = excluded.size,
			updated_at = CURRENT_TIMESTAMP
	`, cleaned, data, contentType, len(data))
	if err != nil {
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}
	return nil
}

// ContentType returns the content type recorded for key.
func (s *SQLiteStore) ContentType(ctx context.Context, key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	var contentType string
	err = s.db.QueryRowContext(ctx, `SELECT content_type FROM objects WHERE key = ?`, cleaned).Scan(&contentType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content type of %s: %w", key, err)
	}
	return contentType, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
