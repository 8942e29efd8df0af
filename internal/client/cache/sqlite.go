package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
)

// SQLiteStore keeps entries in the http_cache table next to the session.
type SQLiteStore struct {
	settings
	db dbx.DBTX
}

func NewSQLiteStore(db dbx.DBTX, opts ...Option) *SQLiteStore {
	return &SQLiteStore{settings: newSettings(opts), db: db}
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO http_cache (key, value, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at
	`, key, value, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to put cache[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value    []byte
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, stored_at FROM http_cache WHERE key = ?`, key).Scan(&value, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache[%s]: %w", key, err)
	}
	if s.expired(time.Unix(0, storedAt)) {
		return nil, ErrMiss
	}
	return value, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM http_cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
