package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// metaStore implements driven.MetaStore.
type metaStore struct {
	store *Store
}

var _ driven.MetaStore = (*metaStore)(nil)

// Set stores or replaces a value.
func (s *metaStore) Set(ctx context.Context, key, value string) error {
	return s.store.withHeal(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx, `
			INSERT INTO meta (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, key, value, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("saving meta %s: %w", key, err)
		}
		return nil
	})
}

// Get retrieves a value. Returns domain.ErrNotFound if the key is absent.
func (s *metaStore) Get(ctx context.Context, key string) (string, error) {
	var value string

	err := s.store.withHeal(ctx, func() error {
		row := s.store.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key)
		if err := row.Scan(&value); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			return fmt.Errorf("reading meta %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}
