package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// repositoryStore implements driven.RepositoryStore.
type repositoryStore struct {
	store *Store
}

var _ driven.RepositoryStore = (*repositoryStore)(nil)

const repositoryColumns = `id, full_name, description, topics, language, url,
	stars, forks, pushed_at, readme_hash, checksum, updated_at`

// UpsertRepositories inserts or updates repositories by ID in one
// transaction.
func (s *repositoryStore) UpsertRepositories(ctx context.Context, repos []domain.Repository) error {
	if len(repos) == 0 {
		return nil
	}

	return s.store.withHeal(ctx, func() error {
		tx, err := s.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO repositories (`+repositoryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				full_name = excluded.full_name,
				description = excluded.description,
				topics = excluded.topics,
				language = excluded.language,
				url = excluded.url,
				stars = excluded.stars,
				forks = excluded.forks,
				pushed_at = excluded.pushed_at,
				readme_hash = excluded.readme_hash,
				checksum = excluded.checksum,
				updated_at = excluded.updated_at
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, repo := range repos {
			topicsJSON, err := marshalTopics(repo.Topics)
			if err != nil {
				return err
			}
			if repo.UpdatedAt.IsZero() {
				repo.UpdatedAt = now
			}

			if _, err := stmt.ExecContext(ctx, repo.ID, repo.FullName, repo.Description,
				topicsJSON, repo.Language, repo.URL, repo.Stars, repo.Forks,
				repo.PushedAt.UTC(), repo.ReadmeHash, repo.Checksum, repo.UpdatedAt); err != nil {
				return fmt.Errorf("saving repository %d: %w", repo.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// ListStates returns the checksum-relevant snapshot of every repository.
func (s *repositoryStore) ListStates(ctx context.Context) ([]domain.RepoState, error) {
	var states []domain.RepoState

	err := s.store.withHeal(ctx, func() error {
		rows, err := s.store.db.QueryContext(ctx, `
			SELECT id, full_name, description, topics, language, pushed_at, checksum
			FROM repositories ORDER BY id
		`)
		if err != nil {
			return fmt.Errorf("listing repository states: %w", err)
		}
		defer rows.Close()

		states = states[:0]
		for rows.Next() {
			var state domain.RepoState
			var topicsJSON string
			if err := rows.Scan(&state.ID, &state.FullName, &state.Description,
				&topicsJSON, &state.Language, &state.PushedAt, &state.Checksum); err != nil {
				return fmt.Errorf("scanning repository state: %w", err)
			}
			state.Topics = unmarshalTopics(topicsJSON)
			states = append(states, state)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return states, nil
}

// Get retrieves a repository by ID.
func (s *repositoryStore) Get(ctx context.Context, id int64) (*domain.Repository, error) {
	var repo *domain.Repository

	err := s.store.withHeal(ctx, func() error {
		row := s.store.db.QueryRowContext(ctx, `
			SELECT `+repositoryColumns+` FROM repositories WHERE id = ?
		`, id)

		scanned, err := scanRepository(row)
		if err != nil {
			return err
		}
		repo = scanned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// List returns all stored repositories ordered by name.
func (s *repositoryStore) List(ctx context.Context) ([]domain.Repository, error) {
	var repos []domain.Repository

	err := s.store.withHeal(ctx, func() error {
		rows, err := s.store.db.QueryContext(ctx, `
			SELECT `+repositoryColumns+` FROM repositories ORDER BY full_name
		`)
		if err != nil {
			return fmt.Errorf("listing repositories: %w", err)
		}
		defer rows.Close()

		repos = repos[:0]
		for rows.Next() {
			var repo domain.Repository
			var topicsJSON string
			if err := rows.Scan(&repo.ID, &repo.FullName, &repo.Description, &topicsJSON,
				&repo.Language, &repo.URL, &repo.Stars, &repo.Forks, &repo.PushedAt,
				&repo.ReadmeHash, &repo.Checksum, &repo.UpdatedAt); err != nil {
				return fmt.Errorf("scanning repository: %w", err)
			}
			repo.Topics = unmarshalTopics(topicsJSON)
			repos = append(repos, repo)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// DeleteByIDs removes repositories; chunks and embeddings follow by
// cascade.
func (s *repositoryStore) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	err := s.store.withHeal(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx,
			"DELETE FROM repositories WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return fmt.Errorf("deleting repositories: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.store.vectors.invalidate()
	return nil
}

// Count returns the number of stored repositories.
func (s *repositoryStore) Count(ctx context.Context) (int, error) {
	return s.store.countRows(ctx, "repositories")
}

// countRows counts the rows of one table.
func (s *Store) countRows(ctx context.Context, table string) (int, error) {
	var count int
	err := s.withHeal(ctx, func() error {
		row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("counting %s: %w", table, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// scanRepository scans a single repository row.
func scanRepository(row *sql.Row) (*domain.Repository, error) {
	var repo domain.Repository
	var topicsJSON string

	if err := row.Scan(&repo.ID, &repo.FullName, &repo.Description, &topicsJSON,
		&repo.Language, &repo.URL, &repo.Stars, &repo.Forks, &repo.PushedAt,
		&repo.ReadmeHash, &repo.Checksum, &repo.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning repository: %w", err)
	}

	repo.Topics = unmarshalTopics(topicsJSON)
	return &repo, nil
}
