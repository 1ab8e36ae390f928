package sqlite

import (
	"context"
	"fmt"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// chunkStore implements driven.ChunkStore.
type chunkStore struct {
	store *Store
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// UpsertChunks inserts or updates chunks by their deterministic IDs in
// one transaction. Re-chunking unchanged text rewrites the same rows.
// A chunk whose content actually changed loses its stored vector, so the
// next embedding pass recomputes it.
func (s *chunkStore) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	err := s.store.withHeal(ctx, func() error {
		tx, err := s.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		evictStmt, err := tx.PrepareContext(ctx, `
			DELETE FROM embeddings WHERE chunk_id IN (
				SELECT id FROM chunks WHERE id = ? AND content <> ?
			)
		`)
		if err != nil {
			return fmt.Errorf("preparing eviction statement: %w", err)
		}
		defer evictStmt.Close()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, repo_id, position, content, source)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				repo_id = excluded.repo_id,
				position = excluded.position,
				content = excluded.content,
				source = excluded.source
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			if _, err := evictStmt.ExecContext(ctx, chunk.ID, chunk.Content); err != nil {
				return fmt.Errorf("evicting stale vector %s: %w", chunk.ID, err)
			}
			if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.RepoID,
				chunk.Position, chunk.Content, string(chunk.Source)); err != nil {
				return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.store.vectors.invalidate()
	return nil
}

// DeleteStale removes a repository's chunks at or beyond keep, so a
// document that shrank does not leave orphan windows behind. Their
// embeddings follow by cascade.
func (s *chunkStore) DeleteStale(ctx context.Context, repoID int64, keep int) error {
	err := s.store.withHeal(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx,
			"DELETE FROM chunks WHERE repo_id = ? AND position >= ?", repoID, keep)
		if err != nil {
			return fmt.Errorf("deleting stale chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.store.vectors.invalidate()
	return nil
}

// ListUnembedded returns chunks that have no stored vector yet, in
// deterministic order.
func (s *chunkStore) ListUnembedded(ctx context.Context) ([]domain.Chunk, error) {
	var chunks []domain.Chunk

	err := s.store.withHeal(ctx, func() error {
		rows, err := s.store.db.QueryContext(ctx, `
			SELECT c.id, c.repo_id, c.position, c.content, c.source
			FROM chunks c
			LEFT JOIN embeddings e ON e.chunk_id = c.id
			WHERE e.chunk_id IS NULL
			ORDER BY c.repo_id, c.position
		`)
		if err != nil {
			return fmt.Errorf("listing unembedded chunks: %w", err)
		}
		defer rows.Close()

		chunks = chunks[:0]
		for rows.Next() {
			var chunk domain.Chunk
			var source string
			if err := rows.Scan(&chunk.ID, &chunk.RepoID, &chunk.Position,
				&chunk.Content, &source); err != nil {
				return fmt.Errorf("scanning chunk: %w", err)
			}
			chunk.Source = domain.ChunkSource(source)
			chunks = append(chunks, chunk)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (s *chunkStore) Count(ctx context.Context) (int, error) {
	return s.store.countRows(ctx, "chunks")
}
