package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// embeddingStore implements driven.EmbeddingStore.
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// UpsertEmbeddings writes vectors inside one transaction. Vectors are
// L2-normalized before storage so similarity scoring is a plain dot
// product. Committed writes count toward the checkpoint policy.
func (s *embeddingStore) UpsertEmbeddings(ctx context.Context, embeddings []domain.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	err := s.store.withHeal(ctx, func() error {
		tx, err := s.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO embeddings (chunk_id, vector, model, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				vector = excluded.vector,
				model = excluded.model,
				created_at = excluded.created_at
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, emb := range embeddings {
			vector := domain.NormalizeVector(emb.Vector)
			createdAt := emb.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}

			if _, err := stmt.ExecContext(ctx, emb.ChunkID,
				float32SliceToBytes(vector), emb.Model, createdAt); err != nil {
				return fmt.Errorf("saving embedding %s: %w", emb.ChunkID, err)
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
	s.store.checkpoint.noteWrites(ctx, len(embeddings))
	return nil
}

// FindSimilar returns the k chunks most similar to the query vector,
// hydrated with repository fields.
func (s *embeddingStore) FindSimilar(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	return s.store.findSimilar(ctx, query, k)
}

// Count returns the number of stored vectors.
func (s *embeddingStore) Count(ctx context.Context) (int, error) {
	return s.store.countRows(ctx, "embeddings")
}
