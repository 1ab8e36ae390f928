package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// vectorCache keeps all stored vectors in memory for the brute-force
// scan. The cache is keyed by row count: a count change means embeddings
// were written or deleted and forces a reload. Writers also invalidate
// explicitly, so the count key only has to catch external changes to the
// database file.
type vectorCache struct {
	mu       sync.Mutex
	loaded   bool
	rowCount int
	ids      []string
	vectors  [][]float32
}

func (c *vectorCache) invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

// findSimilar scores the query against every stored vector and returns
// the top k, ranked by descending cosine similarity. Ties break by
// ascending chunk ID so results are deterministic.
func (s *Store) findSimilar(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return []domain.SearchResult{}, nil
	}

	ids, vectors, err := s.loadVectors(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.SearchResult{}, nil
	}
	if len(query) != len(vectors[0]) {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), len(vectors[0]))
	}

	unit := domain.NormalizeVector(query)

	type scored struct {
		idx   int
		score float64
	}
	hits := make([]scored, len(ids))
	for i, vec := range vectors {
		hits[i] = scored{idx: i, score: domain.DotProduct(unit, vec)}
	}

	// Vectors load in ascending chunk-ID order, so a stable sort keeps
	// the tie-break for free.
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})

	if k > len(hits) {
		k = len(hits)
	}
	top := make([]string, k)
	scores := make(map[string]float64, k)
	for i := 0; i < k; i++ {
		id := ids[hits[i].idx]
		top[i] = id
		scores[id] = hits[i].score
	}

	results, err := s.hydrateResults(ctx, top, scores)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// loadVectors returns all stored vectors, reloading from the database
// when the cache is stale. The mutex only guards the cached fields, never
// a database call: a heal triggered mid-load invalidates the cache and
// must not block behind the loader. Cached slices are replaced wholesale,
// never mutated, so returning them outside the lock is safe.
func (s *Store) loadVectors(ctx context.Context) ([]string, [][]float32, error) {
	count, err := s.countRows(ctx, "embeddings")
	if err != nil {
		return nil, nil, err
	}

	s.vectors.mu.Lock()
	if s.vectors.loaded && s.vectors.rowCount == count {
		ids, vectors := s.vectors.ids, s.vectors.vectors
		s.vectors.mu.Unlock()
		return ids, vectors, nil
	}
	s.vectors.mu.Unlock()

	var ids []string
	var vectors [][]float32

	err = s.withHeal(ctx, func() error {
		ids, vectors = nil, nil
		rows, err := s.db.QueryContext(ctx,
			"SELECT chunk_id, vector FROM embeddings ORDER BY chunk_id")
		if err != nil {
			return fmt.Errorf("loading vectors: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			var blob []byte
			if err := rows.Scan(&id, &blob); err != nil {
				return fmt.Errorf("scanning vector: %w", err)
			}
			ids = append(ids, id)
			vectors = append(vectors, bytesToFloat32Slice(blob))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, nil, err
	}

	s.vectors.mu.Lock()
	s.vectors.loaded = true
	s.vectors.rowCount = len(ids)
	s.vectors.ids = ids
	s.vectors.vectors = vectors
	s.vectors.mu.Unlock()
	return ids, vectors, nil
}

// hydrateResults joins the ranked chunk IDs with chunk text and
// repository display fields, preserving rank order.
func (s *Store) hydrateResults(ctx context.Context, ranked []string, scores map[string]float64) ([]domain.SearchResult, error) {
	if len(ranked) == 0 {
		return []domain.SearchResult{}, nil
	}

	placeholders := strings.Repeat("?,", len(ranked))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ranked))
	for i, id := range ranked {
		args[i] = id
	}

	byID := make(map[string]domain.SearchResult, len(ranked))
	err := s.withHeal(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT c.id, c.repo_id, c.content, r.full_name, r.url
			FROM chunks c
			JOIN repositories r ON r.id = c.repo_id
			WHERE c.id IN (`+placeholders+`)
		`, args...)
		if err != nil {
			return fmt.Errorf("hydrating results: %w", err)
		}
		defer rows.Close()

		clear(byID)
		for rows.Next() {
			var result domain.SearchResult
			if err := rows.Scan(&result.ChunkID, &result.RepoID, &result.Content,
				&result.RepoFullName, &result.RepoURL); err != nil {
				return fmt.Errorf("scanning result: %w", err)
			}
			result.Score = scores[result.ChunkID]
			byID[result.ChunkID] = result
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	// A vector whose chunk vanished mid-query is skipped, not an error.
	results := make([]domain.SearchResult, 0, len(ranked))
	for _, id := range ranked {
		if result, ok := byID[id]; ok {
			results = append(results, result)
		}
	}
	return results, nil
}
