package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driving"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// DefaultSearchLimit is used when the caller does not specify k.
const DefaultSearchLimit = 10

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService embeds query strings and ranks chunks by similarity.
type SearchService struct {
	embedder driven.Embedder
	vectors  driven.EmbeddingStore
}

// NewSearchService creates a new search service.
func NewSearchService(embedder driven.Embedder, vectors driven.EmbeddingStore) *SearchService {
	return &SearchService{embedder: embedder, vectors: vectors}
}

// Search embeds the query through the orchestrator's single-item path and
// asks the store for the top-k similar chunks.
func (s *SearchService) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if k <= 0 {
		k = DefaultSearchLimit
	}

	logger.Section("Search")
	logger.Debug("Query: %q, k=%d", query, k)

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.vectors.FindSimilar(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}

	logger.Debug("Results: %d", len(results))
	return results, nil
}
