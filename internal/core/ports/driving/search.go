package driving

import (
	"context"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// SearchService answers similarity queries against the local index.
type SearchService interface {
	// Search embeds the query and returns the top-k similar chunks.
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
}
