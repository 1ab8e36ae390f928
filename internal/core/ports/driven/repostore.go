package driven

import (
	"context"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// RepositoryStore persists repository metadata.
type RepositoryStore interface {
	// UpsertRepositories inserts or updates repositories by ID.
	UpsertRepositories(ctx context.Context, repos []domain.Repository) error

	// ListStates returns the checksum-relevant snapshot of every stored
	// repository, for the sync planner.
	ListStates(ctx context.Context) ([]domain.RepoState, error)

	// Get retrieves one repository. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*domain.Repository, error)

	// List returns all stored repositories.
	List(ctx context.Context) ([]domain.Repository, error)

	// DeleteByIDs removes repositories and, by cascade, their chunks and
	// embeddings.
	DeleteByIDs(ctx context.Context, ids []int64) error

	// Count returns the number of stored repositories.
	Count(ctx context.Context) (int, error)
}

// ChunkStore persists text chunks.
type ChunkStore interface {
	// UpsertChunks inserts or updates chunks by their deterministic IDs.
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error

	// DeleteStale removes chunks of a repository at or beyond the given
	// position, so a shrinking document does not leave orphan windows.
	DeleteStale(ctx context.Context, repoID int64, keep int) error

	// ListUnembedded returns chunks that have no stored vector yet.
	ListUnembedded(ctx context.Context) ([]domain.Chunk, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// EmbeddingStore persists chunk vectors and answers similarity queries.
type EmbeddingStore interface {
	// UpsertEmbeddings writes vectors inside one transaction. Vectors are
	// L2-normalized before storage. Writes count toward the checkpoint
	// policy.
	UpsertEmbeddings(ctx context.Context, embeddings []domain.Embedding) error

	// FindSimilar returns the k chunks most similar to the query vector,
	// ranked by descending cosine similarity, hydrated with repository
	// fields. Ties break by ascending chunk ID.
	FindSimilar(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error)

	// Count returns the number of stored vectors.
	Count(ctx context.Context) (int, error)
}

// MetaStore is a small key-value table with overwrite semantics, used for
// sync bookkeeping and checkpoint parameters.
type MetaStore interface {
	// Set stores or replaces a value.
	Set(ctx context.Context, key, value string) error

	// Get retrieves a value. Returns domain.ErrNotFound if the key is
	// absent.
	Get(ctx context.Context, key string) (string, error)
}
