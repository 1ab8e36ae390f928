package domain

// SearchResult is one ranked hit from a similarity query, hydrated with
// the owning repository's display fields.
type SearchResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// RepoID is the owning repository.
	RepoID int64

	// RepoFullName is the repository display name.
	RepoFullName string

	// RepoURL is the repository web URL.
	RepoURL string

	// Content is the chunk text.
	Content string

	// Score is the cosine similarity against the query (0-1 for
	// non-negative embeddings, may be negative otherwise).
	Score float64
}

// SyncSummary reports the outcome of one sync cycle.
type SyncSummary struct {
	// Remote is the number of repositories in the remote snapshot.
	Remote int

	// Removed is how many local repositories were deleted.
	Removed int

	// Updated is how many repositories were re-fetched and re-chunked.
	Updated int

	// Unchanged is how many repositories were skipped by the planner.
	Unchanged int

	// ChunksEmbedded is how many chunk vectors were written.
	ChunksEmbedded int

	// Errors counts per-record failures that did not abort the run.
	Errors int
}
