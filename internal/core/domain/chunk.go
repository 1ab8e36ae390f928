package domain

import (
	"fmt"
	"time"
)

// ChunkSource tags where a chunk's text came from.
type ChunkSource string

const (
	// ChunkSourceReadme marks chunks derived from README text.
	ChunkSourceReadme ChunkSource = "readme"

	// ChunkSourceMetadata marks chunks built from repository metadata only.
	ChunkSourceMetadata ChunkSource = "metadata"
)

// Chunk is a searchable window of text belonging to exactly one repository.
// Chunks are deleted together with their parent repository.
type Chunk struct {
	// ID is the deterministic identifier "{repoID}:{position}".
	// Re-chunking unchanged text yields the same IDs, so upserts are
	// idempotent and never grow the chunk count.
	ID string

	// RepoID links to the owning Repository.
	RepoID int64

	// Position is the ordinal window index within the repository text.
	Position int

	// Content is the normalized text of this window.
	Content string

	// Source tags the chunk as README-derived or metadata-only.
	Source ChunkSource
}

// ChunkID builds the deterministic chunk identifier for a window index.
func ChunkID(repoID int64, position int) string {
	return fmt.Sprintf("%d:%d", repoID, position)
}

// Embedding is the vector representation of one chunk. Stored vectors are
// always unit-length so cosine similarity reduces to a dot product.
type Embedding struct {
	// ChunkID links to the owning Chunk (1:1).
	ChunkID string

	// Vector is the L2-normalized embedding.
	Vector []float32

	// Model identifies the embedding model that produced the vector.
	Model string

	// CreatedAt is when the vector was computed.
	CreatedAt time.Time
}
