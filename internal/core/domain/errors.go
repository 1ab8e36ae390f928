package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRole indicates a chat message role outside the
	// recognized set.
	ErrInvalidRole = errors.New("invalid chat role")

	// ErrDimensionMismatch indicates a vector whose length does not
	// match the configured embedding dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrQueueOverflow indicates an embedding request larger than the
	// orchestrator's queue bound. The whole call is rejected before any
	// work starts.
	ErrQueueOverflow = errors.New("embedding queue overflow")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the answer-generation service is not
	// configured. Ask/chat degrade to plain search.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrAuthRequired indicates the remote source requires a token but
	// none is configured.
	ErrAuthRequired = errors.New("authentication required")

	// ErrRateLimited indicates the remote API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrSchemaIntegrity indicates the persistence layer detected a
	// schema shape it could not repair.
	ErrSchemaIntegrity = errors.New("schema integrity violation")
)
