// Package domain contains the core business entities for starsift:
// repositories, chunks, embeddings, chat sessions and search results.
// It has no dependencies on adapters or infrastructure.
package domain
