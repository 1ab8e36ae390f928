package driven

import (
	"context"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// AnswerService generates answers grounded in ranked search snippets.
// This is an optional service - when nil, ask/chat degrade to plain search.
type AnswerService interface {
	// Answer produces a reply to question using up to 8 ranked snippets
	// as context plus the prior conversation.
	Answer(
		ctx context.Context,
		question string,
		snippets []domain.SearchResult,
		history []domain.ChatMessage,
	) (string, error)

	// ModelName returns the name of the generation model in use.
	ModelName() string

	// Close releases resources.
	Close() error
}
