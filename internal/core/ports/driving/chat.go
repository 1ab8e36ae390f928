package driving

import (
	"context"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// ChatService conducts grounded conversations over the local index.
type ChatService interface {
	// NewSession creates a chat session.
	NewSession(ctx context.Context, title string) (*domain.ChatSession, error)

	// Ask retrieves context for the question, generates an answer and
	// persists both turns in the session.
	Ask(ctx context.Context, sessionID, question string) (string, []domain.SearchResult, error)

	// History returns the session's messages in order.
	History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)

	// Sessions lists all sessions, newest first.
	Sessions(ctx context.Context) ([]domain.ChatSession, error)
}
