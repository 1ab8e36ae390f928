package driven

import (
	"context"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// ChatStore persists chat sessions and their messages.
type ChatStore interface {
	// UpsertSession creates or updates a session.
	UpsertSession(ctx context.Context, session domain.ChatSession) error

	// AddMessage appends a message to a session, assigning the next
	// per-session sequence number. If the session does not exist yet it
	// is created on the fly so referential integrity holds even when an
	// earlier UpsertSession was skipped.
	AddMessage(ctx context.Context, msg domain.ChatMessage) (*domain.ChatMessage, error)

	// ListMessages returns a session's messages ordered by
	// (created_at, seq) ascending.
	ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.ChatSession, error)
}
