package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// chatStore implements driven.ChatStore.
type chatStore struct {
	store *Store
}

var _ driven.ChatStore = (*chatStore)(nil)

// UpsertSession creates or updates a session.
func (s *chatStore) UpsertSession(ctx context.Context, session domain.ChatSession) error {
	if session.ID == "" {
		return fmt.Errorf("%w: session ID is empty", domain.ErrInvalidInput)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	return s.store.withHeal(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx, `
			INSERT INTO chat_sessions (id, title, created_at)
			VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title
		`, session.ID, session.Title, session.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		return nil
	})
}

// AddMessage appends a message to a session, assigning the next
// per-session sequence number. A missing session is created on the fly so
// referential integrity holds even when UpsertSession was skipped.
func (s *chatStore) AddMessage(ctx context.Context, msg domain.ChatMessage) (*domain.ChatMessage, error) {
	if msg.SessionID == "" {
		return nil, fmt.Errorf("%w: session ID is empty", domain.ErrInvalidInput)
	}
	if !domain.ValidRole(msg.Role) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, msg.Role)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	err := s.store.withHeal(ctx, func() error {
		tx, err := s.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_sessions (id, title, created_at)
			VALUES (?, '', ?)
			ON CONFLICT(id) DO NOTHING
		`, msg.SessionID, msg.CreatedAt); err != nil {
			return fmt.Errorf("ensuring session: %w", err)
		}

		// Sequence assignment and insert share the transaction, so two
		// writers cannot claim the same number.
		row := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) + 1 FROM chat_messages WHERE session_id = ?",
			msg.SessionID)
		if err := row.Scan(&msg.Seq); err != nil {
			return fmt.Errorf("assigning sequence: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO chat_messages (session_id, role, content, seq, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, msg.SessionID, string(msg.Role), msg.Content, msg.Seq, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("saving message: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading message ID: %w", err)
		}
		msg.ID = id

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessages returns a session's messages ordered by (created_at, seq).
func (s *chatStore) ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage

	err := s.store.withHeal(ctx, func() error {
		rows, err := s.store.db.QueryContext(ctx, `
			SELECT id, session_id, role, content, seq, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY created_at, seq
		`, sessionID)
		if err != nil {
			return fmt.Errorf("listing messages: %w", err)
		}
		defer rows.Close()

		messages = messages[:0]
		for rows.Next() {
			var msg domain.ChatMessage
			var role string
			if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content,
				&msg.Seq, &msg.CreatedAt); err != nil {
				return fmt.Errorf("scanning message: %w", err)
			}
			msg.Role = domain.ChatRole(role)
			messages = append(messages, msg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListSessions returns all sessions, newest first.
func (s *chatStore) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	var sessions []domain.ChatSession

	err := s.store.withHeal(ctx, func() error {
		rows, err := s.store.db.QueryContext(ctx, `
			SELECT id, title, created_at
			FROM chat_sessions
			ORDER BY created_at DESC, id
		`)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		defer rows.Close()

		sessions = sessions[:0]
		for rows.Next() {
			var session domain.ChatSession
			if err := rows.Scan(&session.ID, &session.Title, &session.CreatedAt); err != nil {
				return fmt.Errorf("scanning session: %w", err)
			}
			sessions = append(sessions, session)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
