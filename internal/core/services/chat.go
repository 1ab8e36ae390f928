package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driving"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// ContextSnippets is how many ranked snippets are handed to the answer
// generator.
const ContextSnippets = 8

// maxTitleLength bounds session titles derived from the first question.
const maxTitleLength = 60

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// ChatService answers questions grounded in similarity-ranked chunks and
// persists the conversation.
type ChatService struct {
	search driving.SearchService
	chats  driven.ChatStore
	llm    driven.AnswerService
}

// NewChatService creates a new chat service. The llm is optional - when
// nil, Ask returns the retrieved snippets with ErrLLMUnavailable.
func NewChatService(search driving.SearchService, chats driven.ChatStore, llm driven.AnswerService) *ChatService {
	return &ChatService{search: search, chats: chats, llm: llm}
}

// NewSession creates and persists a chat session.
func (c *ChatService) NewSession(ctx context.Context, title string) (*domain.ChatSession, error) {
	session := domain.ChatSession{
		ID:        uuid.New().String(),
		Title:     truncateTitle(title),
		CreatedAt: time.Now().UTC(),
	}
	if err := c.chats.UpsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// Ask retrieves the top snippets for the question, asks the answer
// generator, and records both turns in the session.
func (c *ChatService) Ask(ctx context.Context, sessionID, question string) (string, []domain.SearchResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, domain.ErrInvalidInput
	}

	snippets, err := c.search.Search(ctx, question, ContextSnippets)
	if err != nil {
		return "", nil, fmt.Errorf("retrieve context: %w", err)
	}

	if c.llm == nil {
		return "", snippets, domain.ErrLLMUnavailable
	}

	history, err := c.chats.ListMessages(ctx, sessionID)
	if err != nil {
		return "", snippets, fmt.Errorf("load history: %w", err)
	}

	if _, err := c.chats.AddMessage(ctx, domain.ChatMessage{
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   question,
	}); err != nil {
		return "", snippets, fmt.Errorf("record question: %w", err)
	}

	answer, err := c.llm.Answer(ctx, question, snippets, history)
	if err != nil {
		return "", snippets, fmt.Errorf("generate answer: %w", err)
	}

	if _, err := c.chats.AddMessage(ctx, domain.ChatMessage{
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Content:   answer,
	}); err != nil {
		// The answer was produced; losing the record is worth a warning,
		// not a failure.
		logger.Warn("Record answer: %v", err)
	}

	return answer, snippets, nil
}

// History returns the session's messages in (created_at, seq) order.
func (c *ChatService) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	return c.chats.ListMessages(ctx, sessionID)
}

// Sessions lists all sessions, newest first.
func (c *ChatService) Sessions(ctx context.Context) ([]domain.ChatSession, error) {
	return c.chats.ListSessions(ctx)
}

func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if len(title) <= maxTitleLength {
		return title
	}
	cut := maxTitleLength
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return title[:cut]
}
