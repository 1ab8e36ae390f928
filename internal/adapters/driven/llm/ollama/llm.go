// Package ollama provides an answer-generation adapter using the Ollama
// chat API. Answers are grounded in the ranked snippets supplied by the
// search service.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// Ensure AnswerService implements the interface.
var _ driven.AnswerService = (*AnswerService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second

	// maxHistoryMessages bounds how much prior conversation is replayed
	// to the model.
	maxHistoryMessages = 20
)

// systemPrompt frames the model as an assistant over the user's starred
// repositories. Snippets are appended per request.
const systemPrompt = `You are starsift, an assistant that answers questions about the user's starred repositories.
Ground every answer in the provided repository snippets. When a snippet is relevant, name its repository.
If the snippets do not contain the answer, say so instead of guessing.`

// Config holds configuration for the Ollama answer service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the chat model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// AnswerService generates grounded answers using Ollama.
type AnswerService struct {
	client  *http.Client
	baseURL string
	model   string
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatMessage is the Ollama chat message format.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse is the Ollama /api/chat response format.
type chatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

// NewAnswerService creates a new Ollama answer service.
func NewAnswerService(cfg Config) *AnswerService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &AnswerService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// Answer produces a reply to question, grounded in the ranked snippets
// and the prior conversation.
func (s *AnswerService) Answer(
	ctx context.Context,
	question string,
	snippets []domain.SearchResult,
	history []domain.ChatMessage,
) (string, error) {
	messages := []chatMessage{{Role: "system", Content: buildSystemMessage(snippets)}}

	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	for _, msg := range history {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: question})

	reqBody := chatRequest{
		Model:    s.model,
		Messages: messages,
		Stream:   false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/chat",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return strings.TrimSpace(chatResp.Message.Content), nil
}

// buildSystemMessage appends the ranked snippets to the system prompt.
func buildSystemMessage(snippets []domain.SearchResult) string {
	if len(snippets) == 0 {
		return systemPrompt + "\n\nNo repository snippets matched this question."
	}

	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nRepository snippets, most relevant first:\n")
	for i, snippet := range snippets {
		fmt.Fprintf(&b, "\n[%d] %s (%s)\n%s\n", i+1, snippet.RepoFullName, snippet.RepoURL, snippet.Content)
	}
	return b.String()
}

// ModelName returns the name of the generation model in use.
func (s *AnswerService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable without running inference.
func (s *AnswerService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *AnswerService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
