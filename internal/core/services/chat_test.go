package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

func chatFixture(results []domain.SearchResult, llm *fakeAnswerService) (*ChatService, *memStore) {
	store := newMemStore()
	search := &fakeSearcher{results: results}
	if llm == nil {
		return NewChatService(search, store, nil), store
	}
	return NewChatService(search, store, llm), store
}

func TestNewSession_PersistsWithTruncatedTitle(t *testing.T) {
	svc, store := chatFixture(nil, &fakeAnswerService{answer: "ok"})

	long := strings.Repeat("q", maxTitleLength+20)
	session, err := svc.NewSession(context.Background(), long)
	require.NoError(t, err)

	assert.NotEmpty(t, session.ID)
	assert.Len(t, session.Title, maxTitleLength)

	sessions, err := store.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, session.ID, sessions[0].ID)
}

func TestNewSession_TitleTruncationKeepsValidUTF8(t *testing.T) {
	svc, _ := chatFixture(nil, &fakeAnswerService{answer: "ok"})

	// One ASCII byte shifts every rune boundary off the cut point.
	long := "a" + strings.Repeat("é", maxTitleLength)
	session, err := svc.NewSession(context.Background(), long)
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(session.Title))
	assert.LessOrEqual(t, len(session.Title), maxTitleLength)
	assert.True(t, strings.HasPrefix(long, session.Title))
}

func TestAsk_EmptyQuestionIsInvalid(t *testing.T) {
	svc, _ := chatFixture(nil, &fakeAnswerService{answer: "ok"})

	_, _, err := svc.Ask(context.Background(), "s-1", "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAsk_RecordsBothTurnsInOrder(t *testing.T) {
	snippets := []domain.SearchResult{
		{ChunkID: "1:0", RepoFullName: "octocat/hello-world", Score: 0.8},
	}
	llm := &fakeAnswerService{answer: "grounded answer"}
	svc, store := chatFixture(snippets, llm)

	answer, sources, err := svc.Ask(context.Background(), "s-1", "what is this?")
	require.NoError(t, err)

	assert.Equal(t, "grounded answer", answer)
	assert.Equal(t, snippets, sources)

	messages, err := store.ListMessages(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
	assert.Equal(t, "what is this?", messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, messages[1].Role)
	assert.Equal(t, "grounded answer", messages[1].Content)
	assert.Less(t, messages[0].Seq, messages[1].Seq)
}

func TestAsk_PassesSnippetsAndPriorHistoryToGenerator(t *testing.T) {
	snippets := []domain.SearchResult{{ChunkID: "1:0", RepoFullName: "golang/go"}}
	llm := &fakeAnswerService{answer: "first"}
	svc, _ := chatFixture(snippets, llm)

	_, _, err := svc.Ask(context.Background(), "s-1", "first question")
	require.NoError(t, err)
	assert.Empty(t, llm.lastHistory, "first turn has no prior history")
	assert.Equal(t, snippets, llm.lastSnippets)

	_, _, err = svc.Ask(context.Background(), "s-1", "second question")
	require.NoError(t, err)
	require.Len(t, llm.lastHistory, 2, "second turn sees the first exchange")
	assert.Equal(t, "first question", llm.lastHistory[0].Content)
	assert.Equal(t, "first", llm.lastHistory[1].Content)
}

func TestAsk_NilGeneratorReturnsSnippetsWithUnavailable(t *testing.T) {
	snippets := []domain.SearchResult{{ChunkID: "1:0", RepoFullName: "golang/go"}}
	svc, store := chatFixture(snippets, nil)

	answer, sources, err := svc.Ask(context.Background(), "s-1", "question")
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Empty(t, answer)
	assert.Equal(t, snippets, sources)

	messages, listErr := store.ListMessages(context.Background(), "s-1")
	require.NoError(t, listErr)
	assert.Empty(t, messages, "degraded ask records nothing")
}

func TestAsk_SearchErrorPropagates(t *testing.T) {
	searchErr := errors.New("index unavailable")
	store := newMemStore()
	svc := NewChatService(&fakeSearcher{err: searchErr}, store, &fakeAnswerService{answer: "x"})

	_, _, err := svc.Ask(context.Background(), "s-1", "question")
	assert.ErrorIs(t, err, searchErr)
}

func TestAsk_GeneratorErrorPropagatesAfterQuestionRecorded(t *testing.T) {
	llmErr := errors.New("model crashed")
	llm := &fakeAnswerService{err: llmErr}
	svc, store := chatFixture(nil, llm)

	_, _, err := svc.Ask(context.Background(), "s-1", "question")
	assert.ErrorIs(t, err, llmErr)

	messages, listErr := store.ListMessages(context.Background(), "s-1")
	require.NoError(t, listErr)
	require.Len(t, messages, 1)
	assert.Equal(t, domain.RoleUser, messages[0].Role)
}

func TestHistoryAndSessionsDelegate(t *testing.T) {
	svc, _ := chatFixture(nil, &fakeAnswerService{answer: "ok"})

	session, err := svc.NewSession(context.Background(), "title")
	require.NoError(t, err)
	_, _, err = svc.Ask(context.Background(), session.ID, "question")
	require.NoError(t, err)

	history, err := svc.History(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	sessions, err := svc.Sessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}
