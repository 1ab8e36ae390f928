package cli

import (
	"context"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// setupTestServices swaps in happy-path mocks and returns a cleanup that
// restores the previous wiring.
func setupTestServices() func() {
	oldSync := syncOrchestrator
	oldSearch := searchService
	oldChat := chatService
	oldConfig := configStore
	oldEmbedder := embedder
	oldRepos := repoStore
	oldChunks := chunkStore
	oldVectors := embeddingStore
	oldMeta := metaStore
	oldIndex := indexStore

	syncOrchestrator = &mockSyncOrchestrator{
		summary: domain.SyncSummary{Remote: 3, Updated: 2, Unchanged: 1, ChunksEmbedded: 12},
	}
	searchService = &mockSearchService{results: testSearchResults()}
	chatService = &mockChatService{
		answer:  "An answer grounded in snippets.",
		sources: testSearchResults(),
	}
	configStore = newMockConfigStore()
	embedder = &mockEmbedder{}
	repoStore = &mockRepoStore{count: 3}
	chunkStore = &mockChunkStore{count: 14}
	embeddingStore = &mockEmbeddingStore{count: 12}
	metaStore = newMockMetaStore()
	indexStore = &mockIndexStore{path: "/tmp/starsift/index.db"}

	return func() {
		syncOrchestrator = oldSync
		searchService = oldSearch
		chatService = oldChat
		configStore = oldConfig
		embedder = oldEmbedder
		repoStore = oldRepos
		chunkStore = oldChunks
		embeddingStore = oldVectors
		metaStore = oldMeta
		indexStore = oldIndex
	}
}

func testSearchResults() []domain.SearchResult {
	return []domain.SearchResult{
		{
			ChunkID:      "1:0",
			RepoID:       1,
			RepoFullName: "octocat/hello-world",
			RepoURL:      "https://github.com/octocat/hello-world",
			Content:      "A sample repository demonstrating GitHub features.",
			Score:        0.92,
		},
		{
			ChunkID:      "2:0",
			RepoID:       2,
			RepoFullName: "golang/go",
			RepoURL:      "https://github.com/golang/go",
			Content:      "The Go programming language.",
			Score:        0.87,
		},
	}
}

type mockSyncOrchestrator struct {
	summary domain.SyncSummary
	err     error
}

func (m *mockSyncOrchestrator) Sync(_ context.Context) (*domain.SyncSummary, error) {
	if m.err != nil {
		return nil, m.err
	}
	summary := m.summary
	return &summary, nil
}

type mockSearchService struct {
	results []domain.SearchResult
	err     error
	lastK   int
}

func (m *mockSearchService) Search(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	m.lastK = k
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type mockChatService struct {
	answer   string
	sources  []domain.SearchResult
	askErr   error
	sessions []domain.ChatSession
	messages []domain.ChatMessage

	lastSessionID string
	lastQuestion  string
}

func (m *mockChatService) NewSession(_ context.Context, title string) (*domain.ChatSession, error) {
	return &domain.ChatSession{ID: "session-1", Title: title, CreatedAt: time.Now()}, nil
}

func (m *mockChatService) Ask(_ context.Context, sessionID, question string) (string, []domain.SearchResult, error) {
	m.lastSessionID = sessionID
	m.lastQuestion = question
	if m.askErr != nil {
		return "", m.sources, m.askErr
	}
	return m.answer, m.sources, nil
}

func (m *mockChatService) History(_ context.Context, _ string) ([]domain.ChatMessage, error) {
	return m.messages, nil
}

func (m *mockChatService) Sessions(_ context.Context) ([]domain.ChatSession, error) {
	return m.sessions, nil
}

type mockConfigStore struct {
	values map[string]any
	saved  bool
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	if v, ok := m.values[key].(string); ok {
		return v
	}
	return ""
}

func (m *mockConfigStore) GetInt(key string) int {
	if v, ok := m.values[key].(int); ok {
		return v
	}
	return 0
}

func (m *mockConfigStore) Set(key string, value any) error {
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error {
	m.saved = true
	return nil
}

type mockEmbedder struct{}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([]driven.EmbedResult, error) {
	results := make([]driven.EmbedResult, len(texts))
	for i := range results {
		results[i] = driven.EmbedResult{Vector: []float32{1}}
	}
	return results, nil
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1}, nil
}

func (m *mockEmbedder) RuntimeInfo() driven.RuntimeInfo {
	return driven.RuntimeInfo{
		PreferredBackend: driven.BackendAccelerated,
		SelectedBackend:  driven.BackendPortable,
		FallbackReason:   "probe failed",
		Model:            "feature-hash-v1",
		Dimensions:       384,
	}
}

func (m *mockEmbedder) Close() error { return nil }

type mockRepoStore struct {
	count int
}

func (m *mockRepoStore) UpsertRepositories(_ context.Context, _ []domain.Repository) error {
	return nil
}
func (m *mockRepoStore) ListStates(_ context.Context) ([]domain.RepoState, error) { return nil, nil }
func (m *mockRepoStore) Get(_ context.Context, _ int64) (*domain.Repository, error) {
	return nil, domain.ErrNotFound
}
func (m *mockRepoStore) List(_ context.Context) ([]domain.Repository, error) { return nil, nil }
func (m *mockRepoStore) DeleteByIDs(_ context.Context, _ []int64) error      { return nil }
func (m *mockRepoStore) Count(_ context.Context) (int, error)                { return m.count, nil }

type mockChunkStore struct {
	count int
}

func (m *mockChunkStore) UpsertChunks(_ context.Context, _ []domain.Chunk) error   { return nil }
func (m *mockChunkStore) DeleteStale(_ context.Context, _ int64, _ int) error      { return nil }
func (m *mockChunkStore) ListUnembedded(_ context.Context) ([]domain.Chunk, error) { return nil, nil }
func (m *mockChunkStore) Count(_ context.Context) (int, error)                     { return m.count, nil }

type mockEmbeddingStore struct {
	count int
}

func (m *mockEmbeddingStore) UpsertEmbeddings(_ context.Context, _ []domain.Embedding) error {
	return nil
}
func (m *mockEmbeddingStore) FindSimilar(_ context.Context, _ []float32, _ int) ([]domain.SearchResult, error) {
	return nil, nil
}
func (m *mockEmbeddingStore) Count(_ context.Context) (int, error) { return m.count, nil }

type mockMetaStore struct {
	values map[string]string
}

func newMockMetaStore() *mockMetaStore {
	return &mockMetaStore{values: make(map[string]string)}
}

func (m *mockMetaStore) Set(_ context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *mockMetaStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

type mockIndexStore struct {
	path    string
	cleared bool
}

func (m *mockIndexStore) ClearAllData(_ context.Context) error { m.cleared = true; return nil }
func (m *mockIndexStore) Flush(_ context.Context) error        { return nil }
func (m *mockIndexStore) Path() string                         { return m.path }
