package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// fakeSource serves a fixed remote snapshot.
type fakeSource struct {
	repos     []domain.Repository
	readmes   map[string]string
	listErr   error
	readmeErr map[string]error
}

func (f *fakeSource) ListStarred(_ context.Context) ([]domain.Repository, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return slices.Clone(f.repos), nil
}

func (f *fakeSource) FetchReadme(_ context.Context, fullName string) (string, error) {
	if err := f.readmeErr[fullName]; err != nil {
		return "", err
	}
	return f.readmes[fullName], nil
}

func (f *fakeSource) Close() error { return nil }

// memStore is an in-memory stand-in for the SQLite store, satisfying the
// repository, chunk, embedding, meta and chat ports plus Checkpointer.
type memStore struct {
	mu sync.Mutex

	repos      map[int64]domain.Repository
	chunks     map[string]domain.Chunk
	embeddings map[string]domain.Embedding
	meta       map[string]string
	sessions   map[string]domain.ChatSession
	messages   []domain.ChatMessage

	similar []domain.SearchResult
	lastK   int

	flushes int
}

func newMemStore() *memStore {
	return &memStore{
		repos:      make(map[int64]domain.Repository),
		chunks:     make(map[string]domain.Chunk),
		embeddings: make(map[string]domain.Embedding),
		meta:       make(map[string]string),
		sessions:   make(map[string]domain.ChatSession),
	}
}

func (m *memStore) UpsertRepositories(_ context.Context, repos []domain.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range repos {
		m.repos[r.ID] = r
	}
	return nil
}

func (m *memStore) ListStates(_ context.Context) ([]domain.RepoState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make([]domain.RepoState, 0, len(m.repos))
	for _, r := range m.repos {
		states = append(states, r.State())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].ID < states[j].ID })
	return states, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.repos[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) List(_ context.Context) ([]domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	repos := make([]domain.Repository, 0, len(m.repos))
	for _, r := range m.repos {
		repos = append(repos, r)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos, nil
}

func (m *memStore) DeleteByIDs(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.repos, id)
		for chunkID, chunk := range m.chunks {
			if chunk.RepoID == id {
				delete(m.chunks, chunkID)
				delete(m.embeddings, chunkID)
			}
		}
	}
	return nil
}

func (m *memStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.repos), nil
}

func (m *memStore) UpsertChunks(_ context.Context, chunks []domain.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		if old, ok := m.chunks[c.ID]; ok && old.Content != c.Content {
			delete(m.embeddings, c.ID)
		}
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *memStore) DeleteStale(_ context.Context, repoID int64, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for chunkID, chunk := range m.chunks {
		if chunk.RepoID == repoID && chunk.Position >= keep {
			delete(m.chunks, chunkID)
			delete(m.embeddings, chunkID)
		}
	}
	return nil
}

func (m *memStore) ListUnembedded(_ context.Context) ([]domain.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := make([]domain.Chunk, 0)
	for chunkID, chunk := range m.chunks {
		if _, ok := m.embeddings[chunkID]; !ok {
			pending = append(pending, chunk)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].RepoID != pending[j].RepoID {
			return pending[i].RepoID < pending[j].RepoID
		}
		return pending[i].Position < pending[j].Position
	})
	return pending, nil
}

func (m *memStore) chunkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks)
}

func (m *memStore) UpsertEmbeddings(_ context.Context, embeddings []domain.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range embeddings {
		m.embeddings[e.ChunkID] = e
	}
	return nil
}

func (m *memStore) FindSimilar(_ context.Context, _ []float32, k int) ([]domain.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastK = k
	return slices.Clone(m.similar), nil
}

// memMeta exposes the meta table under its own type: the repository and
// meta ports both have a Get method with different signatures.
type memMeta struct {
	m *memStore
}

func (m *memStore) metaStore() *memMeta {
	return &memMeta{m: m}
}

func (mm *memMeta) Set(_ context.Context, key, value string) error {
	mm.m.mu.Lock()
	defer mm.m.mu.Unlock()
	mm.m.meta[key] = value
	return nil
}

func (mm *memMeta) Get(_ context.Context, key string) (string, error) {
	mm.m.mu.Lock()
	defer mm.m.mu.Unlock()
	v, ok := mm.m.meta[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memStore) UpsertSession(_ context.Context, session domain.ChatSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *memStore) AddMessage(_ context.Context, msg domain.ChatMessage) (*domain.ChatMessage, error) {
	if !domain.ValidRole(msg.Role) {
		return nil, domain.ErrInvalidRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.SessionID]; !ok {
		m.sessions[msg.SessionID] = domain.ChatSession{ID: msg.SessionID, CreatedAt: time.Now()}
	}
	seq := 0
	for _, existing := range m.messages {
		if existing.SessionID == msg.SessionID && existing.Seq > seq {
			seq = existing.Seq
		}
	}
	msg.Seq = seq + 1
	msg.ID = int64(len(m.messages) + 1)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *memStore) ListMessages(_ context.Context, sessionID string) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	messages := make([]domain.ChatMessage, 0)
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (m *memStore) ListSessions(_ context.Context) ([]domain.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]domain.ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (m *memStore) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// fakeEmbedder produces deterministic vectors and fails texts containing
// the configured marker.
type fakeEmbedder struct {
	failMarker string
	embedErr   error

	mu          sync.Mutex
	singleCalls []string
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([]driven.EmbedResult, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	results := make([]driven.EmbedResult, len(texts))
	for i, text := range texts {
		if f.failMarker != "" && strings.Contains(text, f.failMarker) {
			results[i] = driven.EmbedResult{Err: fmt.Errorf("embed %q: backend failure", f.failMarker)}
			continue
		}
		results[i] = driven.EmbedResult{Vector: []float32{float32(len(text)), 1}}
	}
	return results, nil
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.singleCalls = append(f.singleCalls, text)
	f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeEmbedder) RuntimeInfo() driven.RuntimeInfo {
	return driven.RuntimeInfo{
		SelectedBackend: driven.BackendPortable,
		Model:           "test-model",
		Dimensions:      2,
	}
}

func (f *fakeEmbedder) Close() error { return nil }

// fakeAnswerService records what it was asked.
type fakeAnswerService struct {
	answer string
	err    error

	lastQuestion string
	lastSnippets []domain.SearchResult
	lastHistory  []domain.ChatMessage
}

func (f *fakeAnswerService) Answer(
	_ context.Context,
	question string,
	snippets []domain.SearchResult,
	history []domain.ChatMessage,
) (string, error) {
	f.lastQuestion = question
	f.lastSnippets = snippets
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeAnswerService) ModelName() string { return "test-llm" }
func (f *fakeAnswerService) Close() error      { return nil }

// fakeSearcher returns canned results for the chat service.
type fakeSearcher struct {
	results []domain.SearchResult
	err     error

	lastQuery string
	lastK     int
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]domain.SearchResult, error) {
	f.lastQuery = query
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return slices.Clone(f.results), nil
}
