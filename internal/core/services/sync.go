package services

import (
	"context"
	"fmt"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/chunker"
	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driving"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// Meta keys written by the sync orchestrator.
const (
	MetaLastSyncAt      = "last_sync_at"
	MetaLastSyncSummary = "last_sync_summary"
)

// Checkpointer forces a durable export of pending writes. Implemented by
// the SQLite store.
type Checkpointer interface {
	Flush(ctx context.Context) error
}

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*SyncOrchestrator)(nil)

// SyncOrchestrator reconciles the local index with the remote snapshot of
// starred repositories: plan, fetch, chunk, embed, persist.
type SyncOrchestrator struct {
	source       driven.RepoSource
	repos        driven.RepositoryStore
	chunks       driven.ChunkStore
	vectors      driven.EmbeddingStore
	meta         driven.MetaStore
	embedder     driven.Embedder
	checkpointer Checkpointer
}

// NewSyncOrchestrator creates a new sync orchestrator. The embedder is
// optional - when nil, chunks are stored but not embedded (a later sync
// with an embedder picks them up). The checkpointer is optional.
func NewSyncOrchestrator(
	source driven.RepoSource,
	repos driven.RepositoryStore,
	chunks driven.ChunkStore,
	vectors driven.EmbeddingStore,
	meta driven.MetaStore,
	embedder driven.Embedder,
	checkpointer Checkpointer,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		source:       source,
		repos:        repos,
		chunks:       chunks,
		vectors:      vectors,
		meta:         meta,
		embedder:     embedder,
		checkpointer: checkpointer,
	}
}

// Sync runs one full sync cycle. Failures on individual repositories or
// chunks degrade to partial progress: everything already embedded stays
// searchable, and the summary counts the errors.
func (o *SyncOrchestrator) Sync(ctx context.Context) (*domain.SyncSummary, error) {
	logger.Section("Sync")

	remote, err := o.source.ListStarred(ctx)
	if err != nil {
		return nil, fmt.Errorf("list starred repositories: %w", err)
	}
	logger.Info("Remote snapshot: %d repositories", len(remote))

	local, err := o.repos.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list local state: %w", err)
	}

	plan := Plan(local, remote)
	logger.Info("Plan: %d candidates, %d removals, %d unchanged",
		len(plan.CandidateIDs), len(plan.RemovedIDs), len(remote)-len(plan.CandidateIDs))

	summary := &domain.SyncSummary{
		Remote:    len(remote),
		Unchanged: len(remote) - len(plan.CandidateIDs),
	}

	if len(plan.RemovedIDs) > 0 {
		if err := o.repos.DeleteByIDs(ctx, plan.RemovedIDs); err != nil {
			return nil, fmt.Errorf("delete removed repositories: %w", err)
		}
		summary.Removed = len(plan.RemovedIDs)
	}

	remoteByID := make(map[int64]domain.Repository, len(remote))
	for _, repo := range remote {
		remoteByID[repo.ID] = repo
	}

	for _, id := range plan.CandidateIDs {
		if err := o.refreshRepository(ctx, remoteByID[id]); err != nil {
			logger.Warn("Refresh %d failed: %v", id, err)
			summary.Errors++
			continue
		}
		summary.Updated++
	}

	embedded, embedErrors, err := o.embedPending(ctx)
	if err != nil {
		return nil, err
	}
	summary.ChunksEmbedded = embedded
	summary.Errors += embedErrors

	if err := o.recordSummary(ctx, summary); err != nil {
		logger.Warn("Record sync summary: %v", err)
	}

	if o.checkpointer != nil {
		if err := o.checkpointer.Flush(ctx); err != nil {
			logger.Warn("Checkpoint flush: %v", err)
		}
	}

	logger.Info("Sync complete: %d updated, %d removed, %d embedded, %d errors",
		summary.Updated, summary.Removed, summary.ChunksEmbedded, summary.Errors)
	return summary, nil
}

// refreshRepository fetches the README, recomputes the checksum, and
// upserts the repository with its chunks.
func (o *SyncOrchestrator) refreshRepository(ctx context.Context, repo domain.Repository) error {
	readme, err := o.source.FetchReadme(ctx, repo.FullName)
	if err != nil {
		return fmt.Errorf("fetch readme: %w", err)
	}

	repo.ReadmeHash = domain.HashDocument(readme)
	repo.Checksum = repo.ComputeChecksum()
	repo.UpdatedAt = time.Now().UTC()

	if err := o.repos.UpsertRepositories(ctx, []domain.Repository{repo}); err != nil {
		return fmt.Errorf("upsert repository: %w", err)
	}

	chunks := chunker.Chunk(repo, readme)
	if err := o.chunks.UpsertChunks(ctx, chunks); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	// A shrinking document must not leave stale high-index windows.
	if err := o.chunks.DeleteStale(ctx, repo.ID, len(chunks)); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}

	logger.Debug("Refreshed %s: %d chunks", repo.FullName, len(chunks))
	return nil
}

// embedPending embeds every chunk lacking a vector and stores the results.
// Per-item failures are counted, not fatal.
func (o *SyncOrchestrator) embedPending(ctx context.Context) (embedded, failures int, err error) {
	if o.embedder == nil {
		logger.Info("No embedder configured, skipping vector generation")
		return 0, 0, nil
	}

	pending, err := o.chunks.ListUnembedded(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list unembedded chunks: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}
	logger.Info("Embedding %d chunks", len(pending))

	texts := make([]string, len(pending))
	for i, chunk := range pending {
		texts[i] = chunk.Content
	}

	results, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, 0, fmt.Errorf("embed chunks: %w", err)
	}

	model := o.embedder.RuntimeInfo().Model
	now := time.Now().UTC()
	embeddings := make([]domain.Embedding, 0, len(results))
	for i, result := range results {
		if result.Err != nil {
			logger.Warn("Chunk %s failed to embed: %v", pending[i].ID, result.Err)
			failures++
			continue
		}
		embeddings = append(embeddings, domain.Embedding{
			ChunkID:   pending[i].ID,
			Vector:    result.Vector,
			Model:     model,
			CreatedAt: now,
		})
	}

	if len(embeddings) > 0 {
		if err := o.vectors.UpsertEmbeddings(ctx, embeddings); err != nil {
			return 0, failures, fmt.Errorf("store embeddings: %w", err)
		}
	}
	return len(embeddings), failures, nil
}

func (o *SyncOrchestrator) recordSummary(ctx context.Context, s *domain.SyncSummary) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := o.meta.Set(ctx, MetaLastSyncAt, now); err != nil {
		return err
	}
	text := fmt.Sprintf("%d remote, %d updated, %d removed, %d unchanged, %d embedded, %d errors",
		s.Remote, s.Updated, s.Removed, s.Unchanged, s.ChunksEmbedded, s.Errors)
	return o.meta.Set(ctx, MetaLastSyncSummary, text)
}
