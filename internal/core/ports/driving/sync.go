package driving

import (
	"context"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// SyncOrchestrator runs the full sync cycle: plan, fetch, chunk, embed,
// persist.
type SyncOrchestrator interface {
	// Sync reconciles the local index with the remote snapshot.
	// Per-record failures degrade to partial progress; the returned
	// summary counts them.
	Sync(ctx context.Context) (*domain.SyncSummary, error)
}
