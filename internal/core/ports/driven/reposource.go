package driven

import (
	"context"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// RepoSource supplies the remote snapshot of the user's starred
// repositories. Implementations handle pagination and rate-limit backoff;
// the core only consumes the results.
type RepoSource interface {
	// ListStarred returns metadata for every starred repository.
	// ReadmeHash and Checksum are unset; they are computed after the
	// document is fetched.
	ListStarred(ctx context.Context) ([]domain.Repository, error)

	// FetchReadme returns the raw README text for a repository.
	// A repository without a README returns the empty string, not an
	// error.
	FetchReadme(ctx context.Context, fullName string) (string, error)

	// Close releases resources.
	Close() error
}
