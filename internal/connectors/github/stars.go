package github

import (
	"context"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// Ensure Source implements the interface.
var _ driven.RepoSource = (*Source)(nil)

// starsPerPage is the page size for star listing (the API maximum).
const starsPerPage = 100

// Source supplies the remote snapshot of the authenticated user's starred
// repositories.
type Source struct {
	client *Client
}

// NewSource creates a starred-repository source. The token is required:
// star listings are tied to the authenticated user.
func NewSource(ctx context.Context, token string) (*Source, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no GitHub token configured, run 'starsift auth' first",
			domain.ErrAuthRequired)
	}
	return &Source{client: NewClient(ctx, token)}, nil
}

// newSourceWithClient wraps a prebuilt client. Tests use this.
func newSourceWithClient(client *Client) *Source {
	return &Source{client: client}
}

// ListStarred returns metadata for every starred repository, following
// pagination to the end. ReadmeHash and Checksum are left unset.
func (s *Source) ListStarred(ctx context.Context) ([]domain.Repository, error) {
	var all []domain.Repository

	opts := &gh.ActivityListStarredOptions{
		ListOptions: gh.ListOptions{PerPage: starsPerPage},
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := s.client.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		starred, resp, err := s.client.gh.Activity.ListStarred(ctx, "", opts)
		if err != nil {
			return nil, s.client.wrapError(err, "list starred")
		}
		s.client.updateRateLimitFromResponse(resp)

		for _, star := range starred {
			repo := star.GetRepository()
			if repo == nil || repo.GetID() == 0 {
				continue
			}
			all = append(all, mapRepository(repo))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logger.Debug("Listed %d starred repositories", len(all))
	return all, nil
}

// FetchReadme returns the decoded README text for a repository. A
// repository without a README returns the empty string, not an error.
func (s *Source) FetchReadme(ctx context.Context, fullName string) (string, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", fmt.Errorf("%w: malformed repository name %q", domain.ErrInvalidInput, fullName)
	}

	if err := s.client.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	readme, resp, err := s.client.gh.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		wrapped := s.client.wrapError(err, "get readme")
		if IsNotFound(wrapped) {
			return "", nil
		}
		return "", wrapped
	}
	s.client.updateRateLimitFromResponse(resp)

	content, err := readme.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode readme: %w", err)
	}
	return content, nil
}

// Close releases resources. The HTTP client needs no explicit cleanup.
func (s *Source) Close() error {
	return nil
}

// mapRepository converts the API shape to the domain shape.
func mapRepository(repo *gh.Repository) domain.Repository {
	return domain.Repository{
		ID:          repo.GetID(),
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		Topics:      repo.Topics,
		Language:    repo.GetLanguage(),
		URL:         repo.GetHTMLURL(),
		Stars:       repo.GetStargazersCount(),
		Forks:       repo.GetForksCount(),
		PushedAt:    repo.GetPushedAt().Time.UTC(),
	}
}
