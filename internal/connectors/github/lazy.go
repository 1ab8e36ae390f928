package github

import (
	"context"
	"sync"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// Ensure LazySource implements the port.
var _ driven.RepoSource = (*LazySource)(nil)

// LazySource defers client construction until the first call, reading the
// token at that moment. A token stored by 'starsift auth' in the same
// process is picked up without rebuilding the wiring, and a missing token
// surfaces as domain.ErrAuthRequired from the operation that needed it.
type LazySource struct {
	token func() string

	mu  sync.Mutex
	src *Source
}

// NewLazySource creates a source that builds the underlying client on
// first use with the token returned by the given function.
func NewLazySource(token func() string) *LazySource {
	return &LazySource{token: token}
}

func (l *LazySource) get(ctx context.Context) (*Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.src != nil {
		return l.src, nil
	}

	src, err := NewSource(ctx, l.token())
	if err != nil {
		return nil, err
	}
	l.src = src
	return src, nil
}

// ListStarred builds the client if needed and lists starred repositories.
func (l *LazySource) ListStarred(ctx context.Context) ([]domain.Repository, error) {
	src, err := l.get(ctx)
	if err != nil {
		return nil, err
	}
	return src.ListStarred(ctx)
}

// FetchReadme builds the client if needed and fetches a README.
func (l *LazySource) FetchReadme(ctx context.Context, fullName string) (string, error) {
	src, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return src.FetchReadme(ctx, fullName)
}

// Close releases the underlying client, if one was built.
func (l *LazySource) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.src == nil {
		return nil
	}
	err := l.src.Close()
	l.src = nil
	return err
}
