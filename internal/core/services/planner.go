package services

import (
	"slices"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
)

// PlanResult is the outcome of comparing local state against a remote
// snapshot.
type PlanResult struct {
	// RemovedIDs are local repositories absent from the remote snapshot.
	RemovedIDs []int64

	// CandidateIDs are remote repositories that need re-fetching: new
	// locally, never checksummed, or with changed checksum-relevant
	// fields.
	CandidateIDs []int64
}

// Plan decides which repositories need re-processing. It is a pure,
// synchronous, total function: no storage or network access. Duplicate
// IDs in either snapshot are the caller's responsibility.
func Plan(local []domain.RepoState, remote []domain.Repository) PlanResult {
	localByID := make(map[int64]domain.RepoState, len(local))
	for _, state := range local {
		localByID[state.ID] = state
	}

	remoteIDs := make(map[int64]struct{}, len(remote))
	candidates := make([]int64, 0, len(remote))
	for _, repo := range remote {
		remoteIDs[repo.ID] = struct{}{}

		state, ok := localByID[repo.ID]
		if !ok || state.Checksum == "" || stateDiffers(state, repo) {
			candidates = append(candidates, repo.ID)
		}
	}

	removed := make([]int64, 0)
	for _, state := range local {
		if _, ok := remoteIDs[state.ID]; !ok {
			removed = append(removed, state.ID)
		}
	}

	// Sorted output keeps the plan deterministic across map iteration.
	slices.Sort(removed)
	slices.Sort(candidates)

	return PlanResult{RemovedIDs: removed, CandidateIDs: candidates}
}

// stateDiffers compares the checksum-relevant fields that are visible in
// a remote listing. The topic set is order-independent; everything else
// is exact-match. The document hash is not compared here because remote
// listings do not carry it; a changed document moves PushedAt.
func stateDiffers(state domain.RepoState, repo domain.Repository) bool {
	if state.FullName != repo.FullName ||
		state.Description != repo.Description ||
		state.Language != repo.Language ||
		!state.PushedAt.Equal(repo.PushedAt) {
		return true
	}
	return !sameTopicSet(state.Topics, repo.Topics)
}

func sameTopicSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}
