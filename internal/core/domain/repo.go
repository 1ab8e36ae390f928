package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Repository is a starred repository as tracked by the local index.
type Repository struct {
	// ID is the stable numeric identifier assigned by the remote host.
	ID int64

	// FullName is the display name, e.g. "golang/go".
	FullName string

	// Description is the free-text description from the remote host.
	Description string

	// Topics is the set of topic labels. Order is not significant.
	Topics []string

	// Language is the primary language reported by the remote host.
	Language string

	// URL is the canonical web URL of the repository.
	URL string

	// Stars and Forks are popularity counters.
	Stars int
	Forks int

	// PushedAt is the last-modified timestamp reported by the remote host.
	PushedAt time.Time

	// ReadmeHash is the hash of the fetched README text. A repository
	// without a README hashes the empty string.
	ReadmeHash string

	// Checksum is the stored content checksum, computed over the
	// checksum-relevant fields. Empty until first indexed.
	Checksum string

	// UpdatedAt is when the local copy was last written.
	UpdatedAt time.Time
}

// RepoState is the checksum-relevant snapshot of a locally stored
// repository. The sync planner compares these against remote snapshots
// to decide what needs re-fetching.
type RepoState struct {
	ID          int64
	FullName    string
	Description string
	Topics      []string
	Language    string
	PushedAt    time.Time
	Checksum    string
}

// ComputeChecksum returns the content checksum over the checksum-relevant
// fields: identity, name, description, language, sorted topics,
// last-modified and the document hash. The checksum changes if and only
// if one of these fields changes.
func (r Repository) ComputeChecksum() string {
	h := sha256.New()

	h.Write([]byte(strconv.FormatInt(r.ID, 10)))
	h.Write([]byte{0})
	h.Write([]byte(r.FullName))
	h.Write([]byte{0})
	h.Write([]byte(r.Description))
	h.Write([]byte{0})
	h.Write([]byte(r.Language))
	h.Write([]byte{0})

	// Topics are a set: sort before hashing for order-independence.
	sorted := slices.Clone(r.Topics)
	slices.Sort(sorted)
	h.Write([]byte(strings.Join(sorted, "\x01")))
	h.Write([]byte{0})

	h.Write([]byte(strconv.FormatInt(r.PushedAt.UTC().Unix(), 10)))
	h.Write([]byte{0})
	h.Write([]byte(r.ReadmeHash))

	return hex.EncodeToString(h.Sum(nil))
}

// HashDocument returns the hash used for the ReadmeHash field.
func HashDocument(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// State projects the repository onto its checksum-relevant snapshot.
func (r Repository) State() RepoState {
	return RepoState{
		ID:          r.ID,
		FullName:    r.FullName,
		Description: r.Description,
		Topics:      slices.Clone(r.Topics),
		Language:    r.Language,
		PushedAt:    r.PushedAt,
		Checksum:    r.Checksum,
	}
}
