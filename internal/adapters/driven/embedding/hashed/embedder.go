// Package hashed provides a portable, pure-Go embedding worker based on
// feature hashing. It needs no external runtime or model files, so it is
// always available as the fallback when no accelerated backend responds.
// Vectors are deterministic for identical input and L2-normalized, but
// capture lexical rather than semantic similarity.
package hashed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
)

// Ensure Worker implements the interface.
var _ driven.EmbedWorker = (*Worker)(nil)

// Default configuration values.
const (
	DefaultDimensions = 384
	ModelName         = "feature-hash-v1"

	// trigramSize is the character shingle width used alongside word
	// tokens. Shingles let near-identical identifiers (e.g. "sqlite"
	// vs "sqlite3") share most of their features.
	trigramSize = 3
)

// Config holds configuration for the portable embedding worker.
type Config struct {
	// Dimensions is the embedding vector size (default: 384).
	Dimensions int

	// FallbackReason records why the portable backend was selected,
	// surfaced through RuntimeInfo for status reporting.
	FallbackReason string

	// Preferred is the backend that was asked for (default: accelerated).
	// Set to BackendPortable when the user requested this worker
	// explicitly rather than landing on it through fallback.
	Preferred string
}

// Worker embeds text by hashing word and character-trigram features into
// a fixed number of buckets. It is stateless and safe for concurrent use.
type Worker struct {
	dimensions     int
	fallbackReason string
	preferred      string
}

// NewWorker creates a new portable embedding worker.
func NewWorker(cfg Config) *Worker {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Preferred == "" {
		cfg.Preferred = driven.BackendAccelerated
	}
	return &Worker{
		dimensions:     cfg.Dimensions,
		fallbackReason: cfg.FallbackReason,
		preferred:      cfg.Preferred,
	}
}

// EmbedBatch embeds each text independently and returns one vector per
// input, in input order. It never fails: unknown or empty input produces
// a zero vector rather than an error.
func (w *Worker) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = w.embed(text)
	}
	return vectors, nil
}

// RuntimeInfo reports this worker's backend selection.
func (w *Worker) RuntimeInfo() driven.RuntimeInfo {
	return driven.RuntimeInfo{
		PreferredBackend: w.preferred,
		SelectedBackend:  driven.BackendPortable,
		FallbackReason:   w.fallbackReason,
		Model:            ModelName,
		Dimensions:       w.dimensions,
	}
}

// Terminate releases resources. The worker holds none.
func (w *Worker) Terminate() error {
	return nil
}

func (w *Worker) embed(text string) []float32 {
	vec := make([]float32, w.dimensions)

	for _, token := range tokenize(text) {
		w.addFeature(vec, token)
		for _, shingle := range shingles(token) {
			w.addFeature(vec, shingle)
		}
	}

	normalize(vec)
	return vec
}

// addFeature hashes one feature into its bucket with a hash-derived sign,
// the standard signed feature-hashing trick that keeps the expected inner
// product of unrelated texts near zero.
func (w *Worker) addFeature(vec []float32, feature string) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(w.dimensions))
	if sum&(1<<63) != 0 {
		vec[bucket]--
	} else {
		vec[bucket]++
	}
}

// tokenize splits text into lowercase runs of letters and digits.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// shingles returns the character trigrams of a token. Tokens shorter than
// the shingle width contribute only their word feature.
func shingles(token string) []string {
	runes := []rune(token)
	if len(runes) <= trigramSize {
		return nil
	}
	out := make([]string, 0, len(runes)-trigramSize+1)
	for i := 0; i+trigramSize <= len(runes); i++ {
		out = append(out, string(runes[i:i+trigramSize]))
	}
	return out
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
