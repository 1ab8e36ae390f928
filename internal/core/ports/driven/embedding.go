package driven

import "context"

// Backend name constants recognized in configuration.
const (
	BackendAccelerated = "accelerated"
	BackendPortable    = "portable"
)

// RuntimeInfo describes which inference backend a worker ended up using.
type RuntimeInfo struct {
	// PreferredBackend is the backend that was asked for.
	PreferredBackend string

	// SelectedBackend is the backend actually in use.
	SelectedBackend string

	// FallbackReason is non-empty when SelectedBackend differs from
	// PreferredBackend, recording why probing failed.
	FallbackReason string

	// Model is the embedding model name.
	Model string

	// Dimensions is the vector size produced by the model.
	Dimensions int
}

// EmbedResult is the per-item outcome of a batched embedding call.
// Exactly one of Vector and Err is set.
type EmbedResult struct {
	Vector []float32
	Err    error
}

// EmbedWorker is one isolated compute worker wrapping a single inference
// backend instance. Implemented by the real backend wrapper and by test
// doubles.
type EmbedWorker interface {
	// EmbedBatch embeds one micro-batch. A returned error means the whole
	// call failed; otherwise the slice is parallel to texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// RuntimeInfo reports the backend selection for this worker.
	RuntimeInfo() RuntimeInfo

	// Terminate releases the worker's resources.
	Terminate() error
}

// Embedder is the orchestrated embedding service consumed by the sync and
// search services.
type Embedder interface {
	// EmbedBatch returns one result per input text, in input order,
	// regardless of internal batching. Inputs larger than the configured
	// queue bound fail the whole call before any work starts.
	EmbedBatch(ctx context.Context, texts []string) ([]EmbedResult, error)

	// Embed is the guaranteed single-item path: it returns an error
	// instead of an error-carrying result.
	Embed(ctx context.Context, text string) ([]float32, error)

	// RuntimeInfo reports backend selection diagnostics.
	RuntimeInfo() RuntimeInfo

	// Close terminates all workers.
	Close() error
}
