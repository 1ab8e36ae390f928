// Package embedding schedules batched inference across a bounded pool of
// isolated compute workers, with overload protection and an irreversible
// downshift to a single worker under memory pressure or repeated errors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/starsift-labs/starsift-cli/internal/core/domain"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// Default configuration values.
const (
	DefaultPoolSize       = 2
	DefaultMicroBatchSize = 8
	DefaultMaxQueueSize   = 4096
	DefaultErrorThreshold = 10
)

// Config holds orchestrator tuning parameters. Zero values are replaced
// by defaults; all values are clamped to at least 1.
type Config struct {
	// PoolSize is the configured number of concurrent workers.
	PoolSize int

	// MicroBatchSize is the number of texts per worker call.
	MicroBatchSize int

	// MaxQueueSize bounds a single EmbedBatch input. Larger calls are
	// rejected before any work starts.
	MaxQueueSize int

	// ErrorThreshold is the cumulative error count across all workers
	// that triggers the downshift.
	ErrorThreshold int
}

func (c Config) withDefaults() Config {
	if c.PoolSize < 1 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MicroBatchSize < 1 {
		c.MicroBatchSize = DefaultMicroBatchSize
	}
	if c.MaxQueueSize < 1 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.ErrorThreshold < 1 {
		c.ErrorThreshold = DefaultErrorThreshold
	}
	return c
}

// WorkerFactory builds one isolated compute worker. Called once per pool
// slot at construction time.
type WorkerFactory func(slot int) (driven.EmbedWorker, error)

// Ensure Orchestrator implements the port.
var _ driven.Embedder = (*Orchestrator)(nil)

// Orchestrator owns a pool of embedding workers. All mutable coordination
// state lives on the instance so independent orchestrators can coexist
// (no process-wide singletons).
type Orchestrator struct {
	cfg     Config
	workers []driven.EmbedWorker

	errCount    atomic.Int64
	downshifted atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// New creates an orchestrator with cfg.PoolSize workers built by factory.
// Workers already built are terminated if a later slot fails.
func New(cfg Config, factory WorkerFactory) (*Orchestrator, error) {
	cfg = cfg.withDefaults()

	workers := make([]driven.EmbedWorker, 0, cfg.PoolSize)
	for slot := 0; slot < cfg.PoolSize; slot++ {
		w, err := factory(slot)
		if err != nil {
			for _, built := range workers {
				_ = built.Terminate()
			}
			return nil, fmt.Errorf("create worker %d: %w", slot, err)
		}
		workers = append(workers, w)
	}

	return &Orchestrator{cfg: cfg, workers: workers}, nil
}

// ConfiguredPoolSize returns the pool size the orchestrator was built with.
func (o *Orchestrator) ConfiguredPoolSize() int {
	return o.cfg.PoolSize
}

// ActivePoolSize returns the current worker budget: the configured size,
// or 1 after a downshift. The downshift never recovers within the
// orchestrator's lifetime.
func (o *Orchestrator) ActivePoolSize() int {
	if o.downshifted.Load() {
		return 1
	}
	return o.cfg.PoolSize
}

// RuntimeInfo reports the backend selection of the first worker.
func (o *Orchestrator) RuntimeInfo() driven.RuntimeInfo {
	if len(o.workers) == 0 {
		return driven.RuntimeInfo{}
	}
	return o.workers[0].RuntimeInfo()
}

// EmbedBatch embeds texts and returns one result per input, in input
// order, regardless of how sub-batches complete across workers.
func (o *Orchestrator) EmbedBatch(ctx context.Context, texts []string) ([]driven.EmbedResult, error) {
	if len(texts) == 0 {
		return []driven.EmbedResult{}, nil
	}
	if len(texts) > o.cfg.MaxQueueSize {
		return nil, fmt.Errorf("%w: %d texts exceed queue bound %d",
			domain.ErrQueueOverflow, len(texts), o.cfg.MaxQueueSize)
	}

	results := make([]driven.EmbedResult, len(texts))
	batches := o.splitBatches(len(texts))

	workerCount := o.ActivePoolSize()
	if workerCount > len(batches) {
		workerCount = len(batches)
	}

	// Shared work-stealing cursor: each idle worker claims the next
	// unclaimed sub-batch.
	var cursor atomic.Int64
	running := atomic.Int32{}
	running.Store(int32(workerCount))

	var wg sync.WaitGroup
	for slot := 0; slot < workerCount; slot++ {
		wg.Add(1)
		go func(worker driven.EmbedWorker) {
			defer wg.Done()
			for {
				claim := int(cursor.Add(1)) - 1
				if claim >= len(batches) {
					return
				}
				o.runBatch(ctx, worker, texts, batches[claim], results)

				// After a downshift a worker surrenders further claims
				// unless it is the sole remaining worker.
				if o.downshifted.Load() && surrender(&running) {
					return
				}
			}
		}(o.workers[slot])
	}
	wg.Wait()

	return results, nil
}

// Embed is the guaranteed single-item path: validation and inference
// failures surface as returned errors, never as error-carrying results.
func (o *Orchestrator) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if results[0].Err != nil {
		return nil, results[0].Err
	}
	return results[0].Vector, nil
}

// Close terminates all workers.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() {
		var errs []error
		for _, w := range o.workers {
			if err := w.Terminate(); err != nil {
				errs = append(errs, err)
			}
		}
		o.closeErr = errors.Join(errs...)
	})
	return o.closeErr
}

// batchRange is a half-open index range [Start, End) into the input.
type batchRange struct {
	Start, End int
}

func (o *Orchestrator) splitBatches(n int) []batchRange {
	size := o.cfg.MicroBatchSize
	batches := make([]batchRange, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		batches = append(batches, batchRange{Start: start, End: end})
	}
	return batches
}

// runBatch embeds one sub-batch and writes its results into the shared
// slice. Sub-batches cover disjoint index ranges, so no locking is needed.
func (o *Orchestrator) runBatch(
	ctx context.Context,
	worker driven.EmbedWorker,
	texts []string,
	r batchRange,
	results []driven.EmbedResult,
) {
	sub := texts[r.Start:r.End]
	vectors, err := worker.EmbedBatch(ctx, sub)

	if err != nil {
		// A failed call marks every item in the sub-batch with the same
		// error: never lost, never silently dropped.
		for i := r.Start; i < r.End; i++ {
			results[i] = driven.EmbedResult{Err: err}
		}
		o.noteError(err, 1)
		return
	}

	if len(vectors) > len(sub) {
		err := fmt.Errorf("embedding batch length mismatch: got %d vectors for %d texts",
			len(vectors), len(sub))
		for i := r.Start; i < r.End; i++ {
			results[i] = driven.EmbedResult{Err: err}
		}
		o.noteError(err, 1)
		return
	}

	for i := range sub {
		if i < len(vectors) && vectors[i] != nil {
			results[r.Start+i] = driven.EmbedResult{Vector: vectors[i]}
			continue
		}
		// Missing vectors fail individually and count individually.
		itemErr := fmt.Errorf("no vector returned for batch item %d", i)
		results[r.Start+i] = driven.EmbedResult{Err: itemErr}
		o.noteError(itemErr, 1)
	}
}

// noteError records inference errors and applies the downshift transition
// when either the memory-pressure heuristic matches or the cumulative
// error count reaches the threshold. The transition is one-directional.
func (o *Orchestrator) noteError(err error, count int) {
	total := o.errCount.Add(int64(count))

	if isMemoryPressure(err) {
		o.downshift("memory pressure: " + err.Error())
		return
	}
	if total >= int64(o.cfg.ErrorThreshold) {
		o.downshift(fmt.Sprintf("error threshold reached (%d)", total))
	}
}

func (o *Orchestrator) downshift(reason string) {
	if o.downshifted.CompareAndSwap(false, true) {
		logger.Warn("Embedding pool downshifted to 1 worker: %s", reason)
	}
}

// memoryPressureSignatures are matched case-insensitively against error
// messages to classify allocation failures.
var memoryPressureSignatures = []string{
	"out of memory",
	"oom",
	"cannot allocate",
	"allocation fail",
	"memory exhausted",
}

func isMemoryPressure(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range memoryPressureSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// surrender decrements the running-worker count unless the caller is the
// sole remaining worker. Returns true when the caller should stop.
func surrender(running *atomic.Int32) bool {
	for {
		current := running.Load()
		if current <= 1 {
			return false
		}
		if running.CompareAndSwap(current, current-1) {
			return true
		}
	}
}
