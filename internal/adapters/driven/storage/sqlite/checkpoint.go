package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// Default checkpoint thresholds. Committed embedding writes are already
// durable in the WAL; the checkpoint additionally folds the WAL into the
// main database file so the index survives even the loss of the WAL.
const (
	// defaultCheckpointEvery folds the WAL after this many embedding
	// writes.
	defaultCheckpointEvery = 256

	// defaultCheckpointMaxAge folds the WAL when the oldest pending
	// write has waited this long, so trickle writes are not deferred
	// forever.
	defaultCheckpointMaxAge = 3 * time.Second
)

// Meta keys recording the checkpoint policy in effect and its last run.
const (
	metaCheckpointEvery  = "checkpoint_every"
	metaCheckpointMs     = "checkpoint_ms"
	metaLastCheckpointAt = "last_checkpoint_at"
)

// recordParameters writes the active thresholds to the meta table, so an
// operator inspecting the database sees which policy produced it.
func (c *checkpointPolicy) recordParameters(ctx context.Context) error {
	meta := c.store.MetaStore()
	if err := meta.Set(ctx, metaCheckpointEvery, strconv.Itoa(c.every)); err != nil {
		return err
	}
	return meta.Set(ctx, metaCheckpointMs,
		strconv.FormatInt(c.maxAge.Milliseconds(), 10))
}

// checkpointPolicy batches WAL checkpoints behind embedding writes.
type checkpointPolicy struct {
	store  *Store
	every  int
	maxAge time.Duration

	mu      sync.Mutex
	pending int
	timer   *time.Timer
}

// configure applies the thresholds, substituting the defaults for values
// below 1.
func (c *checkpointPolicy) configure(every, maxAgeMs int) {
	c.every = defaultCheckpointEvery
	if every >= 1 {
		c.every = every
	}
	c.maxAge = defaultCheckpointMaxAge
	if maxAgeMs >= 1 {
		c.maxAge = time.Duration(maxAgeMs) * time.Millisecond
	}
}

// noteWrites records n committed embedding writes and triggers a
// checkpoint when the batch threshold is reached. Smaller batches start
// the age timer instead.
func (c *checkpointPolicy) noteWrites(ctx context.Context, n int) {
	c.mu.Lock()
	c.pending += n
	if c.pending >= c.every {
		c.resetLocked()
		c.mu.Unlock()
		if err := c.store.Flush(ctx); err != nil {
			logger.Warn("Checkpoint failed: %v", err)
		}
		return
	}
	if c.timer == nil {
		c.timer = time.AfterFunc(c.maxAge, func() {
			if err := c.store.Flush(context.Background()); err != nil {
				logger.Warn("Checkpoint failed: %v", err)
			}
		})
	}
	c.mu.Unlock()
}

// resetLocked clears pending state. Callers hold c.mu.
func (c *checkpointPolicy) resetLocked() {
	c.pending = 0
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Flush forces a WAL checkpoint immediately, regardless of the batch
// thresholds. Called by the sync service at the end of a run, on close,
// and on interrupt signals.
func (s *Store) Flush(ctx context.Context) error {
	s.checkpoint.mu.Lock()
	s.checkpoint.resetLocked()
	s.checkpoint.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing WAL: %w", err)
	}

	// Best effort: the timestamp is bookkeeping, not correctness.
	if err := s.MetaStore().Set(ctx, metaLastCheckpointAt,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Debug("Recording checkpoint time failed: %v", err)
	}
	return nil
}
