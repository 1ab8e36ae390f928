// Package embedding selects the inference backend at runtime: it probes
// the accelerated Ollama server once and falls back to the portable
// feature-hashing worker when the probe fails. Both paths yield workers
// satisfying the same port, so the pool never needs to know which backend
// won.
package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/starsift-labs/starsift-cli/internal/adapters/driven/embedding/hashed"
	"github.com/starsift-labs/starsift-cli/internal/adapters/driven/embedding/ollama"
	"github.com/starsift-labs/starsift-cli/internal/core/ports/driven"
	"github.com/starsift-labs/starsift-cli/internal/logger"
)

// DefaultProbeTimeout bounds the accelerated-backend probe so a missing
// server costs one connection attempt, not a full request timeout.
const DefaultProbeTimeout = 2 * time.Second

// SelectorConfig holds backend selection parameters.
type SelectorConfig struct {
	// Ollama configures the accelerated backend candidate.
	Ollama ollama.Config

	// PortableDimensions is the vector size of the fallback worker.
	PortableDimensions int

	// ProbeTimeout bounds the accelerated-backend reachability probe.
	ProbeTimeout time.Duration

	// PreferredBackend forces the portable worker when set to
	// driven.BackendPortable, skipping the probe entirely. Empty or
	// driven.BackendAccelerated means probe-then-fallback.
	PreferredBackend string
}

// Selector probes for an accelerated backend on first use and caches the
// outcome. All workers built by one selector share the same backend, so a
// pool never mixes vector spaces.
type Selector struct {
	cfg SelectorConfig

	once       sync.Once
	useOllama  bool
	fallReason string
}

// NewSelector creates a backend selector. No probe happens until the
// first worker is requested.
func NewSelector(cfg SelectorConfig) *Selector {
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Selector{cfg: cfg}
}

// NewWorker builds one embedding worker on the selected backend. The slot
// parameter matches the orchestrator's WorkerFactory signature.
func (s *Selector) NewWorker(_ int) (driven.EmbedWorker, error) {
	s.probe()

	if s.useOllama {
		return ollama.NewWorker(s.cfg.Ollama), nil
	}
	preferred := driven.BackendAccelerated
	if s.cfg.PreferredBackend == driven.BackendPortable {
		preferred = driven.BackendPortable
	}
	return hashed.NewWorker(hashed.Config{
		Dimensions:     s.cfg.PortableDimensions,
		FallbackReason: s.fallReason,
		Preferred:      preferred,
	}), nil
}

// RuntimeInfo reports the selection a fresh worker would carry. It forces
// the probe if it has not run yet.
func (s *Selector) RuntimeInfo() driven.RuntimeInfo {
	w, _ := s.NewWorker(0)
	defer w.Terminate()
	return w.RuntimeInfo()
}

func (s *Selector) probe() {
	s.once.Do(func() {
		if s.cfg.PreferredBackend == driven.BackendPortable {
			logger.Debug("Portable embedding backend requested, skipping probe")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProbeTimeout)
		defer cancel()

		candidate := ollama.NewWorker(s.cfg.Ollama)
		defer candidate.Terminate()

		if err := candidate.Ping(ctx); err != nil {
			s.fallReason = err.Error()
			logger.Debug("Accelerated backend unavailable, using portable embedder: %v", err)
			return
		}

		s.useOllama = true
		logger.Debug("Accelerated embedding backend selected: %s", s.cfg.Ollama.BaseURL)
	})
}
