package feed

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrSourceDisabled reports a source that exhausted its retry budget.
// Disablement is terminal for the life of the process.
var ErrSourceDisabled = errors.New("source disabled")

// SourceHealth tracks failures for a single source. Only that source's
// fetch attempts write to it, so a counter and a flag are enough.
type SourceHealth struct {
	failures atomic.Int64
	disabled atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// Failures returns how many attempts have failed so far.
func (h *SourceHealth) Failures() int {
	return int(h.failures.Load())
}

// Disabled reports whether the source is out of the rotation for this run.
func (h *SourceHealth) Disabled() bool {
	return h.disabled.Load()
}

// LastError returns the most recent failure, if any.
func (h *SourceHealth) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *SourceHealth) recordFailure(err error) {
	h.failures.Add(1)
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}

func (h *SourceHealth) disable() {
	h.disabled.Store(true)
}

// Health is the registry of per-source health state. It is owned by the
// orchestrator and injected into fetchers so independent pipelines (and
// tests) do not share state.
type Health struct {
	mu      sync.Mutex
	sources map[string]*SourceHealth
}

func NewHealth() *Health {
	return &Health{sources: make(map[string]*SourceHealth)}
}

// For returns the health record for a source, creating it on first use.
func (h *Health) For(sourceID string) *SourceHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	sh, ok := h.sources[sourceID]
	if !ok {
		sh = &SourceHealth{}
		h.sources[sourceID] = sh
	}
	return sh
}

// Disabled reports whether a source has been disabled.
func (h *Health) Disabled(sourceID string) bool {
	return h.For(sourceID).Disabled()
}

// DisabledCount returns how many sources are currently disabled.
func (h *Health) DisabledCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, sh := range h.sources {
		if sh.Disabled() {
			n++
		}
	}
	return n
}
