// Package status holds the process-wide roof status. One writer (the
// monitor loop), many readers (HTTP handlers, websocket broadcaster,
// notifier).
package status

import (
	"sync"

	"roofmon/internal/types"
)

// DefaultHistory is the number of recent results kept for diagnostics.
const DefaultHistory = 32

// Store guards the current StatusRecord and a bounded ring of recent
// classification results. Classification work happens outside the lock;
// only the record swap is guarded.
type Store struct {
	mu      sync.RWMutex
	record  types.StatusRecord
	history []types.ClassificationResult
	next    int
	full    bool
}

// NewStore starts with the UNKNOWN sentinel and an empty history ring.
func NewStore() *Store {
	return &Store{history: make([]types.ClassificationResult, DefaultHistory)}
}

// Update installs the result of a successful poll. The consecutive
// counter resets whenever the label flips.
func (s *Store) Update(res types.ClassificationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.record.Label == res.Label && s.record.Known() {
		s.record.Consecutive++
	} else {
		s.record.Consecutive = 1
	}
	s.record.Label = res.Label
	s.record.Confidence = res.Confidence
	s.record.UpdatedAt = res.EvaluatedAt
	s.record.FramePath = res.FramePath
	s.record.Evaluations++
	s.record.LastError = ""

	s.history[s.next] = res
	s.next = (s.next + 1) % len(s.history)
	if s.next == 0 {
		s.full = true
	}
}

// SetError records why the last poll failed. The label fields are left
// alone: a read failure says nothing about the roof.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.LastError = err.Error()
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() types.StatusRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

// History returns the retained results, oldest first.
func (s *Store) History() []types.ClassificationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.full {
		out := make([]types.ClassificationResult, s.next)
		copy(out, s.history[:s.next])
		return out
	}
	out := make([]types.ClassificationResult, 0, len(s.history))
	out = append(out, s.history[s.next:]...)
	out = append(out, s.history[:s.next]...)
	return out
}
