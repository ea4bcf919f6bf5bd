// Package store holds the bounded, in-memory result history every
// runner appends to and every control-API handler reads from.
package store

import (
	"sync"

	"github.com/prodzilla/prodzilla/internal/monitor"
)

// resultLimit is the maximum number of results retained per monitor
// name, matching original_source/src/app_state.rs's PROBE_RESULT_LIMIT.
const resultLimit = 100

// Store is the process-wide, reader-writer-locked result history.
// Reads clone the slice they need while holding the lock, then
// release it before the caller serializes — the lock is never held
// across I/O, mirroring the teacher's InMemoryStateManager.Get.
type Store struct {
	mu            sync.RWMutex
	probeResults  map[string][]monitor.ProbeResult
	storyResults  map[string][]monitor.StoryResult
}

func New() *Store {
	return &Store{
		probeResults: make(map[string][]monitor.ProbeResult),
		storyResults: make(map[string][]monitor.StoryResult),
	}
}

// AppendProbeResult appends a result and evicts from the front until
// the history is at most resultLimit entries long.
func (s *Store) AppendProbeResult(name string, result monitor.ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := append(s.probeResults[name], result)
	if len(results) > resultLimit {
		results = results[len(results)-resultLimit:]
	}
	s.probeResults[name] = results
}

func (s *Store) AppendStoryResult(name string, result monitor.StoryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := append(s.storyResults[name], result)
	if len(results) > resultLimit {
		results = results[len(results)-resultLimit:]
	}
	s.storyResults[name] = results
}

// ProbeResults returns a copy of the stored history for name, oldest
// first (append order).
func (s *Store) ProbeResults(name string) []monitor.ProbeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.probeResults[name]
	out := make([]monitor.ProbeResult, len(src))
	copy(out, src)
	return out
}

func (s *Store) StoryResults(name string) []monitor.StoryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.storyResults[name]
	out := make([]monitor.StoryResult, len(src))
	copy(out, src)
	return out
}

// LastProbeResult returns the most recent result for name, or nil if
// none has been recorded yet.
func (s *Store) LastProbeResult(name string) *monitor.ProbeResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.probeResults[name]
	if len(results) == 0 {
		return nil
	}
	last := results[len(results)-1]
	return &last
}

func (s *Store) LastStoryResult(name string) *monitor.StoryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := s.storyResults[name]
	if len(results) == 0 {
		return nil
	}
	last := results[len(results)-1]
	return &last
}
