// Package inflight tracks which inbox entries are currently owned by a processing attempt.
package inflight

import (
	"sync"
	"time"
)

// Set is a concurrency-safe set of claimed paths. A path stays in the set from
// the moment it is claimed until its attempt-cycle ends, including any wait for
// a scheduled retry.
type Set struct {
	mu      sync.Mutex
	claimed map[string]time.Time
}

func New() *Set {
	return &Set{claimed: make(map[string]time.Time)}
}

// Claim adds path if absent. Only the caller that gets true may dispatch it.
func (s *Set) Claim(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claimed[path]; ok {
		return false
	}
	s.claimed[path] = time.Now()
	return true
}

// Release removes path and reports whether it was present.
func (s *Set) Release(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claimed[path]; !ok {
		return false
	}
	delete(s.claimed, path)
	return true
}

func (s *Set) Contains(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.claimed[path]
	return ok
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.claimed)
}

// Snapshot returns a copy of the claimed paths with their claim times.
func (s *Set) Snapshot() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.claimed))
	for k, v := range s.claimed {
		out[k] = v
	}
	return out
}
