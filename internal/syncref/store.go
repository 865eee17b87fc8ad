// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package syncref implements the cross-track synchronization-reference
// store tracker.Tracker instances share to keep independently-tracked
// audio/video/text segment trackers aligned across a discontinuity.
package syncref

import (
	"sync"
	"time"

	"github.com/dash-segtrack/segtrack/internal/tracker"
)

// Store is a thread-safe, in-memory SynchronizationReferences keyed by
// discontinuity sequence. Unlike the tracker it serves, a Store is shared
// across every track of one asset and so must tolerate concurrent access
// from multiple tracker goroutines (spec.md §5's no-reentrancy rule binds
// a single Tracker, not its collaborators).
type Store struct {
	mu   sync.RWMutex
	refs map[uint64]tracker.SynchronizationReference
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{refs: make(map[uint64]tracker.SynchronizationReference)}
}

// GetReference implements tracker.SynchronizationReferences. t is accepted
// for interface symmetry but unused: one discontinuity sequence carries
// exactly one reference point, not a timeline of them.
func (s *Store) GetReference(discSeq uint64, t time.Duration) (tracker.SynchronizationReference, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[discSeq]
	return ref, ok
}

// AddReference implements tracker.SynchronizationReferences. The first
// track to observe a discontinuity sequence wins; later tracks read back
// the same reference point rather than overwriting it with their own
// (possibly later) measurement.
func (s *Store) AddReference(discSeq uint64, ref tracker.SynchronizationReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.refs[discSeq]; exists {
		return
	}
	s.refs[discSeq] = ref
}

// Forget discards references for discontinuity sequences no longer reachable
// from any active track, keeping long-lived live sessions from accumulating
// an unbounded map.
func (s *Store) Forget(activeSeqs map[uint64]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for seq := range s.refs {
		if _, active := activeSeqs[seq]; !active {
			delete(s.refs, seq)
		}
	}
}
