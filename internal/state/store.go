// Package state holds the segment set shared between the resolver (writer)
// and the playback monitor (reader).
package state

import (
	"sync/atomic"
	"time"

	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

// Snapshot is an immutable resolved segment set. Readers must not modify
// Segments.
type Snapshot struct {
	Seq         uint64
	AttemptID   string
	Fingerprint string
	Source      string
	Segments    []types.Segment
	ResolvedAt  time.Time
}

// Store owns the current snapshot. Sets are replaced wholesale, never
// mutated in place.
type Store struct {
	current atomic.Pointer[Snapshot]
	seq     atomic.Uint64
}

// NewStore returns a store holding the empty set.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Snapshot{})
	return s
}

// NextSeq hands out the sequence number for a new resolution attempt.
// Sequence numbers start at 1 and strictly increase.
func (s *Store) NextSeq() uint64 {
	return s.seq.Add(1)
}

// Replace installs snap unless a newer attempt has already been stored.
// It reports whether snap became current.
func (s *Store) Replace(snap Snapshot) bool {
	segs := make([]types.Segment, len(snap.Segments))
	copy(segs, snap.Segments)
	snap.Segments = segs

	for {
		cur := s.current.Load()
		if snap.Seq < cur.Seq {
			return false
		}
		if s.current.CompareAndSwap(cur, &snap) {
			return true
		}
	}
}

// Current returns the current snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Segments returns the current segment set.
func (s *Store) Segments() []types.Segment {
	return s.current.Load().Segments
}
