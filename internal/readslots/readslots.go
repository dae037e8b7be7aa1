// Package readslots tracks the snapshot versions held by active readers.
package readslots

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var ErrTooManyReaders = errors.New("too many concurrent readers (increase max readers)")

// Slots is a fixed-size array of reader slots. Each occupied slot stores the
// reader's snapshot version plus one, so that zero marks a free slot.
type Slots struct {
	slots  []atomic.Uint64
	active atomic.Int32
}

// New creates a slot array that admits up to maxReaders concurrent readers.
func New(maxReaders int) *Slots {
	return &Slots{slots: make([]atomic.Uint64, maxReaders)}
}

// Register claims a free slot for a reader pinned at version and returns
// its index.
func (s *Slots) Register(version uint64) (int, error) {
	tag := version + 1
	for i := range s.slots {
		if s.slots[i].CompareAndSwap(0, tag) {
			s.active.Add(1)
			return i, nil
		}
	}
	return -1, ErrTooManyReaders
}

// Release frees a slot previously returned by Register.
func (s *Slots) Release(slot int) {
	if s.slots[slot].Swap(0) != 0 {
		s.active.Add(-1)
	}
}

// Min returns the oldest snapshot version still pinned by a reader. The
// boolean is false when no reader is active.
func (s *Slots) Min() (uint64, bool) {
	if s.active.Load() == 0 {
		return 0, false
	}

	var oldest uint64
	for i := range s.slots {
		tag := s.slots[i].Load()
		if tag != 0 && (oldest == 0 || tag < oldest) {
			oldest = tag
		}
	}
	if oldest == 0 {
		return 0, false
	}
	return oldest - 1, true
}

// Active returns the number of occupied slots.
func (s *Slots) Active() int {
	return int(s.active.Load())
}

// Cap returns the maximum number of concurrent readers.
func (s *Slots) Cap() int {
	return len(s.slots)
}
