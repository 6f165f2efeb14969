package ledger

import "sync/atomic"

// Sequence is a monotonic counter used for stream ids and event seq numbers.
//
// Each Next call returns a unique, strictly increasing value.
//
// Thread-safety: Sequence is safe for concurrent use (atomic operations).
type Sequence struct {
	n atomic.Int64
}

// NewSequence creates a sequence whose first Next returns 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence positioned at start.
// Used when restoring from persistence to resume after the last value.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.n.Store(start)
	return s
}

// Next increments and returns the new value.
func (s *Sequence) Next() int64 {
	return s.n.Add(1)
}

// Peek returns the value the next call to Next will return.
func (s *Sequence) Peek() int64 {
	return s.n.Load() + 1
}

// Current returns the last value handed out without incrementing.
func (s *Sequence) Current() int64 {
	return s.n.Load()
}
