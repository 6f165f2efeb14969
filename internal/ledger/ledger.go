// Package ledger owns the table of stream records.
//
// The Ledger is the single source of truth for each stream's lifecycle
// state. It issues monotonically increasing ids (never reused), enforces
// creation invariants, and serializes mutations per record:
//
//   - Update(id, fn) holds that record's mutex while fn runs, so no two
//     operations observe-then-commit the same stream concurrently
//   - operations on different ids proceed in parallel
//   - fn mutates a copy; the copy replaces the record only if fn returns nil,
//     so a failed operation leaves no trace
package ledger

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/tokenstream/internal/ir"
)

type record struct {
	mu     sync.Mutex
	stream ir.Stream
}

// Ledger is an arena of stream records plus the id counter.
type Ledger struct {
	mu      sync.RWMutex
	records map[ir.StreamID]*record
	ids     *Sequence

	// createMu serializes creation so a failed create never burns an id.
	createMu sync.Mutex
}

// New creates an empty ledger whose first id is 1.
func New() *Ledger {
	return &Ledger{
		records: make(map[ir.StreamID]*record),
		ids:     NewSequence(),
	}
}

// Create offers the next id to fn and stores the stream it returns.
// The counter advances only when fn succeeds.
func (l *Ledger) Create(fn func(id ir.StreamID) (ir.Stream, error)) (ir.StreamID, error) {
	l.createMu.Lock()
	defer l.createMu.Unlock()

	id := ir.StreamID(l.ids.Peek())
	s, err := fn(id)
	if err != nil {
		return 0, err
	}
	if s.ID != id {
		return 0, ir.StreamError(ir.CodeInvariantViolation, id,
			fmt.Sprintf("created record carries id %d", s.ID))
	}

	l.mu.Lock()
	l.records[id] = &record{stream: s}
	l.mu.Unlock()
	l.ids.Next()
	return id, nil
}

// Get returns a snapshot of the stream.
func (l *Ledger) Get(id ir.StreamID) (ir.Stream, error) {
	rec, err := l.lookup(id)
	if err != nil {
		return ir.Stream{}, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.stream, nil
}

// Update runs fn with exclusive access to a copy of the stream and commits
// the copy if fn returns nil.
func (l *Ledger) Update(id ir.StreamID, fn func(s *ir.Stream) error) error {
	rec, err := l.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	next := rec.stream
	if err := fn(&next); err != nil {
		return err
	}
	if err := CheckTransition(rec.stream, next); err != nil {
		return err
	}
	rec.stream = next
	return nil
}

// List returns snapshots of all streams ordered by id.
func (l *Ledger) List() []ir.Stream {
	l.mu.RLock()
	recs := make([]*record, 0, len(l.records))
	for _, rec := range l.records {
		recs = append(recs, rec)
	}
	l.mu.RUnlock()

	out := make([]ir.Stream, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.stream)
		rec.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b ir.Stream) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out
}

// LastID returns the most recently issued id, or 0 if none.
func (l *Ledger) LastID() ir.StreamID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return ir.StreamID(l.ids.Current())
}

// Restore replaces the arena with persisted streams and moves the counter
// past the highest id. lastID lets callers keep gaps left by deleted rows.
func (l *Ledger) Restore(streams []ir.Stream, lastID ir.StreamID) error {
	records := make(map[ir.StreamID]*record, len(streams))
	maxID := lastID
	for _, s := range streams {
		if s.ID == 0 {
			return fmt.Errorf("restore: stream with zero id")
		}
		if _, dup := records[s.ID]; dup {
			return fmt.Errorf("restore: duplicate stream id %d", s.ID)
		}
		if s.State == nil {
			return fmt.Errorf("restore: stream %d has no state", s.ID)
		}
		if s.Remaining > s.Deposit {
			return fmt.Errorf("restore: stream %d remaining %d exceeds deposit %d", s.ID, s.Remaining, s.Deposit)
		}
		records[s.ID] = &record{stream: s}
		maxID = max(maxID, s.ID)
	}

	l.createMu.Lock()
	defer l.createMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = records
	l.ids = NewSequenceAt(int64(maxID))
	return nil
}

func (l *Ledger) lookup(id ir.StreamID) (*record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return nil, ir.StreamError(ir.CodeNotFound, id, "no such stream")
	}
	return rec, nil
}

// CheckTransition rejects commits that break record invariants.
func CheckTransition(prev, next ir.Stream) error {
	switch {
	case next.ID != prev.ID,
		next.Sender != prev.Sender,
		next.Recipient != prev.Recipient,
		next.Token != prev.Token,
		next.Deposit != prev.Deposit,
		next.Rate != prev.Rate:
		return ir.StreamError(ir.CodeInvariantViolation, prev.ID, "immutable stream field changed")
	case next.Remaining > prev.Remaining:
		return ir.StreamError(ir.CodeInvariantViolation, prev.ID, "remaining increased")
	case prev.Status() == ir.StatusTerminated && next.State != prev.State:
		return ir.StreamError(ir.CodeInvariantViolation, prev.ID, "terminated stream reanimated")
	case next.State == nil:
		return ir.StreamError(ir.CodeInvariantViolation, prev.ID, "stream lost its state")
	}
	return nil
}
