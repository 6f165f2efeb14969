package engine

import (
	"context"
	"sync"

	"github.com/roach88/tokenstream/internal/ir"
)

// Writer persists the effects of one operation.
type Writer interface {
	PutStream(ctx context.Context, s ir.Stream) error
	PutGrant(ctx context.Context, g ir.Grant) error

	// AppendEvent adds e to the audit log. The journal assigns e.Seq; it is
	// valid once Atomically returns nil.
	AppendEvent(ctx context.Context, e *ir.Event) error
}

// Journal runs fn inside one all-or-nothing unit of work. If fn or the
// commit fails, nothing fn wrote is kept.
//
// The ctx passed to fn carries the transaction so a TransferPort sharing the
// journal's storage can enlist in it.
type Journal interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, w Writer) error) error
}

// MemoryJournal keeps the audit log in memory. It is the default journal
// when no persistent store is configured.
//
// Writes are staged per call and applied under a single lock at commit, so
// operations on different streams only contend while committing.
type MemoryJournal struct {
	mu     sync.Mutex
	seq    int64
	events []ir.Event
}

// NewMemoryJournal creates an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Atomically implements Journal.
func (j *MemoryJournal) Atomically(ctx context.Context, fn func(ctx context.Context, w Writer) error) error {
	w := &memoryWriter{}
	if err := fn(ctx, w); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range w.events {
		j.seq++
		e.Seq = j.seq
		j.events = append(j.events, *e)
	}
	return nil
}

// Events returns a copy of the committed audit log in seq order.
func (j *MemoryJournal) Events() []ir.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]ir.Event, len(j.events))
	copy(out, j.events)
	return out
}

type memoryWriter struct {
	events []*ir.Event
}

func (w *memoryWriter) PutStream(context.Context, ir.Stream) error { return nil }

func (w *memoryWriter) PutGrant(context.Context, ir.Grant) error { return nil }

func (w *memoryWriter) AppendEvent(_ context.Context, e *ir.Event) error {
	w.events = append(w.events, e)
	return nil
}
