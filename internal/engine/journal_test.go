package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tokenstream/internal/ir"
)

func TestMemoryJournal_AssignsSeqOnCommit(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()

	var a, b ir.Event
	err := j.Atomically(ctx, func(ctx context.Context, w Writer) error {
		a = ir.Event{ID: "a", Kind: ir.EventStreamCreated}
		b = ir.Event{ID: "b", Kind: ir.EventStreamWithdrawn}
		require.NoError(t, w.AppendEvent(ctx, &a))
		require.NoError(t, w.AppendEvent(ctx, &b))
		assert.Zero(t, a.Seq, "seq is assigned at commit")
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
	assert.Equal(t, []ir.Event{a, b}, j.Events())
}

func TestMemoryJournal_DiscardsOnError(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()
	boom := errors.New("boom")

	err := j.Atomically(ctx, func(ctx context.Context, w Writer) error {
		require.NoError(t, w.AppendEvent(ctx, &ir.Event{ID: "lost"}))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, j.Events())

	require.NoError(t, j.Atomically(ctx, func(ctx context.Context, w Writer) error {
		return w.AppendEvent(ctx, &ir.Event{ID: "kept"})
	}))
	events := j.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].Seq, "a discarded unit leaves no seq gap")
}

func TestMemoryJournal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	j := NewMemoryJournal()

	err := j.Atomically(ctx, func(ctx context.Context, w Writer) error {
		cancel()
		return w.AppendEvent(ctx, &ir.Event{ID: "late"})
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, j.Events())
}

func TestFixedClock(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	c := FixedClock(at)
	assert.True(t, at.Equal(c.Now()))
	assert.Equal(t, int64(1_700_000_000), unix(c))
}
