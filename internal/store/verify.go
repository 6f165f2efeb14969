package store

import (
	"context"
	"fmt"

	"github.com/roach88/tokenstream/internal/ir"
)

// ChainError reports the first event whose hash does not verify.
type ChainError struct {
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at seq %d: %s", e.Seq, e.Reason)
}

// VerifyChain recomputes every event hash in seq order and returns the
// number of events verified. The first mismatch is returned as *ChainError.
func (s *Store) VerifyChain(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT seq, payload, prev_hash, hash FROM events ORDER BY seq ASC`)
	if err != nil {
		return 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	prev := ir.GenesisHash
	var want int64 = 1
	n := 0
	for rows.Next() {
		le, err := scanEvent(rows)
		if err != nil {
			return n, err
		}
		switch {
		case le.Seq != want:
			return n, &ChainError{Seq: le.Seq, Reason: fmt.Sprintf("expected seq %d", want)}
		case le.PrevHash != prev:
			return n, &ChainError{Seq: le.Seq, Reason: "prev_hash does not match the previous event"}
		}
		got, err := ir.EventHash(prev, le.Event)
		if err != nil {
			return n, fmt.Errorf("event %d: %w", le.Seq, err)
		}
		if got != le.Hash {
			return n, &ChainError{Seq: le.Seq, Reason: "hash does not match payload"}
		}
		prev = le.Hash
		want++
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("iterate events: %w", err)
	}
	return n, nil
}
