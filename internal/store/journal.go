package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
)

type txKey struct{}

// txFrom returns the transaction carried by ctx, if any.
func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// Atomically implements engine.Journal. fn runs inside one SQL transaction
// that is committed only if fn returns nil. The context passed to fn
// carries the transaction; nested calls with that context join it.
func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, w engine.Writer) error) error {
	if tx := txFrom(ctx); tx != nil {
		return fn(ctx, &writer{tx: tx})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)

	if err := fn(txCtx, &writer{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// inTx runs fn in the transaction carried by ctx, or in a fresh one.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.Atomically(ctx, func(ctx context.Context, _ engine.Writer) error {
		return fn(txFrom(ctx))
	})
}

// writer implements engine.Writer on top of one transaction.
type writer struct {
	tx *sql.Tx
}

// PutStream upserts the stream row and advances the persisted id counter.
func (w *writer) PutStream(ctx context.Context, st ir.Stream) error {
	r, err := flattenState(st.State)
	if err != nil {
		return fmt.Errorf("put stream %d: %w", st.ID, err)
	}

	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO streams (`+streamColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remaining  = excluded.remaining,
			carried    = excluded.carried,
			status     = excluded.status,
			start_time = excluded.start_time,
			stop_time  = excluded.stop_time,
			time_left  = excluded.time_left,
			paused_at  = excluded.paused_at
	`,
		int64(st.ID),
		string(st.Sender),
		string(st.Recipient),
		string(st.Token),
		st.Deposit,
		st.Rate,
		st.Remaining,
		st.Carried,
		r.status,
		r.start,
		r.stop,
		r.timeLeft,
		r.pausedAt,
	)
	if err != nil {
		return fmt.Errorf("put stream %d: %w", st.ID, err)
	}

	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('last_stream_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = MAX(value, excluded.value)
	`, int64(st.ID))
	if err != nil {
		return fmt.Errorf("put stream %d: advance id counter: %w", st.ID, err)
	}
	return nil
}

// PutGrant upserts one capability triple.
func (w *writer) PutGrant(ctx context.Context, g ir.Grant) error {
	_, err := w.tx.ExecContext(ctx, `
		INSERT INTO grants (grantor, delegate, action, allowed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(grantor, delegate, action) DO UPDATE SET allowed = excluded.allowed
	`, string(g.Grantor), string(g.Delegate), g.Action.String(), g.Allowed)
	if err != nil {
		return fmt.Errorf("put grant: %w", err)
	}
	return nil
}

// AppendEvent assigns the next seq, chains the event to the previous hash
// and inserts it.
func (w *writer) AppendEvent(ctx context.Context, e *ir.Event) error {
	var (
		lastSeq  int64
		prevHash = ir.GenesisHash
	)
	err := w.tx.QueryRowContext(ctx, `
		SELECT seq, hash FROM events ORDER BY seq DESC LIMIT 1
	`).Scan(&lastSeq, &prevHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("append event: read chain head: %w", err)
	}

	e.Seq = lastSeq + 1
	hash, err := ir.EventHash(prevHash, *e)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	payload, err := marshalEvent(*e)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	_, err = w.tx.ExecContext(ctx, `
		INSERT INTO events (seq, id, kind, at, stream_id, payload, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.ID,
		string(e.Kind),
		e.At,
		nullStreamID(e.StreamID),
		payload,
		prevHash,
		hash,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
