package engine

import (
	"context"

	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/ledger"
)

// StreamParams describe a new stream. The sender is given separately.
type StreamParams struct {
	Recipient ir.Address
	Token     ir.Address
	Deposit   ir.Amount
	Start     ir.Timestamp
	Stop      ir.Timestamp
}

// Create opens a stream funded by sender, who is also the caller.
func (e *Engine) Create(ctx context.Context, sender ir.Address, p StreamParams) (ir.StreamID, error) {
	return e.create(ctx, OpCreate, sender, sender, p)
}

// CreateOnBehalf opens a stream funded by sender. The caller needs a
// CreateOnBehalf grant from sender unless it is the sender.
func (e *Engine) CreateOnBehalf(ctx context.Context, caller, sender ir.Address, p StreamParams) (ir.StreamID, error) {
	return e.create(ctx, OpCreateOnBehalf, caller, sender, p)
}

func (e *Engine) create(ctx context.Context, op string, caller, sender ir.Address, p StreamParams) (id ir.StreamID, err error) {
	var t *tx
	defer func() { e.finish(ctx, op, id, caller, t, err) }()

	params := ledger.Params{
		Sender:    sender,
		Recipient: p.Recipient,
		Token:     p.Token,
		Deposit:   p.Deposit,
		Start:     p.Start,
		Stop:      p.Stop,
	}
	now := unix(e.clock)
	if err := ledger.ValidateNew(params, now, e.self); err != nil {
		return 0, err
	}
	if caller != sender && !e.grants.IsAuthorized(sender, caller, ir.CreateOnBehalf) {
		return 0, unauthorized(0, "%s may not create streams for %s", caller, sender)
	}

	id, err = e.ledger.Create(func(id ir.StreamID) (ir.Stream, error) {
		s := ledger.NewStream(id, params)
		var err error
		t, err = e.atomically(ctx, id, now, func(ctx context.Context, t *tx) error {
			if err := t.pull(ctx, id, s.Token, s.Sender, s.Deposit); err != nil {
				return err
			}
			if err := t.putStream(ctx, s); err != nil {
				return err
			}
			ev := ir.Event{
				Kind:      ir.EventStreamCreated,
				StreamID:  id,
				Caller:    caller,
				Sender:    s.Sender,
				Recipient: s.Recipient,
				Token:     s.Token,
				Amount:    s.Deposit,
				Start:     p.Start,
				Stop:      p.Stop,
				Rate:      s.Rate,
			}
			if caller != sender {
				ev.Principal = sender
			}
			return t.emit(ctx, ev)
		})
		return s, err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
