package engine

import (
	"context"

	"github.com/roach88/tokenstream/internal/accrual"
	"github.com/roach88/tokenstream/internal/ir"
)

// Settlement reports the split of a cancelled stream.
type Settlement struct {
	ToRecipient ir.Amount
	ToSender    ir.Amount
}

// Cancel terminates a stream, paying vested value to the recipient and the
// rest to the sender. The caller must be the sender or the recipient.
func (e *Engine) Cancel(ctx context.Context, caller ir.Address, id ir.StreamID) (Settlement, error) {
	return e.cancel(ctx, OpCancel, caller, id, false)
}

// CancelOnBehalf is Cancel for a delegate holding a CancelOnBehalf grant
// from the sender.
func (e *Engine) CancelOnBehalf(ctx context.Context, caller ir.Address, id ir.StreamID) (Settlement, error) {
	return e.cancel(ctx, OpCancelOnBehalf, caller, id, true)
}

func (e *Engine) cancel(ctx context.Context, op string, caller ir.Address, id ir.StreamID, delegated bool) (out Settlement, err error) {
	var t *tx
	defer func() { e.finish(ctx, op, id, caller, t, err) }()

	t, err = e.mutate(ctx, id, func(ctx context.Context, s *ir.Stream, t *tx) error {
		if !s.IsActive() {
			return ir.StreamError(ir.CodeNotActive, id, "stream is "+s.Status().String())
		}
		if delegated {
			if !e.grants.IsAuthorized(s.Sender, caller, ir.CancelOnBehalf) {
				return unauthorized(id, "%s may not cancel for %s", caller, s.Sender)
			}
		} else if caller != s.Sender && caller != s.Recipient {
			return unauthorized(id, "only the sender or recipient may cancel")
		}

		var toRecipient ir.Amount
		if start, _ := s.Window(); t.now > start {
			w, err := accrual.Withdrawable(*s, t.now)
			if err != nil {
				return err
			}
			toRecipient = w
		}
		toSender := s.Remaining - toRecipient

		if err := t.push(ctx, id, s.Token, s.Recipient, toRecipient); err != nil {
			return err
		}
		if err := t.push(ctx, id, s.Token, s.Sender, toSender); err != nil {
			return err
		}
		s.Remaining = 0
		s.State = s.Terminate()
		out = Settlement{ToRecipient: toRecipient, ToSender: toSender}

		ev := ir.Event{
			Kind:       ir.EventStreamCancelled,
			StreamID:   id,
			Caller:     caller,
			Sender:     s.Sender,
			Recipient:  s.Recipient,
			Token:      s.Token,
			Amount:     toRecipient,
			Refund:     toSender,
			Terminated: true,
		}
		if delegated {
			ev.Principal = s.Sender
		}
		return t.emit(ctx, ev)
	})
	if err != nil {
		return Settlement{}, err
	}
	return out, nil
}
