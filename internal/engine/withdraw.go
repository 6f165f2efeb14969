package engine

import (
	"context"
	"fmt"

	"github.com/roach88/tokenstream/internal/accrual"
	"github.com/roach88/tokenstream/internal/ir"
)

// Withdrawal reports what a withdraw paid out.
type Withdrawal struct {
	// Amount went to the recipient.
	Amount ir.Amount
	// Refund went back to the sender (dust sweep only).
	Refund ir.Amount
	// Terminated is set when the withdrawal ended the stream.
	Terminated bool
}

// Withdraw pays vested value to the recipient, who must be the caller.
// An amount of 0 withdraws everything available.
func (e *Engine) Withdraw(ctx context.Context, caller ir.Address, id ir.StreamID, amount ir.Amount) (Withdrawal, error) {
	return e.withdraw(ctx, OpWithdraw, caller, id, amount, false)
}

// WithdrawOnBehalf pays vested value to the recipient. The caller needs a
// WithdrawOnBehalf grant from the recipient.
func (e *Engine) WithdrawOnBehalf(ctx context.Context, caller ir.Address, id ir.StreamID, amount ir.Amount) (Withdrawal, error) {
	return e.withdraw(ctx, OpWithdrawOnBehalf, caller, id, amount, true)
}

func (e *Engine) withdraw(ctx context.Context, op string, caller ir.Address, id ir.StreamID, amount ir.Amount, delegated bool) (out Withdrawal, err error) {
	var t *tx
	defer func() { e.finish(ctx, op, id, caller, t, err) }()

	t, err = e.mutate(ctx, id, func(ctx context.Context, s *ir.Stream, t *tx) error {
		if !s.IsActive() {
			return ir.StreamError(ir.CodeNotActive, id, "stream is "+s.Status().String())
		}
		if delegated {
			if !e.grants.IsAuthorized(s.Recipient, caller, ir.WithdrawOnBehalf) {
				return unauthorized(id, "%s may not withdraw for %s", caller, s.Recipient)
			}
		} else if caller != s.Recipient {
			return unauthorized(id, "only the recipient may withdraw")
		}

		w, err := accrual.Withdrawable(*s, t.now)
		if err != nil {
			return err
		}
		if w == 0 {
			return ir.StreamError(ir.CodeNothingToWithdraw, id, "nothing has vested since the last withdrawal")
		}
		if amount == 0 {
			amount = w
		} else if amount > w {
			return ir.StreamError(ir.CodeAmountExceedsWithdrawable, id,
				fmt.Sprintf("requested %d, withdrawable %d", amount, w))
		}

		if err := t.push(ctx, id, s.Token, s.Recipient, amount); err != nil {
			return err
		}
		s.Remaining -= amount
		out.Amount = amount

		_, stop := s.Window()
		if t.now >= stop || s.Remaining == 0 {
			if e.policy.SweepDust && s.Remaining > 0 {
				if err := t.push(ctx, id, s.Token, s.Sender, s.Remaining); err != nil {
					return err
				}
				out.Refund = s.Remaining
				s.Remaining = 0
			}
			s.State = s.Terminate()
			out.Terminated = true
		}

		ev := ir.Event{
			Kind:       ir.EventStreamWithdrawn,
			StreamID:   id,
			Caller:     caller,
			Recipient:  s.Recipient,
			Token:      s.Token,
			Amount:     out.Amount,
			Refund:     out.Refund,
			Terminated: out.Terminated,
		}
		if delegated {
			ev.Principal = s.Recipient
		}
		return t.emit(ctx, ev)
	})
	if err != nil {
		return Withdrawal{}, err
	}
	return out, nil
}
