package engine

import (
	"context"

	"github.com/roach88/tokenstream/internal/accrual"
	"github.com/roach88/tokenstream/internal/ir"
)

// Pause stops accrual, first paying the recipient everything vested so far.
// The caller must be the sender or the recipient.
//
// If that payment drains the stream it terminates instead of pausing.
func (e *Engine) Pause(ctx context.Context, caller ir.Address, id ir.StreamID) (paid ir.Amount, err error) {
	var t *tx
	defer func() { e.finish(ctx, OpPause, id, caller, t, err) }()

	t, err = e.mutate(ctx, id, func(ctx context.Context, s *ir.Stream, t *tx) error {
		if !s.IsActive() {
			return ir.StreamError(ir.CodeNotActive, id, "stream is "+s.Status().String())
		}
		if caller != s.Sender && caller != s.Recipient {
			return unauthorized(id, "only the sender or recipient may pause")
		}

		w, err := accrual.Withdrawable(*s, t.now)
		if err != nil {
			return err
		}
		if err := t.push(ctx, id, s.Token, s.Recipient, w); err != nil {
			return err
		}
		s.Remaining -= w
		paid = w

		start, stop := s.Window()
		left := accrual.TimeLeft(*s, t.now)
		drained := s.Remaining == 0
		if drained {
			s.State = s.Terminate()
		} else {
			s.State = ir.Paused{Start: start, Stop: stop, TimeLeft: left, PausedAt: t.now}
		}

		return t.emit(ctx, ir.Event{
			Kind:       ir.EventStreamPaused,
			StreamID:   id,
			Caller:     caller,
			Recipient:  s.Recipient,
			Token:      s.Token,
			Amount:     w,
			TimeLeft:   left,
			Terminated: drained,
		})
	})
	if err != nil {
		return 0, err
	}
	return paid, nil
}

// Resume restarts accrual for the time that was left at the pause, at the
// original rate. Who may resume is set by Policy.Resume.
func (e *Engine) Resume(ctx context.Context, caller ir.Address, id ir.StreamID) (err error) {
	var t *tx
	defer func() { e.finish(ctx, OpResume, id, caller, t, err) }()

	t, err = e.mutate(ctx, id, func(ctx context.Context, s *ir.Stream, t *tx) error {
		var paused ir.Paused
		switch st := s.State.(type) {
		case ir.Active:
			return ir.StreamError(ir.CodeAlreadyActive, id, "stream is active")
		case ir.Paused:
			paused = st
		default:
			return ir.StreamError(ir.CodeNotActive, id, "stream is "+s.Status().String())
		}
		if !e.policy.mayResume(*s, paused, caller, t.now) {
			return unauthorized(id, "%s may not resume under the %s policy", caller, e.policy.Resume)
		}
		if s.Remaining == 0 {
			return ir.StreamError(ir.CodeNotActive, id, "nothing left to stream")
		}

		s.Carried = s.Deposit - s.Remaining
		s.State = ir.Active{Start: t.now, Stop: t.now + paused.TimeLeft}

		return t.emit(ctx, ir.Event{
			Kind:      ir.EventStreamResumed,
			StreamID:  id,
			Caller:    caller,
			Recipient: s.Recipient,
			Token:     s.Token,
			Start:     t.now,
			Stop:      t.now + paused.TimeLeft,
			Rate:      s.Rate,
		})
	})
	return err
}
