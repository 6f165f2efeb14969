// Package accrual computes how much of a stream has vested at a point in time.
//
// All functions are pure. Rounding is floor division, so the remainder
// deposit - rate*duration (dust) never vests through accrual.
package accrual

import (
	"fmt"

	"github.com/roach88/tokenstream/internal/ir"
)

// Rate returns floor(deposit / duration). Duration must be positive.
func Rate(deposit ir.Amount, duration int64) ir.Amount {
	if duration <= 0 {
		return 0
	}
	return deposit / uint64(duration)
}

// Dust returns the part of deposit that floor division leaves unvestable.
func Dust(deposit ir.Amount, duration int64) ir.Amount {
	if duration <= 0 {
		return deposit
	}
	return deposit - Rate(deposit, duration)*uint64(duration)
}

// Vested returns the quantity vested at t.
//
//	0                                               if not active or t < start
//	min(deposit, carried + (min(t, stop)-start)*rate) otherwise
func Vested(s ir.Stream, t ir.Timestamp) ir.Amount {
	active, ok := s.State.(ir.Active)
	if !ok || t < active.Start {
		return 0
	}
	end := min(t, active.Stop)
	elapsed := end - active.Start
	if elapsed < 0 {
		elapsed = 0
	}
	v := s.Carried + uint64(elapsed)*s.Rate
	return min(v, s.Deposit)
}

// Withdrawable returns vested-but-not-disbursed value at t.
//
// Non-active streams have nothing withdrawable. A vested amount below what
// was already disbursed means the ledger is corrupt and is reported as an
// invariant violation rather than clamped.
func Withdrawable(s ir.Stream, t ir.Timestamp) (ir.Amount, error) {
	if !s.IsActive() {
		return 0, nil
	}
	if s.Remaining > s.Deposit {
		return 0, ir.StreamError(ir.CodeInvariantViolation, s.ID,
			fmt.Sprintf("remaining %d exceeds deposit %d", s.Remaining, s.Deposit))
	}
	vested := Vested(s, t)
	disbursed := s.Disbursed()
	if vested < disbursed {
		return 0, ir.StreamError(ir.CodeInvariantViolation, s.ID,
			fmt.Sprintf("vested %d below disbursed %d at t=%d", vested, disbursed, t))
	}
	return vested - disbursed, nil
}

// TimeLeft returns the part of the active window not yet elapsed at t.
// Before start the whole window is left.
func TimeLeft(s ir.Stream, t ir.Timestamp) int64 {
	start, stop := s.Window()
	from := max(t, start)
	if from >= stop {
		return 0
	}
	return stop - from
}
