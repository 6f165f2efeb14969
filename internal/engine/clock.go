package engine

import (
	"time"

	"github.com/roach88/tokenstream/internal/ir"
)

// Clock supplies the wall time used for accrual.
//
// Implemented by SystemClock (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant. Used by the CLI --now flag.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// unix converts a clock reading to ledger time.
func unix(c Clock) ir.Timestamp {
	return c.Now().Unix()
}
