package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Trace    []store.LoggedEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] t=%d %s stream=%d amount=%d refund=%d\n",
				ev.Seq, ev.At, ev.Kind, ev.StreamID, ev.Amount, ev.Refund)
		}
	}
	return buf.String()
}

// AssertionContext carries what assertions read from.
type AssertionContext struct {
	Ctx      context.Context
	Engine   *engine.Engine
	Vault    *store.Vault
	Trace    []store.LoggedEvent
	Balances []Funding
	Ledger   ir.Address
}

// EvaluateAssertions runs every assertion and returns failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var msgs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertStream:
			err = assertStream(actx, a)
		case AssertBalance:
			err = assertBalance(actx, a)
		case AssertConservation:
			err = assertConservation(actx, a)
		case AssertEventCount:
			err = assertEventCount(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return msgs
}

func assertStream(actx *AssertionContext, a Assertion) error {
	id := ir.StreamID(a.Stream)
	s, err := actx.Engine.Stream(id)
	if err != nil {
		return &AssertionError{
			Type:     AssertStream,
			Expected: fmt.Sprintf("stream %d exists", id),
			Actual:   err.Error(),
			Trace:    actx.Trace,
		}
	}

	var diffs []string
	if a.Status != "" && s.Status().String() != a.Status {
		diffs = append(diffs, fmt.Sprintf("status %s, want %s", s.Status(), a.Status))
	}
	if a.Remaining != nil && s.Remaining != *a.Remaining {
		diffs = append(diffs, fmt.Sprintf("remaining %d, want %d", s.Remaining, *a.Remaining))
	}
	if a.Carried != nil && s.Carried != *a.Carried {
		diffs = append(diffs, fmt.Sprintf("carried %d, want %d", s.Carried, *a.Carried))
	}
	if a.Withdrawable != nil {
		info, err := actx.Engine.TimeInfo(id)
		if err != nil {
			return err
		}
		if info.Withdrawable != *a.Withdrawable {
			diffs = append(diffs, fmt.Sprintf("withdrawable %d, want %d", info.Withdrawable, *a.Withdrawable))
		}
	}
	if len(diffs) > 0 {
		return &AssertionError{
			Type:     AssertStream,
			Expected: fmt.Sprintf("stream %d matches", id),
			Actual:   strings.Join(diffs, "; "),
			Trace:    actx.Trace,
		}
	}
	return nil
}

func assertBalance(actx *AssertionContext, a Assertion) error {
	got, err := actx.Vault.Balance(actx.Ctx, ir.Address(a.Token), ir.Address(a.Account))
	if err != nil {
		return err
	}
	if got != *a.Amount {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %d %s", a.Account, *a.Amount, a.Token),
			Actual:   fmt.Sprintf("%d", got),
			Trace:    actx.Trace,
		}
	}
	return nil
}

// assertConservation checks that no value was created or destroyed: all
// holdings of the token add up to what was funded, and the ledger account
// holds exactly the remaining deposits of the token's streams.
func assertConservation(actx *AssertionContext, a Assertion) error {
	token := ir.Address(a.Token)

	var funded ir.Amount
	for _, f := range actx.Balances {
		if f.Token == a.Token {
			funded += f.Amount
		}
	}

	balances, err := actx.Vault.Balances(actx.Ctx, token)
	if err != nil {
		return err
	}
	var held, ledger ir.Amount
	for _, b := range balances {
		held += b.Amount
		if b.Account == actx.Ledger {
			ledger = b.Amount
		}
	}

	var remaining ir.Amount
	for _, s := range actx.Engine.Streams() {
		if s.Token == token {
			remaining += s.Remaining
		}
	}

	switch {
	case held != funded:
		return &AssertionError{
			Type:     AssertConservation,
			Expected: fmt.Sprintf("%d %s in circulation", funded, token),
			Actual:   fmt.Sprintf("%d", held),
			Trace:    actx.Trace,
		}
	case ledger != remaining:
		return &AssertionError{
			Type:     AssertConservation,
			Expected: fmt.Sprintf("ledger %s holds %d %s of remaining deposits", actx.Ledger, remaining, token),
			Actual:   fmt.Sprintf("%d", ledger),
			Trace:    actx.Trace,
		}
	}
	return nil
}

func assertEventCount(actx *AssertionContext, a Assertion) error {
	count := 0
	for _, ev := range actx.Trace {
		if a.Kind == "" || string(ev.Kind) == a.Kind {
			count++
		}
	}
	if count != *a.Count {
		what := "events"
		if a.Kind != "" {
			what = a.Kind + " events"
		}
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    actx.Trace,
		}
	}
	return nil
}
