package ledger

import (
	"fmt"

	"github.com/roach88/tokenstream/internal/accrual"
	"github.com/roach88/tokenstream/internal/ir"
)

// Params are the caller-supplied fields of a new stream.
type Params struct {
	Sender    ir.Address
	Recipient ir.Address
	Token     ir.Address
	Deposit   ir.Amount
	Start     ir.Timestamp
	Stop      ir.Timestamp
}

// ValidateNew enforces creation invariants. self is the ledger's own
// account, which can never be a recipient.
func ValidateNew(p Params, now ir.Timestamp, self ir.Address) error {
	switch {
	case p.Sender.IsZero():
		return ir.NewError(ir.CodeInvalidParty, "sender is the null identifier")
	case p.Recipient.IsZero():
		return ir.NewError(ir.CodeInvalidParty, "recipient is the null identifier")
	case p.Recipient == p.Sender:
		return ir.NewError(ir.CodeInvalidParty, "recipient equals sender")
	case p.Recipient == self:
		return ir.NewError(ir.CodeInvalidParty, "recipient is the ledger itself")
	case p.Token.IsZero():
		return ir.NewError(ir.CodeInvalidParty, "token is the null identifier")
	}

	switch {
	case p.Deposit == 0:
		return ir.NewError(ir.CodeInvalidWindow, "deposit must be positive")
	case p.Start < now:
		return ir.NewError(ir.CodeInvalidWindow, fmt.Sprintf("start %d is before now %d", p.Start, now))
	case p.Stop <= p.Start:
		return ir.NewError(ir.CodeInvalidWindow, fmt.Sprintf("stop %d is not after start %d", p.Stop, p.Start))
	case p.Deposit < uint64(p.Stop-p.Start):
		return ir.NewError(ir.CodeInvalidWindow,
			fmt.Sprintf("deposit %d is smaller than duration %d", p.Deposit, p.Stop-p.Start))
	}
	return nil
}

// NewStream builds the initial record for validated params.
func NewStream(id ir.StreamID, p Params) ir.Stream {
	return ir.Stream{
		ID:        id,
		Sender:    p.Sender,
		Recipient: p.Recipient,
		Token:     p.Token,
		Deposit:   p.Deposit,
		Rate:      accrual.Rate(p.Deposit, p.Stop-p.Start),
		Remaining: p.Deposit,
		State:     ir.Active{Start: p.Start, Stop: p.Stop},
	}
}
