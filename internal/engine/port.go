package engine

import (
	"context"

	"github.com/roach88/tokenstream/internal/ir"
)

// TransferPort moves token quantities between accounts.
//
// The engine never calls the port with a zero amount. Any returned error
// fails the whole operation and surfaces as TRANSFER_FAILED.
//
// A port that shares the journal's transaction (store.Vault reads it from
// ctx) makes multi-leg settlements all-or-nothing. A port that applies
// transfers immediately cannot undo an earlier leg when a later one fails.
type TransferPort interface {
	// Pull moves amount of token from an external account into to.
	Pull(ctx context.Context, token, from, to ir.Address, amount ir.Amount) error

	// Push pays amount of token out of the ledger account to to.
	Push(ctx context.Context, token, to ir.Address, amount ir.Amount) error
}
