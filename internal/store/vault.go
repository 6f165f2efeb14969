package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tokenstream/internal/ir"
)

// ErrInsufficientBalance is returned when an account cannot cover a debit.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Vault keeps token balances in the store and implements
// engine.TransferPort. Inside Store.Atomically it joins the caller's
// transaction, so transfers roll back with the rest of the operation.
type Vault struct {
	store  *Store
	ledger ir.Address
}

// Balance is one (token, account) holding.
type Balance struct {
	Token   ir.Address `json:"token"`
	Account ir.Address `json:"account"`
	Amount  ir.Amount  `json:"amount"`
}

// Vault returns a vault whose Push debits the ledger account.
func (s *Store) Vault(ledger ir.Address) *Vault {
	return &Vault{store: s, ledger: ledger}
}

// Pull implements engine.TransferPort.
func (v *Vault) Pull(ctx context.Context, token, from, to ir.Address, amount ir.Amount) error {
	return v.move(ctx, token, from, to, amount)
}

// Push implements engine.TransferPort.
func (v *Vault) Push(ctx context.Context, token, to ir.Address, amount ir.Amount) error {
	return v.move(ctx, token, v.ledger, to, amount)
}

// Credit mints amount of token into account. Used to fund accounts.
func (v *Vault) Credit(ctx context.Context, token, account ir.Address, amount ir.Amount) error {
	if token.IsZero() || account.IsZero() {
		return errors.New("credit: token and account are required")
	}
	return v.store.inTx(ctx, func(tx *sql.Tx) error {
		return credit(ctx, tx, token, account, amount)
	})
}

// Balance returns account's holding of token (0 if it never held any).
func (v *Vault) Balance(ctx context.Context, token, account ir.Address) (ir.Amount, error) {
	var amount int64
	err := v.store.db.QueryRowContext(ctx, `
		SELECT amount FROM balances WHERE token = ? AND account = ?
	`, string(token), string(account)).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	return uint64(amount), nil
}

// Balances lists every non-zero holding of token ordered by account.
// An empty token lists all tokens.
func (v *Vault) Balances(ctx context.Context, token ir.Address) ([]Balance, error) {
	query := `SELECT token, account, amount FROM balances WHERE amount > 0`
	var args []any
	if token != "" {
		query += ` AND token = ?`
		args = append(args, string(token))
	}
	query += ` ORDER BY token COLLATE BINARY ASC, account COLLATE BINARY ASC`

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	out := []Balance{}
	for rows.Next() {
		var (
			tok, acct string
			amount    int64
		)
		if err := rows.Scan(&tok, &acct, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, Balance{Token: ir.Address(tok), Account: ir.Address(acct), Amount: uint64(amount)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

func (v *Vault) move(ctx context.Context, token, from, to ir.Address, amount ir.Amount) error {
	if amount == 0 {
		return errors.New("transfer: zero amount")
	}
	return v.store.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE balances SET amount = amount - ?
			WHERE token = ? AND account = ? AND amount >= ?
		`, amount, string(token), string(from), amount)
		if err != nil {
			return fmt.Errorf("debit %s: %w", from, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("debit %s: %w", from, err)
		}
		if n != 1 {
			return fmt.Errorf("debit %d %s from %s: %w", amount, token, from, ErrInsufficientBalance)
		}
		return credit(ctx, tx, token, to, amount)
	})
}

func credit(ctx context.Context, tx *sql.Tx, token, account ir.Address, amount ir.Amount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balances (token, account, amount) VALUES (?, ?, ?)
		ON CONFLICT(token, account) DO UPDATE SET amount = amount + excluded.amount
	`, string(token), string(account), amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", account, err)
	}
	return nil
}
