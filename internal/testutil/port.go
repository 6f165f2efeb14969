package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/tokenstream/internal/ir"
)

// ErrInsufficientBalance is returned when an account cannot cover a transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrInjected is the default error for injected failures.
var ErrInjected = errors.New("injected transfer failure")

// Leg is one transfer the port carried out.
type Leg struct {
	Kind   string // "pull" or "push"
	Token  ir.Address
	From   ir.Address
	To     ir.Address
	Amount ir.Amount
}

// Port is an in-memory engine.TransferPort for tests.
//
// It keeps per-(token, account) balances, records every successful leg and
// can be told to fail upcoming calls. Transfers apply immediately; Port
// does not take part in journal transactions.
//
// Thread-safety: All methods are safe for concurrent use.
type Port struct {
	mu       sync.Mutex
	ledger   ir.Address
	balances map[ir.Address]map[ir.Address]ir.Amount
	legs     []Leg
	calls    int
	failAt   map[int]error
	failNext error
}

// NewPort creates a port whose Push debits the ledger account.
func NewPort(ledger ir.Address) *Port {
	return &Port{
		ledger:   ledger,
		balances: make(map[ir.Address]map[ir.Address]ir.Amount),
		failAt:   make(map[int]error),
	}
}

// Credit mints amount of token into account.
func (p *Port) Credit(token, account ir.Address, amount ir.Amount) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account(token)[account] += amount
}

// Balance returns account's holding of token.
func (p *Port) Balance(token, account ir.Address) ir.Amount {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[token][account]
}

// Legs returns the successful transfers in call order.
func (p *Port) Legs() []Leg {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Leg, len(p.legs))
	copy(out, p.legs)
	return out
}

// PushedTo sums every push of token to account.
func (p *Port) PushedTo(token, account ir.Address) ir.Amount {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total ir.Amount
	for _, l := range p.legs {
		if l.Kind == "push" && l.Token == token && l.To == account {
			total += l.Amount
		}
	}
	return total
}

// FailNext makes the next call fail with err (ErrInjected if nil).
func (p *Port) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	p.failNext = err
}

// FailCall makes the n-th call from now (1-based) fail with err.
func (p *Port) FailCall(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	p.failAt[p.calls+n] = err
}

// Pull implements engine.TransferPort.
func (p *Port) Pull(_ context.Context, token, from, to ir.Address, amount ir.Amount) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.injected(); err != nil {
		return err
	}
	return p.move("pull", token, from, to, amount)
}

// Push implements engine.TransferPort.
func (p *Port) Push(_ context.Context, token, to ir.Address, amount ir.Amount) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.injected(); err != nil {
		return err
	}
	return p.move("push", token, p.ledger, to, amount)
}

func (p *Port) injected() error {
	p.calls++
	if err := p.failNext; err != nil {
		p.failNext = nil
		return err
	}
	if err, ok := p.failAt[p.calls]; ok {
		delete(p.failAt, p.calls)
		return err
	}
	return nil
}

func (p *Port) move(kind string, token, from, to ir.Address, amount ir.Amount) error {
	if amount == 0 {
		return fmt.Errorf("%s: zero amount", kind)
	}
	acct := p.account(token)
	if acct[from] < amount {
		return fmt.Errorf("%s %d %s from %s: %w", kind, amount, token, from, ErrInsufficientBalance)
	}
	acct[from] -= amount
	acct[to] += amount
	p.legs = append(p.legs, Leg{Kind: kind, Token: token, From: from, To: to, Amount: amount})
	return nil
}

func (p *Port) account(token ir.Address) map[ir.Address]ir.Amount {
	acct, ok := p.balances[token]
	if !ok {
		acct = make(map[ir.Address]ir.Amount)
		p.balances[token] = acct
	}
	return acct
}
