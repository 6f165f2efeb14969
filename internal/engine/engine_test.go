package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/testutil"
)

const (
	vault ir.Address = "vault"
	token ir.Address = "TKN"
	alice ir.Address = "alice"
	bob   ir.Address = "bob"
	carol ir.Address = "carol"

	// T is the start of every test stream; fixtures begin at T-10.
	T int64 = 1_700_000_000

	funds ir.Amount = 1_000_000
)

type fixture struct {
	e       *Engine
	port    *testutil.Port
	clock   *testutil.ManualClock
	journal *MemoryJournal

	mu     sync.Mutex
	events []ir.Event
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		port:    testutil.NewPort(vault),
		clock:   testutil.NewManualClock(T - 10),
		journal: NewMemoryJournal(),
	}
	f.port.Credit(token, alice, funds)

	base := []Option{
		WithClock(f.clock),
		WithJournal(f.journal),
		WithLedgerAddress(vault),
		WithIDGenerator(testutil.NewSequentialIDs("")),
		WithLogger(zaptest.NewLogger(t)),
		WithSink(SinkFunc(func(_ context.Context, e ir.Event) {
			f.mu.Lock()
			f.events = append(f.events, e)
			f.mu.Unlock()
		})),
	}
	e, err := New(f.port, append(base, opts...)...)
	require.NoError(t, err)
	f.e = e
	return f
}

// open creates alice -> bob over [T, T+duration).
func (f *fixture) open(t *testing.T, deposit ir.Amount, duration int64) ir.StreamID {
	t.Helper()
	id, err := f.e.Create(context.Background(), alice, StreamParams{
		Recipient: bob,
		Token:     token,
		Deposit:   deposit,
		Start:     T,
		Stop:      T + duration,
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) at(offset int64) {
	f.clock.Set(T + offset)
}

func (f *fixture) stream(t *testing.T, id ir.StreamID) ir.Stream {
	t.Helper()
	s, err := f.e.Stream(id)
	require.NoError(t, err)
	return s
}

func assertCode(t *testing.T, code ir.Code, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, ir.CodeOf(err), "got %v", err)
}

func TestNew_Defaults(t *testing.T) {
	e, err := New(testutil.NewPort(DefaultLedgerAddress))
	require.NoError(t, err)

	assert.Equal(t, DefaultLedgerAddress, e.LedgerAddress())
	assert.IsType(t, SystemClock{}, e.clock)
	assert.IsType(t, UUIDv7Generator{}, e.ids)
	assert.IsType(t, &MemoryJournal{}, e.journal)
	assert.Equal(t, Policy{}, e.policy)
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(testutil.NewPort(vault), WithLedgerAddress(" "))
	assert.Error(t, err)
}

func TestCreate_StoresActiveStream(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, 1000, 100)

	assert.Equal(t, ir.StreamID(1), id)
	s := f.stream(t, id)
	assert.Equal(t, ir.Amount(10), s.Rate)
	assert.Equal(t, ir.Amount(1000), s.Remaining)
	assert.Equal(t, ir.Active{Start: T, Stop: T + 100}, s.State)

	assert.Equal(t, funds-1000, f.port.Balance(token, alice))
	assert.Equal(t, ir.Amount(1000), f.port.Balance(token, vault))

	require.Len(t, f.events, 1)
	ev := f.events[0]
	assert.Equal(t, ir.EventStreamCreated, ev.Kind)
	assert.Equal(t, "evt-000001", ev.ID)
	assert.Equal(t, int64(1), ev.Seq)
	assert.Equal(t, T-10, ev.At)
	assert.Equal(t, ir.Amount(1000), ev.Amount)
	assert.Equal(t, ir.Amount(10), ev.Rate)
	assert.Empty(t, ev.Principal)
}

func TestCreate_IDsIncrease(t *testing.T) {
	f := newFixture(t)
	for want := ir.StreamID(1); want <= 3; want++ {
		assert.Equal(t, want, f.open(t, 100, 10))
	}
}

func TestCreate_RateIsFloorAndAtLeastOne(t *testing.T) {
	f := newFixture(t)
	for _, tc := range []struct {
		deposit  ir.Amount
		duration int64
		rate     ir.Amount
	}{
		{1000, 100, 10},
		{1003, 100, 10},
		{100, 100, 1},
		{199, 100, 1},
		{7, 3, 2},
	} {
		id := f.open(t, tc.deposit, tc.duration)
		s := f.stream(t, id)
		assert.Equal(t, tc.rate, s.Rate, "deposit=%d duration=%d", tc.deposit, tc.duration)
		assert.GreaterOrEqual(t, s.Rate, ir.Amount(1))
	}
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	base := StreamParams{Recipient: bob, Token: token, Deposit: 1000, Start: T, Stop: T + 100}
	for _, tc := range []struct {
		name   string
		sender ir.Address
		mutate func(p *StreamParams)
		code   ir.Code
	}{
		{"recipient is sender", alice, func(p *StreamParams) { p.Recipient = alice }, ir.CodeInvalidParty},
		{"recipient is ledger", alice, func(p *StreamParams) { p.Recipient = vault }, ir.CodeInvalidParty},
		{"zero recipient", alice, func(p *StreamParams) { p.Recipient = "" }, ir.CodeInvalidParty},
		{"zero sender", "", func(p *StreamParams) {}, ir.CodeInvalidParty},
		{"start in past", alice, func(p *StreamParams) { p.Start = T - 11 }, ir.CodeInvalidWindow},
		{"empty window", alice, func(p *StreamParams) { p.Stop = p.Start }, ir.CodeInvalidWindow},
		{"deposit below duration", alice, func(p *StreamParams) { p.Deposit = 99 }, ir.CodeInvalidWindow},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			_, err := f.e.Create(ctx, tc.sender, p)
			assertCode(t, tc.code, err)
		})
	}

	assert.Empty(t, f.e.Streams())
	assert.Equal(t, funds, f.port.Balance(token, alice))
}

func TestCreate_TransferFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.port.FailNext(nil)

	_, err := f.e.Create(context.Background(), alice, StreamParams{
		Recipient: bob, Token: token, Deposit: 1000, Start: T, Stop: T + 100,
	})
	assertCode(t, ir.CodeTransferFailed, err)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	assert.Empty(t, f.e.Streams())
	assert.Empty(t, f.journal.Events())
	assert.Empty(t, f.events)
	assert.Equal(t, ir.StreamID(1), f.open(t, 1000, 100), "failed create does not burn an id")
}

func TestCreate_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	_, err := f.e.Create(context.Background(), alice, StreamParams{
		Recipient: bob, Token: token, Deposit: funds + 1, Start: T, Stop: T + 100,
	})
	assertCode(t, ir.CodeTransferFailed, err)
	assert.ErrorIs(t, err, testutil.ErrInsufficientBalance)
}

func TestCreateOnBehalf_GrantRevokeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := StreamParams{Recipient: bob, Token: token, Deposit: 1000, Start: T, Stop: T + 100}

	_, err := f.e.CreateOnBehalf(ctx, carol, alice, p)
	assertCode(t, ir.CodeUnauthorized, err)

	require.NoError(t, f.e.Grant(ctx, alice, carol, ir.CreateOnBehalf))
	id, err := f.e.CreateOnBehalf(ctx, carol, alice, p)
	require.NoError(t, err)

	s := f.stream(t, id)
	assert.Equal(t, alice, s.Sender, "delegate creates with the principal's funds")
	assert.Equal(t, funds-1000, f.port.Balance(token, alice))

	created := f.events[len(f.events)-1]
	assert.Equal(t, carol, created.Caller)
	assert.Equal(t, alice, created.Principal)

	require.NoError(t, f.e.Revoke(ctx, alice, carol, ir.CreateOnBehalf))
	_, err = f.e.CreateOnBehalf(ctx, carol, alice, p)
	assertCode(t, ir.CodeUnauthorized, err)
}

func TestCreateOnBehalf_GrantIsPerAction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.e.Grant(ctx, alice, carol, ir.CancelOnBehalf))
	require.NoError(t, f.e.Grant(ctx, bob, carol, ir.CreateOnBehalf))

	_, err := f.e.CreateOnBehalf(ctx, carol, alice, StreamParams{
		Recipient: bob, Token: token, Deposit: 1000, Start: T, Stop: T + 100,
	})
	assertCode(t, ir.CodeUnauthorized, err)
}

func TestCreateOnBehalf_ValidatesBeforeAuthorizing(t *testing.T) {
	f := newFixture(t)
	_, err := f.e.CreateOnBehalf(context.Background(), carol, alice, StreamParams{
		Recipient: bob, Token: token, Deposit: 1000, Start: T, Stop: T,
	})
	assertCode(t, ir.CodeInvalidWindow, err)
}

func TestGrant_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assertCode(t, ir.CodeInvalidDelegate, f.e.Grant(ctx, alice, "", ir.CreateOnBehalf))
	assertCode(t, ir.CodeInvalidAction, f.e.Grant(ctx, alice, carol, ir.Action(9)))
	assertCode(t, ir.CodeInvalidAction, f.e.Revoke(ctx, alice, carol, ir.Action(0)))
	assert.Empty(t, f.journal.Events())
}

func TestGrant_IdempotentAndAudited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.e.Grant(ctx, alice, carol, ir.WithdrawOnBehalf))
	require.NoError(t, f.e.Grant(ctx, alice, carol, ir.WithdrawOnBehalf))
	assert.True(t, f.e.IsAuthorized(alice, carol, ir.WithdrawOnBehalf))
	assert.False(t, f.e.IsAuthorized(carol, alice, ir.WithdrawOnBehalf), "grants are directional")

	require.NoError(t, f.e.Revoke(ctx, alice, bob, ir.CancelOnBehalf), "revoking nothing is a no-op")
	require.NoError(t, f.e.Revoke(ctx, alice, carol, ir.WithdrawOnBehalf))
	assert.False(t, f.e.IsAuthorized(alice, carol, ir.WithdrawOnBehalf))

	kinds := make([]ir.EventKind, 0, len(f.events))
	for _, ev := range f.events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []ir.EventKind{
		ir.EventDelegateAuthorized,
		ir.EventDelegateAuthorized,
		ir.EventDelegateRevoked,
		ir.EventDelegateRevoked,
	}, kinds)
	assert.Equal(t, ir.WithdrawOnBehalf, f.events[0].Action)
	assert.Equal(t, carol, f.events[0].Delegate)
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	id := f.open(t, 1000, 100)
	f.at(40)

	basic, err := f.e.BasicInfo(id)
	require.NoError(t, err)
	assert.Equal(t, BasicInfo{
		ID: id, Sender: alice, Recipient: bob, Token: token,
		Deposit: 1000, Remaining: 1000, Status: "active",
	}, basic)

	info, err := f.e.TimeInfo(id)
	require.NoError(t, err)
	assert.Equal(t, TimeInfo{
		ID: id, At: T + 40, Start: T, Stop: T + 100, Rate: 10,
		Withdrawable: 400, TimeLeft: 60, Status: "active",
	}, info)

	_, err = f.e.BasicInfo(99)
	assertCode(t, ir.CodeNotFound, err)
	_, err = f.e.TimeInfo(99)
	assertCode(t, ir.CodeNotFound, err)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	s := ir.Stream{
		ID: 4, Sender: alice, Recipient: bob, Token: token,
		Deposit: 1000, Rate: 10, Remaining: 600,
		State: ir.Active{Start: T, Stop: T + 100},
	}
	err := f.e.Restore(Snapshot{
		Streams: []ir.Stream{s},
		Grants:  []ir.Grant{{Grantor: bob, Delegate: carol, Action: ir.WithdrawOnBehalf, Allowed: true}},
		LastID:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, s, f.stream(t, 4))
	assert.True(t, f.e.IsAuthorized(bob, carol, ir.WithdrawOnBehalf))
	assert.Equal(t, ir.StreamID(6), f.open(t, 100, 10))

	assert.Error(t, f.e.Restore(Snapshot{Streams: []ir.Stream{s, s}}))
}

type failingJournal struct {
	err error
}

func (j failingJournal) Atomically(ctx context.Context, fn func(ctx context.Context, w Writer) error) error {
	if err := fn(ctx, &memoryWriter{}); err != nil {
		return err
	}
	return j.err
}

func TestJournalFailure_IsStorageFailed(t *testing.T) {
	commitErr := errors.New("disk full")
	f := newFixture(t, WithJournal(failingJournal{err: commitErr}))

	_, err := f.e.Create(context.Background(), alice, StreamParams{
		Recipient: bob, Token: token, Deposit: 1000, Start: T, Stop: T + 100,
	})
	assertCode(t, ir.CodeStorageFailed, err)
	assert.ErrorIs(t, err, commitErr)
	assert.Empty(t, f.e.Streams())
	assert.Empty(t, f.events)
}
