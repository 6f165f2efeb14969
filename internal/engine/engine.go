package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/roach88/tokenstream/internal/auth"
	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/ledger"
)

// DefaultLedgerAddress is the account that holds deposits when no other
// address is configured.
const DefaultLedgerAddress ir.Address = "tokenstream"

// Operation names used in logs and metrics.
const (
	OpCreate           = "create"
	OpCreateOnBehalf   = "create_on_behalf"
	OpWithdraw         = "withdraw"
	OpWithdrawOnBehalf = "withdraw_on_behalf"
	OpCancel           = "cancel"
	OpCancelOnBehalf   = "cancel_on_behalf"
	OpPause            = "pause"
	OpResume           = "resume"
	OpGrant            = "grant"
	OpRevoke           = "revoke"
)

// Engine settles token streams.
//
// Thread-safety: all methods are safe for concurrent use. Mutations of the
// same stream are serialized; different streams proceed in parallel.
type Engine struct {
	port    TransferPort
	journal Journal
	ledger  *ledger.Ledger
	grants  *auth.Registry
	clock   Clock
	ids     IDGenerator
	policy  Policy
	self    ir.Address
	log     *zap.Logger
	sinks   []Sink
	meters  metric.MeterProvider
	metrics *metrics

	// grantMu keeps registry updates in journal order.
	grantMu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal sets the unit-of-work boundary. Default: a MemoryJournal.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithClock sets the time source. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the event id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithMeterProvider sets the metric provider. Default: otel.GetMeterProvider().
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) {
		e.meters = mp
	}
}

// WithPolicy enables opt-in behavior changes.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithLedgerAddress sets the account that holds deposits.
//
// Default: DefaultLedgerAddress.
func WithLedgerAddress(a ir.Address) Option {
	return func(e *Engine) {
		e.self = a
	}
}

// WithSink registers an event observer. May be given more than once.
func WithSink(s Sink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, s)
	}
}

// New creates an Engine that moves tokens through port.
func New(port TransferPort, opts ...Option) (*Engine, error) {
	if port == nil {
		return nil, errors.New("engine: nil transfer port")
	}

	e := &Engine{
		port:   port,
		ledger: ledger.New(),
		grants: auth.NewRegistry(),
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
		self:   DefaultLedgerAddress,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.journal == nil {
		e.journal = NewMemoryJournal()
	}
	if e.self.IsZero() {
		return nil, errors.New("engine: ledger address is the null identifier")
	}
	if e.meters == nil {
		e.meters = otel.GetMeterProvider()
	}
	m, err := newMetrics(e.meters)
	if err != nil {
		return nil, fmt.Errorf("engine: metrics: %w", err)
	}
	e.metrics = m
	return e, nil
}

// LedgerAddress returns the account that holds deposits.
func (e *Engine) LedgerAddress() ir.Address {
	return e.self
}

// Snapshot is the persisted state an engine can be restored from.
type Snapshot struct {
	Streams []ir.Stream
	Grants  []ir.Grant
	LastID  ir.StreamID
}

// Restore replaces all streams and grants. Must not race with operations.
func (e *Engine) Restore(s Snapshot) error {
	if err := e.ledger.Restore(s.Streams, s.LastID); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	e.grants.Restore(s.Grants)
	e.log.Debug("engine restored",
		zap.Int("streams", len(s.Streams)),
		zap.Int("grants", len(s.Grants)),
		zap.Uint64("last_id", uint64(e.ledger.LastID())))
	return nil
}

// tx collects what one operation does inside a journal transaction.
type tx struct {
	e      *Engine
	w      Writer
	now    ir.Timestamp
	moved  ir.Amount
	events []*ir.Event
}

func (t *tx) pull(ctx context.Context, id ir.StreamID, token, from ir.Address, amount ir.Amount) error {
	if amount == 0 {
		return nil
	}
	if err := t.e.port.Pull(ctx, token, from, t.e.self, amount); err != nil {
		return &ir.Error{
			Code:     ir.CodeTransferFailed,
			Message:  fmt.Sprintf("pull %d %s from %s", amount, token, from),
			StreamID: id,
			Cause:    err,
		}
	}
	t.moved += amount
	return nil
}

func (t *tx) push(ctx context.Context, id ir.StreamID, token, to ir.Address, amount ir.Amount) error {
	if amount == 0 {
		return nil
	}
	if err := t.e.port.Push(ctx, token, to, amount); err != nil {
		return &ir.Error{
			Code:     ir.CodeTransferFailed,
			Message:  fmt.Sprintf("push %d %s to %s", amount, token, to),
			StreamID: id,
			Cause:    err,
		}
	}
	t.moved += amount
	return nil
}

func (t *tx) putStream(ctx context.Context, s ir.Stream) error {
	if err := t.w.PutStream(ctx, s); err != nil {
		return storageError(s.ID, "put stream", err)
	}
	return nil
}

func (t *tx) emit(ctx context.Context, ev ir.Event) error {
	ev.ID = t.e.ids.Generate()
	ev.At = t.now
	p := &ev
	if err := t.w.AppendEvent(ctx, p); err != nil {
		return storageError(ev.StreamID, "append event", err)
	}
	t.events = append(t.events, p)
	return nil
}

// atomically runs fn in one journal transaction. Errors that carry no
// domain code came from the journal and are reported as STORAGE_FAILED.
func (e *Engine) atomically(ctx context.Context, id ir.StreamID, now ir.Timestamp, fn func(ctx context.Context, t *tx) error) (*tx, error) {
	var t *tx
	err := e.journal.Atomically(ctx, func(ctx context.Context, w Writer) error {
		t = &tx{e: e, w: w, now: now}
		return fn(ctx, t)
	})
	if err != nil {
		if ir.CodeOf(err) == "" {
			err = storageError(id, "commit", err)
		}
		return nil, err
	}
	return t, nil
}

// mutate runs fn on a copy of stream id under the record lock, inside one
// journal transaction, and persists the result.
func (e *Engine) mutate(ctx context.Context, id ir.StreamID, fn func(ctx context.Context, s *ir.Stream, t *tx) error) (*tx, error) {
	var done *tx
	err := e.ledger.Update(id, func(s *ir.Stream) error {
		prev := *s
		now := unix(e.clock)
		t, err := e.atomically(ctx, id, now, func(ctx context.Context, t *tx) error {
			if err := fn(ctx, s, t); err != nil {
				return err
			}
			if err := ledger.CheckTransition(prev, *s); err != nil {
				return err
			}
			return t.putStream(ctx, *s)
		})
		done = t
		return err
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// finish publishes committed events, logs and records metrics.
func (e *Engine) finish(ctx context.Context, op string, id ir.StreamID, caller ir.Address, t *tx, err error) {
	if err != nil {
		e.metrics.record(ctx, op, err, 0)
		e.log.Warn("operation rejected",
			zap.String("op", op),
			zap.Uint64("stream_id", uint64(id)),
			zap.String("caller", string(caller)),
			zap.String("code", string(ir.CodeOf(err))),
			zap.Error(err))
		return
	}

	e.metrics.record(ctx, op, nil, t.moved)
	for _, ev := range t.events {
		e.log.Debug("operation committed",
			zap.String("op", op),
			zap.String("kind", string(ev.Kind)),
			zap.Int64("seq", ev.Seq),
			zap.Uint64("stream_id", uint64(ev.StreamID)),
			zap.String("caller", string(caller)),
			zap.Uint64("amount", ev.Amount),
			zap.Uint64("refund", ev.Refund))
		for _, s := range e.sinks {
			s.Publish(ctx, *ev)
		}
	}
}

func storageError(id ir.StreamID, what string, err error) error {
	return &ir.Error{Code: ir.CodeStorageFailed, Message: what, StreamID: id, Cause: err}
}

func unauthorized(id ir.StreamID, format string, args ...any) error {
	return ir.StreamError(ir.CodeUnauthorized, id, fmt.Sprintf(format, args...))
}
