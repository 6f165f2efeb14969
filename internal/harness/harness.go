package harness

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/store"
	"github.com/roach88/tokenstream/internal/testutil"
)

// Harness is the scenario execution engine. It runs each scenario against
// a fresh store with a deterministic clock and event ids.
type Harness struct {
	store  *store.Store
	vault  *store.Vault
	engine *engine.Engine
	clock  *testutil.ManualClock
	epoch  int64
	logger *zap.Logger
}

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger *zap.Logger
}

// WithLogger routes engine logs to l. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(c *runConfig) {
		c.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open a fresh in-memory store and its vault
//  2. Fund the scenario's balances
//  3. Run each step at its time and check its expectation
//  4. Evaluate assertions and verify the audit chain
//
// The returned error is reserved for harness failures; scenario failures
// are reported in Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(st, scenario, cfg.logger)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	for i, f := range scenario.Balances {
		if err := h.vault.Credit(ctx, ir.Address(f.Token), ir.Address(f.Account), f.Amount); err != nil {
			return nil, fmt.Errorf("balances[%d]: %w", i, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.clock.Set(h.epoch + step.At)
		out, err := h.execute(ctx, step)
		out.Index = i
		out.Op = step.Op
		out.At = step.At
		if code := ir.CodeOf(err); code != "" {
			out.Code = string(code)
		} else if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Steps = append(result.Steps, out)

		for _, msg := range checkExpect(step, out) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Op, msg))
		}
		h.logger.Debug("scenario step",
			zap.String("scenario", scenario.Name),
			zap.Int("step", i),
			zap.String("op", step.Op),
			zap.String("code", out.Code))
	}

	trace, err := st.Events(ctx, store.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	result.Trace = trace

	if _, err := st.VerifyChain(ctx); err != nil {
		result.AddError(err.Error())
	}

	actx := &AssertionContext{
		Ctx:      ctx,
		Engine:   h.engine,
		Vault:    h.vault,
		Trace:    trace,
		Balances: scenario.Balances,
		Ledger:   h.engine.LedgerAddress(),
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(st *store.Store, s *Scenario, logger *zap.Logger) (*Harness, error) {
	epoch := s.Epoch
	if epoch == 0 {
		epoch = DefaultEpoch
	}
	ledger := ir.Address(s.Ledger)
	if s.Ledger == "" {
		ledger = engine.DefaultLedgerAddress
	}

	policy := engine.Policy{
		SweepDust:            s.Policy.SweepDust,
		RecipientResumeDelay: s.Policy.RecipientResumeDelay,
	}
	if s.Policy.Resume != "" {
		p, err := engine.ParseResumePolicy(s.Policy.Resume)
		if err != nil {
			return nil, err
		}
		policy.Resume = p
	}

	clock := testutil.NewManualClock(epoch)
	vault := st.Vault(ledger)
	eng, err := engine.New(vault,
		engine.WithJournal(st),
		engine.WithLedgerAddress(ledger),
		engine.WithClock(clock),
		engine.WithIDGenerator(testutil.NewSequentialIDs("evt")),
		engine.WithPolicy(policy),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	return &Harness{
		store:  st,
		vault:  vault,
		engine: eng,
		clock:  clock,
		epoch:  epoch,
		logger: logger,
	}, nil
}

// execute dispatches one step to the engine.
func (h *Harness) execute(ctx context.Context, step Step) (StepOutcome, error) {
	var out StepOutcome
	caller := ir.Address(step.Caller)
	id := ir.StreamID(step.Stream)

	switch step.Op {
	case engine.OpCreate, engine.OpCreateOnBehalf:
		p := engine.StreamParams{
			Recipient: ir.Address(step.Recipient),
			Token:     ir.Address(step.Token),
			Deposit:   step.Deposit,
			Start:     h.epoch + step.Start,
			Stop:      h.epoch + step.Stop,
		}
		var (
			created ir.StreamID
			err     error
		)
		if step.Op == engine.OpCreate {
			created, err = h.engine.Create(ctx, caller, p)
		} else {
			created, err = h.engine.CreateOnBehalf(ctx, caller, ir.Address(step.Sender), p)
		}
		out.Stream = uint64(created)
		if err == nil {
			out.Amount = step.Deposit
		}
		return out, err

	case engine.OpWithdraw, engine.OpWithdrawOnBehalf:
		withdraw := h.engine.Withdraw
		if step.Op == engine.OpWithdrawOnBehalf {
			withdraw = h.engine.WithdrawOnBehalf
		}
		w, err := withdraw(ctx, caller, id, step.Amount)
		out.Stream = step.Stream
		out.Amount, out.Refund, out.Terminated = w.Amount, w.Refund, w.Terminated
		return out, err

	case engine.OpCancel, engine.OpCancelOnBehalf:
		cancel := h.engine.Cancel
		if step.Op == engine.OpCancelOnBehalf {
			cancel = h.engine.CancelOnBehalf
		}
		s, err := cancel(ctx, caller, id)
		out.Stream = step.Stream
		out.Amount, out.Refund = s.ToRecipient, s.ToSender
		out.Terminated = err == nil
		return out, err

	case engine.OpPause:
		paid, err := h.engine.Pause(ctx, caller, id)
		out.Stream = step.Stream
		out.Amount = paid
		if err == nil {
			if s, getErr := h.engine.Stream(id); getErr == nil {
				out.Terminated = s.Status() == ir.StatusTerminated
			}
		}
		return out, err

	case engine.OpResume:
		out.Stream = step.Stream
		return out, h.engine.Resume(ctx, caller, id)

	case engine.OpGrant, engine.OpRevoke:
		// Unknown names become the invalid zero action so the engine
		// reports INVALID_ACTION.
		action, _ := ir.ParseAction(step.Action)
		if step.Op == engine.OpGrant {
			return out, h.engine.Grant(ctx, caller, ir.Address(step.Delegate), action)
		}
		return out, h.engine.Revoke(ctx, caller, ir.Address(step.Delegate), action)
	}
	return out, errors.New("unknown op " + step.Op)
}

// checkExpect compares a step outcome with its expectation. A step
// without expect must succeed.
func checkExpect(step Step, out StepOutcome) []string {
	var msgs []string
	exp := step.Expect
	if exp == nil || exp.Error == "" {
		if out.Code != "" {
			msgs = append(msgs, fmt.Sprintf("expected success, got %s", out.Code))
			return msgs
		}
	} else if out.Code != exp.Error {
		got := out.Code
		if got == "" {
			got = "success"
		}
		msgs = append(msgs, fmt.Sprintf("expected error %s, got %s", exp.Error, got))
		return msgs
	}
	if exp == nil {
		return nil
	}

	if exp.Stream != 0 && exp.Stream != out.Stream {
		msgs = append(msgs, fmt.Sprintf("expected stream %d, got %d", exp.Stream, out.Stream))
	}
	if exp.Amount != nil && *exp.Amount != out.Amount {
		msgs = append(msgs, fmt.Sprintf("expected amount %d, got %d", *exp.Amount, out.Amount))
	}
	if exp.Refund != nil && *exp.Refund != out.Refund {
		msgs = append(msgs, fmt.Sprintf("expected refund %d, got %d", *exp.Refund, out.Refund))
	}
	if exp.Terminated != nil && *exp.Terminated != out.Terminated {
		msgs = append(msgs, fmt.Sprintf("expected terminated=%t, got %t", *exp.Terminated, out.Terminated))
	}
	return msgs
}
