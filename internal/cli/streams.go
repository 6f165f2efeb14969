package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Sender    string
	Recipient string
	Token     string
	Deposit   uint64
	Start     int64
	Stop      int64
	OnBehalf  bool
}

type createRequest struct {
	Caller    string `validate:"required"`
	Sender    string `validate:"required"`
	Recipient string `validate:"required"`
	Token     string `validate:"required"`
	Deposit   uint64 `validate:"required"`
	Start     int64  `validate:"required"`
	Stop      int64  `validate:"required"`
}

// CreateResult is the output of create.
type CreateResult struct {
	StreamID  ir.StreamID  `json:"stream_id"`
	Sender    ir.Address   `json:"sender"`
	Recipient ir.Address   `json:"recipient"`
	Token     ir.Address   `json:"token"`
	Deposit   ir.Amount    `json:"deposit"`
	Rate      ir.Amount    `json:"rate"`
	Start     ir.Timestamp `json:"start"`
	Stop      ir.Timestamp `json:"stop"`
}

func (r CreateResult) String() string {
	return fmt.Sprintf("created stream %d: %s -> %s, %d %s at %d/s from %d to %d",
		r.StreamID, r.Sender, r.Recipient, r.Deposit, r.Token, r.Rate, r.Start, r.Stop)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a stream",
		Long: `Open a stream, pulling the deposit from the sender's vault balance.

The caller (--as) is the sender unless --on-behalf is given, in which case
--sender names the funding party and the caller needs its
create_on_behalf grant.

Examples:
  streamctl create --as alice --recipient bob --token TKN --deposit 1000 --start 1700000100 --stop 1700000200
  streamctl create --as carol --on-behalf --sender alice --recipient bob --token TKN --deposit 1000 --start 1700000100 --stop 1700000200`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "", "funding party (with --on-behalf)")
	cmd.Flags().StringVar(&opts.Recipient, "recipient", "", "receiving party")
	cmd.Flags().StringVar(&opts.Token, "token", "", "token identifier")
	cmd.Flags().Uint64Var(&opts.Deposit, "deposit", 0, "quantity committed to the stream")
	cmd.Flags().Int64Var(&opts.Start, "start", 0, "Unix time accrual begins")
	cmd.Flags().Int64Var(&opts.Stop, "stop", 0, "Unix time accrual ends")
	cmd.Flags().BoolVar(&opts.OnBehalf, "on-behalf", false, "act as a delegate of --sender")

	return cmd
}

func runCreate(opts *CreateOptions, cmd *cobra.Command) error {
	sender := opts.As
	if opts.OnBehalf {
		sender = opts.Sender
	} else if opts.Sender != "" && opts.Sender != opts.As {
		return NewExitError(ExitCommandError, "--sender differs from --as; use --on-behalf")
	}
	req := createRequest{
		Caller:    opts.As,
		Sender:    sender,
		Recipient: opts.Recipient,
		Token:     opts.Token,
		Deposit:   opts.Deposit,
		Start:     opts.Start,
		Stop:      opts.Stop,
	}
	if err := checkRequest(req); err != nil {
		return err
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
		p := engine.StreamParams{
			Recipient: ir.Address(req.Recipient),
			Token:     ir.Address(req.Token),
			Deposit:   req.Deposit,
			Start:     req.Start,
			Stop:      req.Stop,
		}

		var id ir.StreamID
		var err error
		if opts.OnBehalf {
			id, err = s.engine.CreateOnBehalf(ctx, ir.Address(req.Caller), ir.Address(req.Sender), p)
		} else {
			id, err = s.engine.Create(ctx, ir.Address(req.Sender), p)
		}
		if err != nil {
			return ledgerError(out, err)
		}

		st, err := s.engine.Stream(id)
		if err != nil {
			return ledgerError(out, err)
		}
		start, stop := st.Window()
		return out.Success(CreateResult{
			StreamID:  id,
			Sender:    st.Sender,
			Recipient: st.Recipient,
			Token:     st.Token,
			Deposit:   st.Deposit,
			Rate:      st.Rate,
			Start:     start,
			Stop:      stop,
		})
	})
}

// WithdrawOptions holds flags for the withdraw command.
type WithdrawOptions struct {
	*RootOptions
	Amount   uint64
	OnBehalf bool
}

type callerRequest struct {
	Caller string `validate:"required"`
}

// WithdrawResult is the output of withdraw.
type WithdrawResult struct {
	StreamID   ir.StreamID `json:"stream_id"`
	Amount     ir.Amount   `json:"amount"`
	Refund     ir.Amount   `json:"refund,omitempty"`
	Terminated bool        `json:"terminated"`
}

func (r WithdrawResult) String() string {
	msg := fmt.Sprintf("withdrew %d from stream %d", r.Amount, r.StreamID)
	if r.Refund > 0 {
		msg += fmt.Sprintf(", refunded %d to sender", r.Refund)
	}
	if r.Terminated {
		msg += " (stream terminated)"
	}
	return msg
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WithdrawOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "withdraw <stream-id>",
		Short: "Withdraw vested value to the recipient",
		Long: `Withdraw vested value from a stream to its recipient.

Without --amount everything currently withdrawable is paid out. The caller
must be the recipient, or hold its withdraw_on_behalf grant with --on-behalf.

Examples:
  streamctl withdraw 1 --as bob
  streamctl withdraw 1 --as bob --amount 400
  streamctl withdraw 1 --as carol --on-behalf`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithdraw(opts, args[0], cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Amount, "amount", 0, "quantity to withdraw (0 = all available)")
	cmd.Flags().BoolVar(&opts.OnBehalf, "on-behalf", false, "act as a delegate of the recipient")

	return cmd
}

func runWithdraw(opts *WithdrawOptions, arg string, cmd *cobra.Command) error {
	id, err := parseStreamID(arg)
	if err != nil {
		return err
	}
	if err := checkRequest(callerRequest{Caller: opts.As}); err != nil {
		return err
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
		caller := ir.Address(opts.As)
		var w engine.Withdrawal
		if opts.OnBehalf {
			w, err = s.engine.WithdrawOnBehalf(ctx, caller, id, opts.Amount)
		} else {
			w, err = s.engine.Withdraw(ctx, caller, id, opts.Amount)
		}
		if err != nil {
			return ledgerError(out, err)
		}
		return out.Success(WithdrawResult{
			StreamID:   id,
			Amount:     w.Amount,
			Refund:     w.Refund,
			Terminated: w.Terminated,
		})
	})
}

// CancelOptions holds flags for the cancel command.
type CancelOptions struct {
	*RootOptions
	OnBehalf bool
}

// CancelResult is the output of cancel.
type CancelResult struct {
	StreamID    ir.StreamID `json:"stream_id"`
	ToRecipient ir.Amount   `json:"to_recipient"`
	ToSender    ir.Amount   `json:"to_sender"`
}

func (r CancelResult) String() string {
	return fmt.Sprintf("cancelled stream %d: %d to recipient, %d to sender",
		r.StreamID, r.ToRecipient, r.ToSender)
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CancelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cancel <stream-id>",
		Short: "Terminate a stream and settle both parties",
		Long: `Terminate a stream. Vested value goes to the recipient and the rest
back to the sender.

The caller must be the sender or the recipient, or with --on-behalf hold
the sender's cancel_on_behalf grant.

Examples:
  streamctl cancel 1 --as alice
  streamctl cancel 1 --as carol --on-behalf`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCancel(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.OnBehalf, "on-behalf", false, "act as a delegate of the sender")

	return cmd
}

func runCancel(opts *CancelOptions, arg string, cmd *cobra.Command) error {
	id, err := parseStreamID(arg)
	if err != nil {
		return err
	}
	if err := checkRequest(callerRequest{Caller: opts.As}); err != nil {
		return err
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
		caller := ir.Address(opts.As)
		var st engine.Settlement
		if opts.OnBehalf {
			st, err = s.engine.CancelOnBehalf(ctx, caller, id)
		} else {
			st, err = s.engine.Cancel(ctx, caller, id)
		}
		if err != nil {
			return ledgerError(out, err)
		}
		return out.Success(CancelResult{StreamID: id, ToRecipient: st.ToRecipient, ToSender: st.ToSender})
	})
}

// PauseResult is the output of pause.
type PauseResult struct {
	StreamID ir.StreamID `json:"stream_id"`
	Paid     ir.Amount   `json:"paid"`
	Status   string      `json:"status"`
}

func (r PauseResult) String() string {
	return fmt.Sprintf("paused stream %d: paid %d to recipient, now %s", r.StreamID, r.Paid, r.Status)
}

// NewPauseCommand creates the pause command.
func NewPauseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <stream-id>",
		Short: "Pause an active stream",
		Long: `Pause an active stream. Value vested so far is paid to the recipient
and the unelapsed time is kept for a later resume. The caller must be the
sender or the recipient. A pause that pays out everything terminates the
stream instead.

Example:
  streamctl pause 1 --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStreamID(args[0])
			if err != nil {
				return err
			}
			if err := checkRequest(callerRequest{Caller: rootOpts.As}); err != nil {
				return err
			}
			out := newFormatter(cmd, rootOpts)
			return withSession(rootOpts, func(ctx context.Context, s *session) error {
				paid, err := s.engine.Pause(ctx, ir.Address(rootOpts.As), id)
				if err != nil {
					return ledgerError(out, err)
				}
				st, err := s.engine.Stream(id)
				if err != nil {
					return ledgerError(out, err)
				}
				return out.Success(PauseResult{StreamID: id, Paid: paid, Status: st.Status().String()})
			})
		},
	}
}

// ResumeResult is the output of resume.
type ResumeResult struct {
	StreamID ir.StreamID  `json:"stream_id"`
	Start    ir.Timestamp `json:"start"`
	Stop     ir.Timestamp `json:"stop"`
}

func (r ResumeResult) String() string {
	return fmt.Sprintf("resumed stream %d: accruing from %d to %d", r.StreamID, r.Start, r.Stop)
}

// NewResumeCommand creates the resume command.
func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <stream-id>",
		Short: "Resume a paused stream",
		Long: `Resume a paused stream with a new window of the remaining duration
starting now. Who may resume is set by the configured resume policy.

Example:
  streamctl resume 1 --as alice`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStreamID(args[0])
			if err != nil {
				return err
			}
			if err := checkRequest(callerRequest{Caller: rootOpts.As}); err != nil {
				return err
			}
			out := newFormatter(cmd, rootOpts)
			return withSession(rootOpts, func(ctx context.Context, s *session) error {
				if err := s.engine.Resume(ctx, ir.Address(rootOpts.As), id); err != nil {
					return ledgerError(out, err)
				}
				st, err := s.engine.Stream(id)
				if err != nil {
					return ledgerError(out, err)
				}
				start, stop := st.Window()
				return out.Success(ResumeResult{StreamID: id, Start: start, Stop: stop})
			})
		},
	}
}
