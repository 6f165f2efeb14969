package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Stream uint64
	Kind   string
	After  int64
	Limit  int
}

type eventsRequest struct {
	Kind  string `validate:"omitempty,oneof=stream.created stream.withdrawn stream.paused stream.resumed stream.cancelled delegate.authorized delegate.revoked"`
	After int64  `validate:"gte=0"`
	Limit int    `validate:"gte=0"`
}

// EventLog is the output of events.
type EventLog struct {
	Events []store.LoggedEvent `json:"events"`
}

func (l EventLog) String() string {
	if len(l.Events) == 0 {
		return "No events found."
	}
	lines := make([]string, 0, len(l.Events))
	for _, e := range l.Events {
		lines = append(lines, formatEvent(e.Event))
	}
	return strings.Join(lines, "\n")
}

// formatEvent renders one event as "seq at kind key=value ...", keys in a
// fixed order.
func formatEvent(e ir.Event) string {
	fields := e.Fields()
	var b strings.Builder
	fmt.Fprintf(&b, "%6d %d %-20s", e.Seq, e.At, e.Kind)
	for _, k := range []string{
		"stream_id", "caller", "principal", "sender", "recipient", "delegate",
		"token", "action", "amount", "refund", "start", "stop", "rate", "time_left", "terminated",
	} {
		if v, ok := fields[k]; ok {
			fmt.Fprintf(&b, " %s=%v", k, v)
		}
	}
	return b.String()
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print the audit log",
		Long: `Print committed ledger events in sequence order.

Examples:
  streamctl events
  streamctl events --stream 1
  streamctl events --kind stream.withdrawn --after 10 --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().Uint64Var(&opts.Stream, "stream", 0, "only events of this stream")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only events of this kind")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only events after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 = all)")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	req := eventsRequest{Kind: opts.Kind, After: opts.After, Limit: opts.Limit}
	if err := checkRequest(req); err != nil {
		return err
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
		events, err := s.store.Events(ctx, store.EventFilter{
			StreamID: ir.StreamID(opts.Stream),
			Kind:     ir.EventKind(req.Kind),
			AfterSeq: req.After,
			Limit:    req.Limit,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
		if events == nil {
			events = []store.LoggedEvent{}
		}
		return out.Success(EventLog{Events: events})
	})
}

// VerifyResult is the output of verify.
type VerifyResult struct {
	Verified int   `json:"verified"`
	LastSeq  int64 `json:"last_seq"`
}

func (r VerifyResult) String() string {
	return fmt.Sprintf("✓ audit chain intact: %d events verified", r.Verified)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify the audit log hash chain",
		Long: `Recompute every event hash and check sequence continuity.

Exit codes:
  0 - Chain intact
  1 - Chain broken (the first bad seq is reported)
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, rootOpts)
			return withSession(rootOpts, func(ctx context.Context, s *session) error {
				n, err := s.store.VerifyChain(ctx)
				var chainErr *store.ChainError
				if errors.As(err, &chainErr) {
					if err := out.Error("CHAIN_BROKEN", chainErr.Error(), map[string]any{"seq": chainErr.Seq, "verified": n}); err != nil {
						return err
					}
					return NewExitError(ExitFailure, "audit chain broken")
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to verify chain", err)
				}
				last, err := s.store.LastSeq(ctx)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read last seq", err)
				}
				return out.Success(VerifyResult{Verified: n, LastSeq: last})
			})
		},
	}
}
