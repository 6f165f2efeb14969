package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenstream/internal/engine"
	"github.com/roach88/tokenstream/internal/ir"
)

// StreamView combines the static and time-dependent views of a stream.
type StreamView struct {
	engine.BasicInfo
	Rate         ir.Amount    `json:"rate"`
	Carried      ir.Amount    `json:"carried"`
	Start        ir.Timestamp `json:"start"`
	Stop         ir.Timestamp `json:"stop"`
	At           ir.Timestamp `json:"at"`
	Withdrawable ir.Amount    `json:"withdrawable"`
	TimeLeft     int64        `json:"time_left"`
}

func (v StreamView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "stream %d (%s)\n", v.ID, v.Status)
	fmt.Fprintf(&b, "  sender:       %s\n", v.Sender)
	fmt.Fprintf(&b, "  recipient:    %s\n", v.Recipient)
	fmt.Fprintf(&b, "  token:        %s\n", v.Token)
	fmt.Fprintf(&b, "  deposit:      %d\n", v.Deposit)
	fmt.Fprintf(&b, "  remaining:    %d\n", v.Remaining)
	fmt.Fprintf(&b, "  rate:         %d/s\n", v.Rate)
	fmt.Fprintf(&b, "  window:       %d..%d\n", v.Start, v.Stop)
	fmt.Fprintf(&b, "  withdrawable: %d (at %d)\n", v.Withdrawable, v.At)
	fmt.Fprintf(&b, "  time left:    %ds", v.TimeLeft)
	return b.String()
}

func viewStream(e *engine.Engine, id ir.StreamID) (StreamView, error) {
	basic, err := e.BasicInfo(id)
	if err != nil {
		return StreamView{}, err
	}
	ti, err := e.TimeInfo(id)
	if err != nil {
		return StreamView{}, err
	}
	st, err := e.Stream(id)
	if err != nil {
		return StreamView{}, err
	}
	return StreamView{
		BasicInfo:    basic,
		Rate:         ti.Rate,
		Carried:      st.Carried,
		Start:        ti.Start,
		Stop:         ti.Stop,
		At:           ti.At,
		Withdrawable: ti.Withdrawable,
		TimeLeft:     ti.TimeLeft,
	}, nil
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <stream-id>",
		Short: "Show one stream",
		Long: `Show a stream's parties, balances, window and what is withdrawable now.

Examples:
  streamctl show 1
  streamctl show 1 --now 1700000150 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStreamID(args[0])
			if err != nil {
				return err
			}
			out := newFormatter(cmd, rootOpts)
			return withSession(rootOpts, func(ctx context.Context, s *session) error {
				v, err := viewStream(s.engine, id)
				if err != nil {
					return ledgerError(out, err)
				}
				return out.Success(v)
			})
		},
	}
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Status  string
	Party   string
	TokenID string
}

type listRequest struct {
	Status string `validate:"omitempty,oneof=active paused terminated"`
}

// StreamList is the output of list.
type StreamList struct {
	Streams []StreamView `json:"streams"`
}

func (l StreamList) String() string {
	if len(l.Streams) == 0 {
		return "No streams found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-6s %-10s %-12s %-12s %-8s %12s %12s %12s",
		"ID", "STATUS", "SENDER", "RECIPIENT", "TOKEN", "DEPOSIT", "REMAINING", "WITHDRAWABLE")
	for _, v := range l.Streams {
		fmt.Fprintf(&b, "\n%-6d %-10s %-12s %-12s %-8s %12d %12d %12d",
			v.ID, v.Status, v.Sender, v.Recipient, v.Token, v.Deposit, v.Remaining, v.Withdrawable)
	}
	return b.String()
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List streams",
		Long: `List streams in id order, optionally filtered.

Examples:
  streamctl list
  streamctl list --status active --party bob`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Status, "status", "", "filter by status (active|paused|terminated)")
	cmd.Flags().StringVar(&opts.Party, "party", "", "filter to streams where this address is sender or recipient")
	cmd.Flags().StringVar(&opts.TokenID, "token", "", "filter by token")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	if err := checkRequest(listRequest{Status: opts.Status}); err != nil {
		return err
	}

	out := newFormatter(cmd, opts.RootOptions)
	return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
		result := StreamList{Streams: []StreamView{}}
		for _, st := range s.engine.Streams() {
			if opts.Status != "" && st.Status().String() != opts.Status {
				continue
			}
			party := ir.Address(opts.Party)
			if opts.Party != "" && st.Sender != party && st.Recipient != party {
				continue
			}
			if opts.TokenID != "" && st.Token != ir.Address(opts.TokenID) {
				continue
			}
			v, err := viewStream(s.engine, st.ID)
			if err != nil {
				return ledgerError(out, err)
			}
			result.Streams = append(result.Streams, v)
		}
		out.VerboseLog("%d of %d streams matched", len(result.Streams), len(s.engine.Streams()))
		return out.Success(result)
	})
}
