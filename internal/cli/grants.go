package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenstream/internal/ir"
)

// GrantOptions holds flags for grant and revoke.
type GrantOptions struct {
	*RootOptions
	Delegate string
	Action   string
}

type grantRequest struct {
	Grantor  string `validate:"required"`
	Delegate string `validate:"required"`
	Action   string `validate:"required"`
}

// GrantResult is the output of grant and revoke.
type GrantResult struct {
	Grantor  ir.Address `json:"grantor"`
	Delegate ir.Address `json:"delegate"`
	Action   ir.Action  `json:"action"`
	Allowed  bool       `json:"allowed"`
}

func (r GrantResult) String() string {
	if r.Allowed {
		return fmt.Sprintf("%s may now %s for %s", r.Delegate, r.Action, r.Grantor)
	}
	return fmt.Sprintf("%s may no longer %s for %s", r.Delegate, r.Action, r.Grantor)
}

// NewGrantCommand creates the grant command.
func NewGrantCommand(rootOpts *RootOptions) *cobra.Command {
	return newGrantCommand(rootOpts, true)
}

// NewRevokeCommand creates the revoke command.
func NewRevokeCommand(rootOpts *RootOptions) *cobra.Command {
	return newGrantCommand(rootOpts, false)
}

func newGrantCommand(rootOpts *RootOptions, allow bool) *cobra.Command {
	opts := &GrantOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "grant",
		Short: "Let a delegate act on your behalf",
		Long: `Record a grant letting --delegate perform --action for the caller.

Actions: create_on_behalf, withdraw_on_behalf, cancel_on_behalf.

Example:
  streamctl grant --as alice --delegate carol --action cancel_on_behalf`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGrant(opts, allow, cmd)
		},
	}
	if !allow {
		cmd.Use = "revoke"
		cmd.Short = "Withdraw a delegate's grant"
		cmd.Long = `Withdraw a grant. Revoking a grant that was never given is not an error.

Example:
  streamctl revoke --as alice --delegate carol --action cancel_on_behalf`
	}

	cmd.Flags().StringVar(&opts.Delegate, "delegate", "", "address being authorized")
	cmd.Flags().StringVar(&opts.Action, "action", "", "delegable action")

	return cmd
}

func runGrant(opts *GrantOptions, allow bool, cmd *cobra.Command) error {
	req := grantRequest{Grantor: opts.As, Delegate: opts.Delegate, Action: opts.Action}
	if err := checkRequest(req); err != nil {
		return err
	}

	out := newFormatter(cmd, opts.RootOptions)
	action, err := ir.ParseAction(req.Action)
	if err != nil {
		return ledgerError(out, err)
	}

	return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
		grantor, delegate := ir.Address(req.Grantor), ir.Address(req.Delegate)
		if allow {
			err = s.engine.Grant(ctx, grantor, delegate, action)
		} else {
			err = s.engine.Revoke(ctx, grantor, delegate, action)
		}
		if err != nil {
			return ledgerError(out, err)
		}
		return out.Success(GrantResult{Grantor: grantor, Delegate: delegate, Action: action, Allowed: allow})
	})
}

// AuthorizedOptions holds flags for the authorized command.
type AuthorizedOptions struct {
	*RootOptions
	Grantor  string
	Delegate string
	Action   string
}

// Authorization is the output of authorized for a single check.
type Authorization GrantResult

func (a Authorization) String() string {
	if a.Allowed {
		return fmt.Sprintf("%s is authorized to %s for %s", a.Delegate, a.Action, a.Grantor)
	}
	return fmt.Sprintf("%s is not authorized to %s for %s", a.Delegate, a.Action, a.Grantor)
}

// GrantList is the output of authorized when no action is given.
type GrantList struct {
	Grants []ir.Grant `json:"grants"`
}

func (l GrantList) String() string {
	if len(l.Grants) == 0 {
		return "No grants found."
	}
	lines := make([]string, 0, len(l.Grants))
	for _, g := range l.Grants {
		state := "allowed"
		if !g.Allowed {
			state = "revoked"
		}
		lines = append(lines, fmt.Sprintf("%s -> %s %s (%s)", g.Grantor, g.Delegate, g.Action, state))
	}
	return strings.Join(lines, "\n")
}

// NewAuthorizedCommand creates the authorized command.
func NewAuthorizedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuthorizedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "authorized",
		Short: "Check or list grants",
		Long: `With --grantor, --delegate and --action, report whether the delegate may
perform the action. Otherwise list recorded grants matching the given
addresses, including revoked ones.

Examples:
  streamctl authorized --grantor alice --delegate carol --action cancel_on_behalf
  streamctl authorized --grantor alice`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthorized(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Grantor, "grantor", "", "address that gave the grant")
	cmd.Flags().StringVar(&opts.Delegate, "delegate", "", "address that received the grant")
	cmd.Flags().StringVar(&opts.Action, "action", "", "delegable action")

	return cmd
}

func runAuthorized(opts *AuthorizedOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	if opts.Action != "" {
		req := grantRequest{Grantor: opts.Grantor, Delegate: opts.Delegate, Action: opts.Action}
		if err := checkRequest(req); err != nil {
			return err
		}
		action, err := ir.ParseAction(req.Action)
		if err != nil {
			return ledgerError(out, err)
		}
		return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
			grantor, delegate := ir.Address(req.Grantor), ir.Address(req.Delegate)
			return out.Success(Authorization{
				Grantor:  grantor,
				Delegate: delegate,
				Action:   action,
				Allowed:  s.engine.IsAuthorized(grantor, delegate, action),
			})
		})
	}

	return withSession(opts.RootOptions, func(ctx context.Context, s *session) error {
		result := GrantList{Grants: []ir.Grant{}}
		for _, g := range s.engine.Grants() {
			if opts.Grantor != "" && g.Grantor != ir.Address(opts.Grantor) {
				continue
			}
			if opts.Delegate != "" && g.Delegate != ir.Address(opts.Delegate) {
				continue
			}
			result.Grants = append(result.Grants, g)
		}
		return out.Success(result)
	})
}
