package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/store"
)

// NewVaultCommand creates the vault command group.
func NewVaultCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Inspect and fund token balances",
		Long: `The vault holds every account's token balances, including the ledger's
own account, which holds the deposits of open streams.`,
	}
	cmd.AddCommand(newVaultCreditCommand(rootOpts))
	cmd.AddCommand(newVaultBalanceCommand(rootOpts))
	return cmd
}

// VaultOptions holds flags for the vault subcommands.
type VaultOptions struct {
	*RootOptions
	Token   string
	Account string
	Amount  uint64
}

type creditRequest struct {
	Token   string `validate:"required"`
	Account string `validate:"required"`
	Amount  uint64 `validate:"required"`
}

// BalanceList is the output of the vault subcommands.
type BalanceList struct {
	Balances []store.Balance `json:"balances"`
}

func (l BalanceList) String() string {
	if len(l.Balances) == 0 {
		return "No balances found."
	}
	lines := make([]string, 0, len(l.Balances))
	for _, b := range l.Balances {
		lines = append(lines, fmt.Sprintf("%-8s %-16s %d", b.Token, b.Account, b.Amount))
	}
	return strings.Join(lines, "\n")
}

func newVaultCreditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VaultOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "credit",
		Short: "Mint tokens into an account",
		Long: `Add --amount of --token to --account. Used to fund senders.

Example:
  streamctl vault credit --token TKN --account alice --amount 5000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := creditRequest{Token: opts.Token, Account: opts.Account, Amount: opts.Amount}
			if err := checkRequest(req); err != nil {
				return err
			}
			out := newFormatter(cmd, rootOpts)
			return withSession(rootOpts, func(ctx context.Context, s *session) error {
				token, account := ir.Address(req.Token), ir.Address(req.Account)
				if err := s.vault.Credit(ctx, token, account, req.Amount); err != nil {
					return WrapExitError(ExitCommandError, "failed to credit", err)
				}
				bal, err := s.vault.Balance(ctx, token, account)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read balance", err)
				}
				out.VerboseLog("credited %d %s to %s", req.Amount, token, account)
				return out.Success(BalanceList{Balances: []store.Balance{{Token: token, Account: account, Amount: bal}}})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "token identifier")
	cmd.Flags().StringVar(&opts.Account, "account", "", "account to fund")
	cmd.Flags().Uint64Var(&opts.Amount, "amount", 0, "quantity to mint")

	return cmd
}

func newVaultBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VaultOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show token balances",
		Long: `Show balances. With --account (requires --token) one holding is shown,
otherwise every non-zero holding, optionally of one token.

Examples:
  streamctl vault balance
  streamctl vault balance --token TKN --account bob`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Account != "" && opts.Token == "" {
				return NewExitError(ExitCommandError, "--account requires --token")
			}
			out := newFormatter(cmd, rootOpts)
			return withSession(rootOpts, func(ctx context.Context, s *session) error {
				token := ir.Address(opts.Token)
				if opts.Account != "" {
					account := ir.Address(opts.Account)
					bal, err := s.vault.Balance(ctx, token, account)
					if err != nil {
						return WrapExitError(ExitCommandError, "failed to read balance", err)
					}
					return out.Success(BalanceList{Balances: []store.Balance{{Token: token, Account: account, Amount: bal}}})
				}
				balances, err := s.vault.Balances(ctx, token)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read balances", err)
				}
				return out.Success(BalanceList{Balances: balances})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "token identifier")
	cmd.Flags().StringVar(&opts.Account, "account", "", "single account to show")

	return cmd
}
