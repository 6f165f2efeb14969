package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is an optional CUE config file.
	Config string
	// DB overrides the configured database path.
	DB string
	// Now pins the clock to a Unix time. Zero uses the host clock.
	Now int64
	// As names the caller of mutating commands.
	As string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the streamctl CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "streamctl",
		Short: "streamctl - token streaming ledger",
		Long: `Operate a token streaming ledger backed by SQLite.

A stream locks a sender's deposit and releases it to a recipient at a
constant rate between a start and a stop time. Streams can be withdrawn
from, paused, resumed and cancelled; delegates act through grants.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to CUE config file")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().Int64Var(&opts.Now, "now", 0, "pin the clock to this Unix time")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "address of the caller")

	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewCancelCommand(opts))
	cmd.AddCommand(NewPauseCommand(opts))
	cmd.AddCommand(NewResumeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGrantCommand(opts))
	cmd.AddCommand(NewRevokeCommand(opts))
	cmd.AddCommand(NewAuthorizedCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewVaultCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
