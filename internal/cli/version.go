package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tokenstream/internal/ir"
	"github.com/roach88/tokenstream/internal/store"
)

// VersionInfo is the output of version.
type VersionInfo struct {
	Engine string `json:"engine"`
	Events string `json:"events"`
	Schema int    `json:"schema"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("streamctl %s (event schema v%s, database schema %d)", v.Engine, v.Events, v.Schema)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "version",
		Short:         "Print version information",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return newFormatter(cmd, rootOpts).Success(VersionInfo{
				Engine: ir.EngineVersion,
				Events: ir.EventVersion,
				Schema: store.SchemaVersion,
			})
		},
	}
}
