package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <system> <id>",
		Short: "Show the sync status of a document",
		Long: `Show which documents are linked to the given one, when and in which
direction it was last synced, and whether a write was interrupted and can be
resumed.

The system is notion (a), feishu (b) or local (markdown, md).`,
		Example: `  docsync status notion 1f2e3d4c5b6a47988776655443322110
  docsync status local plan.md -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, args[0], args[1])
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command, system, id string) error {
	sys, ok := mapping.ParseSystem(system)
	if !ok {
		return fmt.Errorf("unknown system %q (expected notion, feishu or local)", system)
	}

	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	report, err := container.Engine().Status(cmd.Context(), mapping.Key{System: sys, ID: id})
	if err != nil {
		return err
	}
	return GetFormatter().Status(report)
}
