package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMappingsCmd creates the mappings command.
func NewMappingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mappings",
		Aliases: []string{"list-mappings", "ls"},
		Short:   "List every linked document",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container := GetContainer()
			if container == nil {
				return fmt.Errorf("application not initialized")
			}

			records, err := container.Engine().Mappings(cmd.Context())
			if err != nil {
				return err
			}
			return GetFormatter().Mappings(records)
		},
	}
}
