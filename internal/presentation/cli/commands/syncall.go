package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/docsync/internal/application/syncer"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// NewSyncAllCmd creates the sync-all command.
func NewSyncAllCmd() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync every local Markdown file to Feishu",
		Long: `Sync every *.md file under the markdown directory, subdirectories
included, to Feishu.

Files are synced one at a time. A failed file is reported and the rest are
still synced; the command exits non-zero when any file did not complete.
Files already linked to a Feishu document update it, the others create a new
document in --folder or the configured folder.`,
		Example: `  docsync sync-all
  docsync sync-all --folder fldcnAbCdEf -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSyncAll(cmd, folder)
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "Feishu folder token for newly created documents")

	return cmd
}

func runSyncAll(cmd *cobra.Command, folder string) error {
	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}
	if _, err := container.Endpoints().GetRequired(mapping.SystemB); err != nil {
		return err
	}
	if folder == "" {
		folder = container.Config().Feishu.FolderToken
	}

	paths, err := container.LocalDocuments()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	results := make([]*syncer.Result, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			break
		}
		results = append(results, container.Engine().Sync(ctx, syncer.Request{
			Direction: mapping.LocalToB,
			SourceID:  path,
			Folder:    folder,
		}))
	}

	if err := GetFormatter().Batch(results, container.LocalDir()); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, res := range results {
		if !res.OK() {
			return errIncomplete
		}
	}
	return nil
}
