package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/docsync/internal/application/syncer"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// syncOptions holds the flags of the sync command.
type syncOptions struct {
	to           string
	title        string
	folder       string
	notionPageID string
	createMD     bool
}

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync <direction> <source-id>",
		Short: "Sync one document in one direction",
		Long: `Sync a single document from its source system to a destination system.

Directions are written as <from>-to-<to>, where each side is one of
notion (a), feishu (b) or local (markdown, md):

  notion-to-feishu    notion-to-local
  feishu-to-notion    feishu-to-local
  local-to-notion     local-to-feishu

The source id is a Notion page id or URL, a Feishu document token or URL,
or a Markdown path relative to the configured markdown directory.

The destination is found through the mapping store. When no mapping exists
a new document is created, except in Notion where pages must already exist:
pass the page with --to.

Last write wins: the destination's content is replaced (Notion content is
appended) and nothing is merged.

--notion-page-id records a Notion page with a Feishu and local sync so all
three documents share one mapping. --create-md also exports a
notion-to-feishu sync to a local Markdown file and links it.`,
		Example: `  # Publish a Notion page to Feishu
  docsync sync notion-to-feishu 1f2e3d4c5b6a47988776655443322110

  # Push a local file into an existing Notion page
  docsync sync local-to-notion plan.md --to 1f2e3d4c5b6a47988776655443322110

  # Export a Feishu document to Markdown with a chosen title
  docsync sync feishu-to-local doxcnAbCdEf --title "Weekly plan"

  # Publish to Feishu and keep a Markdown copy
  docsync sync notion-to-feishu <page-id> --create-md

  # Link the Notion page a Markdown file came from
  docsync sync markdown-to-feishu plan.md --notion-page-id <page-id>

  # Machine-readable result
  docsync sync notion-to-feishu <page-id> -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.to, "to", "", "destination document id (overrides the mapping)")
	cmd.Flags().StringVar(&opts.title, "title", "", "title for a newly created destination document")
	cmd.Flags().StringVar(&opts.folder, "folder", "", "parent for a newly created document (Feishu folder token or local subdirectory)")
	cmd.Flags().StringVar(&opts.notionPageID, "notion-page-id", "", "Notion page to link with a feishu/local sync")
	cmd.Flags().BoolVar(&opts.createMD, "create-md", false, "with notion-to-feishu, also write a local Markdown file")

	return cmd
}

func runSync(cmd *cobra.Command, dir, sourceID string, opts syncOptions) error {
	direction, err := mapping.ParseDirection(dir)
	if err != nil {
		return fmt.Errorf("%w (expected one of %s)", err, directionList())
	}

	container := GetContainer()
	if container == nil {
		return fmt.Errorf("application not initialized")
	}

	if opts.createMD && direction != mapping.AToB {
		return fmt.Errorf("--create-md only applies to notion-to-feishu")
	}

	folder := opts.folder
	if folder == "" && direction.Destination() == mapping.SystemB {
		folder = container.Config().Feishu.FolderToken
	}

	var link []mapping.Key
	if opts.notionPageID != "" {
		link = append(link, mapping.KeyA(opts.notionPageID))
	}

	engine := container.Engine()
	results := []*syncer.Result{engine.Sync(cmd.Context(), syncer.Request{
		Direction:     direction,
		SourceID:      sourceID,
		DestinationID: opts.to,
		Title:         opts.title,
		Folder:        folder,
		Link:          link,
	})}

	if opts.createMD && results[0].OK() {
		results = append(results, engine.Sync(cmd.Context(), syncer.Request{
			Direction: mapping.AToLocal,
			SourceID:  sourceID,
			Title:     opts.title,
			Link:      []mapping.Key{mapping.KeyB(results[0].DestinationID)},
		}))
	}

	if err := GetFormatter().SyncResults(results...); err != nil {
		return err
	}
	for _, res := range results {
		if !res.OK() {
			return errIncomplete
		}
	}
	return nil
}

func directionList() string {
	names := make([]string, 0, len(mapping.Directions))
	for _, d := range mapping.Directions {
		names = append(names, fmt.Sprintf("%s-to-%s", d.Source(), d.Destination()))
	}
	return strings.Join(names, ", ")
}
