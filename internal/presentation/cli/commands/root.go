// Package commands implements the CLI commands for docsync.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/docsync/internal/application"
	"github.com/jbctechsolutions/docsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/docsync/internal/presentation/cli/output"
)

// Version information - set at build time via ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// errIncomplete is returned after a sync result has been printed but did not
// succeed. Execute exits non-zero without repeating the report.
var errIncomplete = errors.New("sync did not complete")

// GlobalFlags holds the global CLI flags.
type GlobalFlags struct {
	ConfigFile string
	Output     string
	Verbose    bool
}

// AppContext holds the application runtime context.
type AppContext struct {
	Config    *config.Config
	Formatter *output.Formatter
	Flags     *GlobalFlags
	Container *application.Container
}

var (
	globalFlags GlobalFlags
	appCtx      *AppContext
	appCtxMu    sync.RWMutex
)

// NewRootCmd creates the root command for the docsync CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docsync",
		Short: "Sync documents between Notion, Feishu and local Markdown",
		Long: `docsync keeps one logical document in step across a Notion page,
a Feishu cloud document and a local Markdown file.

Every sync reads the source, converts it through a shared block model and
writes the destination in bounded windows. A mapping store remembers which
documents belong together, so running the same sync again updates the
linked document instead of creating a new one.

Conflict policy: last write wins. The destination is overwritten with the
source's content (Notion pages are append-only and receive the content after
their existing blocks). Nothing is merged.

An interrupted write is reported as partial with the number of blocks
committed. Re-running the same command resumes from that point when the
source has not changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return initializeApp(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigFile, "config", "c", "", "config file path (default: ~/.docsync/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Output, "output", "o", "text", "output format: text, table, json")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(NewVersionCmd())
	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewSyncAllCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewMappingsCmd())

	return rootCmd
}

// newFormatter builds a formatter for the command's output stream.
func newFormatter(cmd *cobra.Command) (*output.Formatter, error) {
	format, err := output.ParseFormat(globalFlags.Output)
	if err != nil {
		return nil, err
	}

	w := cmd.OutOrStdout()
	color := format != output.FormatJSON && w == os.Stdout && output.IsColorSupported()
	return output.NewFormatter(
		output.WithWriter(w),
		output.WithFormat(format),
		output.WithColor(color),
	), nil
}

// initializeApp loads configuration and wires the application container.
func initializeApp(cmd *cobra.Command) error {
	formatter, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(globalFlags.ConfigFile)
	if err != nil {
		return err
	}

	container, err := application.NewContainer(cfg, globalFlags.Verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	appCtxMu.Lock()
	previous := appCtx
	appCtx = &AppContext{
		Config:    cfg,
		Formatter: formatter,
		Flags:     &globalFlags,
		Container: container,
	}
	appCtxMu.Unlock()

	if previous != nil && previous.Container != nil {
		_ = previous.Container.Close()
	}
	return nil
}

// loadConfig loads configuration from the specified file or default location.
func loadConfig(configPath string) (*config.Config, error) {
	loader, err := config.NewLoader("")
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load(configPath)
}

// GetAppContext returns the current application context, or nil before
// initialization.
func GetAppContext() *AppContext {
	appCtxMu.RLock()
	defer appCtxMu.RUnlock()
	return appCtx
}

// GetFormatter returns the output formatter.
// Creates a default formatter if app context is not initialized.
func GetFormatter() *output.Formatter {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Formatter
	}
	return output.NewFormatter()
}

// GetContainer returns the application container.
// Returns nil if the app hasn't been initialized.
func GetContainer() *application.Container {
	appCtxMu.RLock()
	ctx := appCtx
	appCtxMu.RUnlock()

	if ctx != nil {
		return ctx.Container
	}
	return nil
}

// Shutdown releases the container: flushes traces, closes the mapping store
// and the log file.
func Shutdown() error {
	appCtxMu.Lock()
	ctx := appCtx
	appCtx = nil
	appCtxMu.Unlock()

	if ctx == nil || ctx.Container == nil {
		return nil
	}
	return ctx.Container.Close()
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context, which
// stops a sync before its next window.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	formatter := GetFormatter()
	if shutdownErr := Shutdown(); shutdownErr != nil {
		_ = formatter.Warning("shutdown: %v", shutdownErr)
	}

	if err == nil {
		return
	}
	if !errors.Is(err, errIncomplete) {
		_ = formatter.Error("%s", err.Error())
	}
	if ctx.Err() != nil {
		os.Exit(130)
	}
	os.Exit(1)
}
