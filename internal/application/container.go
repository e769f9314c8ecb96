// Package application provides application-level services and dependency injection.
package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/jbctechsolutions/docsync/internal/adapters/endpoint"
	"github.com/jbctechsolutions/docsync/internal/adapters/feishu"
	"github.com/jbctechsolutions/docsync/internal/adapters/localfs"
	"github.com/jbctechsolutions/docsync/internal/adapters/mapping/jsonfile"
	"github.com/jbctechsolutions/docsync/internal/adapters/mapping/sqlite"
	"github.com/jbctechsolutions/docsync/internal/adapters/notion"
	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/application/syncer"
	"github.com/jbctechsolutions/docsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/docsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/docsync/internal/infrastructure/tracing"
)

// Container holds all application dependencies and provides a central
// point for dependency injection.
type Container struct {
	config  *config.Config
	verbose bool // Override log level to debug when true
	fs      afero.Fs

	logger *logging.Logger
	tracer *tracing.Tracer

	endpoints *endpoint.Registry
	local     *localfs.Endpoint
	store     ports.MappingStorePort
	engine    *syncer.Engine
}

// Option customizes a Container.
type Option func(*Container)

// WithFs sets the filesystem used for local Markdown files.
func WithFs(fs afero.Fs) Option {
	return func(c *Container) { c.fs = fs }
}

// NewContainer creates a new dependency injection container with all services
// initialized based on the provided configuration.
func NewContainer(cfg *config.Config, verbose bool, opts ...Option) (*Container, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := &Container{
		config:  cfg,
		verbose: verbose,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fs == nil {
		c.fs = afero.NewOsFs()
	}

	if err := c.initObservability(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if err := c.initStore(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize mapping store: %w", err)
	}

	if err := c.initEndpoints(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to initialize endpoints: %w", err)
	}

	c.engine = syncer.New(c.endpoints, c.store,
		syncer.WithLogger(c.logger),
		syncer.WithTracer(c.tracer),
	)

	return c, nil
}

func (c *Container) initObservability() error {
	logLevel := logging.Level(c.config.Logging.Level)
	if c.verbose {
		logLevel = logging.LevelDebug
	}

	logFormat := logging.FormatText
	if c.config.Logging.Format == "json" {
		logFormat = logging.FormatJSON
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Format = logFormat
	if c.config.Logging.File != "" {
		path, err := config.ExpandPath(c.config.Logging.File)
		if err != nil {
			return err
		}
		logCfg.File = &logging.FileConfig{
			Path:       path,
			MaxSizeMB:  c.config.Logging.MaxSizeMB,
			MaxBackups: c.config.Logging.MaxBackups,
			MaxAgeDays: c.config.Logging.MaxAgeDays,
			Compress:   c.config.Logging.Compress,
		}
	}
	c.logger = logging.New(logCfg)

	if !c.config.Tracing.Enabled {
		c.tracer = tracing.Default()
		return nil
	}
	tracer, err := tracing.New(context.Background(), tracing.Config{
		Enabled:      true,
		ExporterType: tracing.ExporterType(c.config.Tracing.ExporterType),
		OTLPEndpoint: c.config.Tracing.OTLPEndpoint,
		ServiceName:  c.config.Tracing.ServiceName,
		Environment:  "production",
		SampleRate:   c.config.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	c.tracer = tracer
	return nil
}

func (c *Container) initStore() error {
	path, err := c.config.MappingPath()
	if err != nil {
		return err
	}

	switch c.config.Mapping.Backend {
	case config.BackendSQLite:
		store, err := sqlite.New(path)
		if err != nil {
			return err
		}
		c.store = store
	default:
		store, err := jsonfile.New(path)
		if err != nil {
			return err
		}
		c.store = store
	}
	c.logger.Debug("mapping store opened", "backend", c.config.Mapping.Backend, "path", path)
	return nil
}

func (c *Container) initEndpoints() error {
	c.endpoints = endpoint.NewRegistry()

	if c.config.Notion.Token != "" {
		client := notion.NewHTTPClient(notion.ClientConfig{
			Token:      c.config.Notion.Token,
			BaseURL:    c.config.Notion.BaseURL,
			Version:    c.config.Notion.Version,
			Timeout:    c.config.Notion.Timeout,
			MaxRetries: c.config.Notion.MaxRetries,
		})
		if err := c.endpoints.Register(notion.NewEndpoint(client, c.config.Sync.AWindowSize)); err != nil {
			return err
		}
	}

	if c.config.Feishu.AccessToken != "" {
		client := feishu.NewHTTPClient(feishu.ClientConfig{
			AccessToken: c.config.Feishu.AccessToken,
			BaseURL:     c.config.Feishu.BaseURL,
			Timeout:     c.config.Feishu.Timeout,
			MaxRetries:  c.config.Feishu.MaxRetries,
		})
		ep := feishu.NewEndpoint(client, c.config.Sync.BWindowSize, c.config.Feishu.FolderToken)
		if err := c.endpoints.Register(ep); err != nil {
			return err
		}
	}

	dir, err := config.ExpandPath(c.config.Local.MarkdownDir)
	if err != nil {
		return err
	}
	c.local = localfs.NewEndpoint(localfs.NewFileAccess(c.fs), dir)
	if err := c.endpoints.Register(c.local); err != nil {
		return err
	}

	for _, sys := range c.endpoints.List() {
		c.logger.Debug("endpoint registered", "system", sys.String())
	}
	return nil
}

// Close releases all resources held by the container.
func (c *Container) Close() error {
	var errs []error

	if c.tracer != nil {
		if err := c.tracer.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.logger != nil {
		if err := c.logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the application logger.
func (c *Container) Logger() *logging.Logger {
	return c.logger
}

// Tracer returns the application tracer.
func (c *Container) Tracer() *tracing.Tracer {
	return c.tracer
}

// Endpoints returns the registry of configured systems.
func (c *Container) Endpoints() *endpoint.Registry {
	return c.endpoints
}

// LocalDir returns the directory holding local Markdown files.
func (c *Container) LocalDir() string {
	return c.local.Dir()
}

// LocalDocuments lists every Markdown file under the local directory.
func (c *Container) LocalDocuments() ([]string, error) {
	return c.local.Documents()
}

// MappingStore returns the mapping store.
func (c *Container) MappingStore() ports.MappingStorePort {
	return c.store
}

// Engine returns the sync engine.
func (c *Container) Engine() *syncer.Engine {
	return c.engine
}
