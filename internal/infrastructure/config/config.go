// Package config provides configuration structs and utilities for docsync.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config represents the root configuration for docsync.
type Config struct {
	Notion  NotionConfig  `yaml:"notion"`
	Feishu  FeishuConfig  `yaml:"feishu"`
	Local   LocalConfig   `yaml:"local"`
	Mapping MappingConfig `yaml:"mapping"`
	Sync    SyncConfig    `yaml:"sync"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// NotionConfig holds configuration for the page service (A).
type NotionConfig struct {
	Token      string        `yaml:"token"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Version    string        `yaml:"version,omitempty"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// FeishuConfig holds configuration for the cloud-document service (B).
type FeishuConfig struct {
	AccessToken string        `yaml:"access_token"`
	BaseURL     string        `yaml:"base_url,omitempty"`
	FolderToken string        `yaml:"folder_token,omitempty"` // Parent folder for created documents
	Timeout     time.Duration `yaml:"timeout"`
	MaxRetries  int           `yaml:"max_retries"`
}

// LocalConfig holds configuration for local Markdown files.
type LocalConfig struct {
	MarkdownDir string `yaml:"markdown_dir"`
}

// MappingConfig selects and locates the mapping store.
type MappingConfig struct {
	Backend string `yaml:"backend"` // json, sqlite
	Path    string `yaml:"path"`
}

// SyncConfig holds write window sizes.
type SyncConfig struct {
	AWindowSize int `yaml:"a_window_size"` // at most 100
	BWindowSize int `yaml:"b_window_size"` // at most 50
}

// LoggingConfig holds configuration for application logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, text
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ExporterType string  `yaml:"exporter_type"` // none, stdout, otlp
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// Default configuration values.
const (
	DefaultNotionBaseURL = "https://api.notion.com/v1"
	DefaultNotionVersion = "2022-06-28"
	DefaultFeishuBaseURL = "https://open.feishu.cn/open-apis"
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultMarkdownDir   = "./markdown_files"

	BackendJSON         = "json"
	BackendSQLite       = "sqlite"
	DefaultBackend      = BackendJSON
	DefaultJSONPath     = "~/.docsync/mappings.json"
	DefaultSQLitePath   = "~/.docsync/mappings.db"
	MaxAWindowSize      = 100
	MaxBWindowSize      = 50
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultLogMaxSizeMB = 10

	DefaultTracingEnabled      = false
	DefaultTracingExporterType = "none"
	DefaultTracingSampleRate   = 1.0
	DefaultTracingServiceName  = "docsync"
)

// Environment variables that override file values.
const (
	EnvNotionToken       = "DOCSYNC_NOTION_TOKEN"
	EnvFeishuAccessToken = "DOCSYNC_FEISHU_ACCESS_TOKEN"
	EnvMarkdownDir       = "DOCSYNC_MARKDOWN_DIR"
	EnvMappingPath       = "DOCSYNC_MAPPING_PATH"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json": true,
	"text": true,
}

var validTracingExporterTypes = map[string]bool{
	"none":   true,
	"stdout": true,
	"otlp":   true,
}

var validBackends = map[string]bool{
	BackendJSON:   true,
	BackendSQLite: true,
}

// NewDefaultConfig creates a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		Notion: NotionConfig{
			BaseURL:    DefaultNotionBaseURL,
			Version:    DefaultNotionVersion,
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Feishu: FeishuConfig{
			BaseURL:    DefaultFeishuBaseURL,
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
		},
		Local: LocalConfig{
			MarkdownDir: DefaultMarkdownDir,
		},
		Mapping: MappingConfig{
			Backend: DefaultBackend,
		},
		Sync: SyncConfig{
			AWindowSize: MaxAWindowSize,
			BWindowSize: MaxBWindowSize,
		},
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			Format:    DefaultLogFormat,
			MaxSizeMB: DefaultLogMaxSizeMB,
		},
		Tracing: TracingConfig{
			Enabled:      DefaultTracingEnabled,
			ExporterType: DefaultTracingExporterType,
			SampleRate:   DefaultTracingSampleRate,
			ServiceName:  DefaultTracingServiceName,
		},
	}
}

// ApplyEnv overrides credentials and paths from the environment. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvNotionToken); ok && v != "" {
		c.Notion.Token = v
	}
	if v, ok := lookup(EnvFeishuAccessToken); ok && v != "" {
		c.Feishu.AccessToken = v
	}
	if v, ok := lookup(EnvMarkdownDir); ok && v != "" {
		c.Local.MarkdownDir = v
	}
	if v, ok := lookup(EnvMappingPath); ok && v != "" {
		c.Mapping.Path = v
	}
}

// MappingPath returns the mapping store location with ~ expanded. An empty
// path selects the default for the backend.
func (c *Config) MappingPath() (string, error) {
	path := c.Mapping.Path
	if path == "" {
		path = DefaultJSONPath
		if c.Mapping.Backend == BackendSQLite {
			path = DefaultSQLitePath
		}
	}
	return ExpandPath(path)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Notion.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("notion: %w", err))
	}
	if err := c.Feishu.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("feishu: %w", err))
	}
	if err := c.Local.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("local: %w", err))
	}
	if err := c.Mapping.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mapping: %w", err))
	}
	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks if the NotionConfig is valid. The token is optional; an
// unset token leaves the page service unconfigured.
func (n *NotionConfig) Validate() error {
	var errs []error
	if err := validateBaseURL(n.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if n.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if n.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must be non-negative"))
	}
	return errors.Join(errs...)
}

// Validate checks if the FeishuConfig is valid.
func (f *FeishuConfig) Validate() error {
	var errs []error
	if err := validateBaseURL(f.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if f.Timeout < 0 {
		errs = append(errs, errors.New("timeout must be non-negative"))
	}
	if f.MaxRetries < 0 {
		errs = append(errs, errors.New("max_retries must be non-negative"))
	}
	return errors.Join(errs...)
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("base_url must use http or https scheme")
	}
	return nil
}

// Validate checks if the LocalConfig is valid.
func (l *LocalConfig) Validate() error {
	if l.MarkdownDir == "" {
		return errors.New("markdown_dir is required")
	}
	return nil
}

// Validate checks if the MappingConfig is valid.
func (m *MappingConfig) Validate() error {
	if !validBackends[m.Backend] {
		return fmt.Errorf("invalid backend %q: must be one of json, sqlite", m.Backend)
	}
	return nil
}

// Validate checks if the SyncConfig is valid.
func (s *SyncConfig) Validate() error {
	var errs []error
	if s.AWindowSize < 1 || s.AWindowSize > MaxAWindowSize {
		errs = append(errs, fmt.Errorf("a_window_size must be between 1 and %d", MaxAWindowSize))
	}
	if s.BWindowSize < 1 || s.BWindowSize > MaxBWindowSize {
		errs = append(errs, fmt.Errorf("b_window_size must be between 1 and %d", MaxBWindowSize))
	}
	return errors.Join(errs...)
}

// Validate checks if the LoggingConfig is valid.
func (l *LoggingConfig) Validate() error {
	var errs []error

	if l.Level != "" && !validLogLevels[l.Level] {
		errs = append(errs, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", l.Level))
	}
	if l.Format != "" && !validLogFormats[l.Format] {
		errs = append(errs, fmt.Errorf("invalid log format %q: must be one of json, text", l.Format))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log rotation limits must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate checks if the TracingConfig is valid.
func (t *TracingConfig) Validate() error {
	var errs []error

	if t.Enabled {
		if t.ExporterType != "" && !validTracingExporterTypes[t.ExporterType] {
			errs = append(errs, fmt.Errorf("invalid exporter_type %q: must be one of none, stdout, otlp", t.ExporterType))
		}
		if t.ExporterType == "otlp" && t.OTLPEndpoint == "" {
			errs = append(errs, errors.New("otlp_endpoint is required when exporter_type is 'otlp'"))
		}
		if t.SampleRate < 0 || t.SampleRate > 1 {
			errs = append(errs, errors.New("sample_rate must be between 0.0 and 1.0"))
		}
		if t.ServiceName == "" {
			errs = append(errs, errors.New("service_name is required when tracing is enabled"))
		}
	}

	return errors.Join(errs...)
}
