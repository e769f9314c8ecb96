package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loader handles loading configuration from files.
type Loader struct {
	configDir string
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader.
// If configDir is empty, it defaults to ~/.docsync.
func NewLoader(configDir string) (*Loader, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".docsync")
	}

	return &Loader{configDir: configDir, lookupEnv: os.LookupEnv}, nil
}

// WithEnv replaces the environment lookup, for tests.
func (l *Loader) WithEnv(lookup func(string) (string, bool)) *Loader {
	l.lookupEnv = lookup
	return l
}

// Load loads configuration from the specified file or default location and
// applies environment overrides. If the file doesn't exist, the defaults are
// used. The result is validated.
func (l *Loader) Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = l.DefaultConfigPath()
	}

	cfg := NewDefaultConfig()
	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv(l.lookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", configPath, err)
	}
	return cfg, nil
}

// Save saves configuration to the specified file or default location.
func (l *Loader) Save(cfg *Config, configPath string) error {
	if configPath == "" {
		configPath = l.DefaultConfigPath()
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# docsync configuration
# Tokens may also be supplied through DOCSYNC_NOTION_TOKEN and DOCSYNC_FEISHU_ACCESS_TOKEN.
#
`
	// Credentials are stored in this file.
	if err := os.WriteFile(configPath, []byte(header+string(data)), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ConfigDir returns the configuration directory path.
func (l *Loader) ConfigDir() string {
	return l.configDir
}

// DefaultConfigPath returns the default configuration file path.
func (l *Loader) DefaultConfigPath() string {
	return filepath.Join(l.configDir, "config.yaml")
}
