package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg == nil {
		t.Fatal("NewDefaultConfig returned nil")
	}

	if cfg.Notion.BaseURL != DefaultNotionBaseURL {
		t.Errorf("expected notion base URL %q, got %q", DefaultNotionBaseURL, cfg.Notion.BaseURL)
	}
	if cfg.Notion.Timeout != DefaultTimeout {
		t.Errorf("expected notion timeout %v, got %v", DefaultTimeout, cfg.Notion.Timeout)
	}
	if cfg.Feishu.BaseURL != DefaultFeishuBaseURL {
		t.Errorf("expected feishu base URL %q, got %q", DefaultFeishuBaseURL, cfg.Feishu.BaseURL)
	}
	if cfg.Mapping.Backend != BackendJSON {
		t.Errorf("expected json backend, got %q", cfg.Mapping.Backend)
	}
	if cfg.Sync.AWindowSize != 100 || cfg.Sync.BWindowSize != 50 {
		t.Errorf("unexpected window sizes %+v", cfg.Sync)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("expected log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Tracing.Enabled {
		t.Error("expected tracing to be disabled by default")
	}
}

func TestConfig_Validate_DefaultIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid, got error: %v", err)
	}
}

func TestConfig_Validate_AggregatesErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Mapping.Backend = "postgres"
	cfg.Sync.BWindowSize = 51
	cfg.Logging.Level = "verbose"
	cfg.Feishu.BaseURL = "ftp://example.com"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"mapping: invalid backend", "sync: b_window_size", "logging: invalid log level", "feishu: base_url"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %q", msg, want)
		}
	}
}

func TestSyncConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  SyncConfig
		wantErr bool
	}{
		{"limits", SyncConfig{AWindowSize: 100, BWindowSize: 50}, false},
		{"small windows", SyncConfig{AWindowSize: 1, BWindowSize: 1}, false},
		{"zero a window", SyncConfig{AWindowSize: 0, BWindowSize: 50}, true},
		{"oversize a window", SyncConfig{AWindowSize: 101, BWindowSize: 50}, true},
		{"oversize b window", SyncConfig{AWindowSize: 100, BWindowSize: 60}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  LoggingConfig
		wantErr bool
	}{
		{"valid debug level", LoggingConfig{Level: "debug", Format: "json"}, false},
		{"valid error level", LoggingConfig{Level: "error", Format: "text"}, false},
		{"empty values", LoggingConfig{}, false},
		{"with rotating file", LoggingConfig{Level: "info", File: "/tmp/docsync.log", MaxSizeMB: 5}, false},
		{"invalid level", LoggingConfig{Level: "trace"}, true},
		{"invalid format", LoggingConfig{Format: "xml"}, true},
		{"negative rotation", LoggingConfig{MaxBackups: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTracingConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TracingConfig
		wantErr bool
	}{
		{"disabled ignores fields", TracingConfig{Enabled: false, ExporterType: "bogus"}, false},
		{"stdout", TracingConfig{Enabled: true, ExporterType: "stdout", SampleRate: 1, ServiceName: "docsync"}, false},
		{"otlp without endpoint", TracingConfig{Enabled: true, ExporterType: "otlp", SampleRate: 1, ServiceName: "docsync"}, true},
		{"bad exporter", TracingConfig{Enabled: true, ExporterType: "jaeger", SampleRate: 1, ServiceName: "docsync"}, true},
		{"bad sample rate", TracingConfig{Enabled: true, ExporterType: "stdout", SampleRate: 2, ServiceName: "docsync"}, true},
		{"missing service name", TracingConfig{Enabled: true, ExporterType: "stdout", SampleRate: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvNotionToken:       "secret_notion",
		EnvFeishuAccessToken: "u-feishu",
		EnvMarkdownDir:       "/srv/notes",
		EnvMappingPath:       "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := NewDefaultConfig()
	cfg.Mapping.Path = "/var/lib/docsync/map.json"
	cfg.ApplyEnv(lookup)

	if cfg.Notion.Token != "secret_notion" {
		t.Errorf("notion token = %q", cfg.Notion.Token)
	}
	if cfg.Feishu.AccessToken != "u-feishu" {
		t.Errorf("feishu token = %q", cfg.Feishu.AccessToken)
	}
	if cfg.Local.MarkdownDir != "/srv/notes" {
		t.Errorf("markdown dir = %q", cfg.Local.MarkdownDir)
	}
	if cfg.Mapping.Path != "/var/lib/docsync/map.json" {
		t.Errorf("empty override replaced mapping path: %q", cfg.Mapping.Path)
	}
}

func TestConfig_MappingPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	cfg := NewDefaultConfig()
	got, err := cfg.MappingPath()
	if err != nil {
		t.Fatalf("MappingPath: %v", err)
	}
	if want := filepath.Join(home, ".docsync", "mappings.json"); got != want {
		t.Errorf("json path = %q, want %q", got, want)
	}

	cfg.Mapping.Backend = BackendSQLite
	got, _ = cfg.MappingPath()
	if want := filepath.Join(home, ".docsync", "mappings.db"); got != want {
		t.Errorf("sqlite path = %q, want %q", got, want)
	}

	cfg.Mapping.Path = "/tmp/x.db"
	got, _ = cfg.MappingPath()
	if got != "/tmp/x.db" {
		t.Errorf("explicit path = %q", got)
	}
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `notion:
  token: file-token
  timeout: 10s
feishu:
  access_token: file-feishu
  folder_token: fldcn123
local:
  markdown_dir: /data/md
mapping:
  backend: sqlite
sync:
  a_window_size: 80
  b_window_size: 25
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	loader, err := NewLoader(dir)
	if err != nil {
		t.Fatal(err)
	}
	loader.WithEnv(func(k string) (string, bool) {
		if k == EnvNotionToken {
			return "env-token", true
		}
		return "", false
	})

	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Notion.Token != "env-token" {
		t.Errorf("env override not applied: %q", cfg.Notion.Token)
	}
	if cfg.Notion.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.Notion.Timeout)
	}
	if cfg.Notion.BaseURL != DefaultNotionBaseURL {
		t.Errorf("default base URL lost: %q", cfg.Notion.BaseURL)
	}
	if cfg.Feishu.FolderToken != "fldcn123" || cfg.Feishu.AccessToken != "file-feishu" {
		t.Errorf("feishu = %+v", cfg.Feishu)
	}
	if cfg.Mapping.Backend != BackendSQLite || cfg.Local.MarkdownDir != "/data/md" {
		t.Errorf("mapping/local = %+v %+v", cfg.Mapping, cfg.Local)
	}
	if cfg.Sync.AWindowSize != 80 || cfg.Sync.BWindowSize != 25 {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoader_LoadMissingFileUsesDefaults(t *testing.T) {
	loader, err := NewLoader(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	loader.WithEnv(func(string) (string, bool) { return "", false })

	cfg, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Local.MarkdownDir != DefaultMarkdownDir {
		t.Errorf("markdown dir = %q", cfg.Local.MarkdownDir)
	}
}

func TestLoader_LoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(path, []byte("sync:\n  b_window_size: 200\n"), 0600)

	loader, _ := NewLoader(dir)
	loader.WithEnv(func(string) (string, bool) { return "", false })

	if _, err := loader.Load(path); err == nil || !strings.Contains(err.Error(), "b_window_size") {
		t.Errorf("expected window size error, got %v", err)
	}

	_ = os.WriteFile(path, []byte("notion: [unclosed"), 0600)
	if _, err := loader.Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoader_SaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	loader, _ := NewLoader(dir)
	loader.WithEnv(func(string) (string, bool) { return "", false })

	cfg := NewDefaultConfig()
	cfg.Feishu.FolderToken = "fldcn999"
	if err := loader.Save(cfg, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(loader.DefaultConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	loaded, err := loader.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Feishu.FolderToken != "fldcn999" {
		t.Errorf("folder token = %q", loaded.Feishu.FolderToken)
	}
}
