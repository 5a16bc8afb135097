package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	return writeConfigAs(t, "plugin.toml", content)
}

func writeConfigAs(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
[plugin]
id = "alpha"
name = "Alpha"
version = "1.2.0"
assets_base = "https://cdn.example/plugins/alpha"

[store]
backend = "nats"
nats_url = "nats://localhost:4222"

[journal]
mode = "jsonBigint"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Plugin.ID != "alpha" || cfg.Plugin.Version != "1.2.0" {
		t.Errorf("plugin = %+v", cfg.Plugin)
	}
	if cfg.Store.Backend != "nats" {
		t.Errorf("Backend = %q, want nats", cfg.Store.Backend)
	}
	// Defaults survive for unset fields.
	if cfg.Store.Bucket != "plugin-settings" {
		t.Errorf("Bucket = %q, want default", cfg.Store.Bucket)
	}
	if cfg.Journal.Subject != "journal.batches" || cfg.Journal.Mode != "jsonBigint" {
		t.Errorf("journal = %+v", cfg.Journal)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("TEST_NATS_HOST", "nats.internal")
	path := writeConfigAs(t, "plugin.yaml", `
plugin:
  id: beta
  assets_base: https://cdn.example/plugins/beta
store:
  backend: nats
  nats_url: nats://${TEST_NATS_HOST}:4222
journal:
  mode: raw
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Plugin.ID != "beta" || cfg.Plugin.AssetsBase != "https://cdn.example/plugins/beta" {
		t.Errorf("plugin = %+v", cfg.Plugin)
	}
	if cfg.Store.NATSURL != "nats://nats.internal:4222" {
		t.Errorf("NATSURL = %q, want expanded", cfg.Store.NATSURL)
	}
	if cfg.Journal.Mode != "raw" || cfg.Journal.Subject != "journal.batches" {
		t.Errorf("journal = %+v", cfg.Journal)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "[plugin\nid=")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}

	path = writeConfigAs(t, "plugin.yml", "plugin: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected YAML parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing id", func(c *Config) { c.Plugin.ID = " " }, "plugin.id is required"},
		{"dotted id", func(c *Config) { c.Plugin.ID = "a.b" }, "must not contain"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "unknown store.backend"},
		{"nats without url", func(c *Config) { c.Store.Backend = "nats" }, "nats_url is required"},
		{"bad protocol", func(c *Config) { c.Telemetry.Protocol = "udp" }, "unknown telemetry.protocol"},
		{"journal dir", func(c *Config) { c.Journal.Dir = os.TempDir() }, ""},
		{"missing journal dir", func(c *Config) { c.Journal.Dir = filepath.Join(os.TempDir(), "no-such-journal-dir") }, "journal.dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Plugin.ID = "alpha"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
