// Package config loads plugin host configuration from TOML or YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the host-side configuration for one plugin context.
type Config struct {
	Plugin    PluginConfig    `toml:"plugin" yaml:"plugin"`
	Log       LogConfig       `toml:"log" yaml:"log"`
	Store     StoreConfig     `toml:"store" yaml:"store"`
	Journal   JournalConfig   `toml:"journal" yaml:"journal"`
	Telemetry TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
}

// PluginConfig identifies the hosted plugin.
type PluginConfig struct {
	ID          string `toml:"id" yaml:"id"`
	Name        string `toml:"name" yaml:"name"`
	Version     string `toml:"version" yaml:"version"`
	Description string `toml:"description" yaml:"description"`
	Author      string `toml:"author" yaml:"author"`

	// AssetsBase is the URL prefix under which the plugin's packaged files are served.
	AssetsBase string `toml:"assets_base" yaml:"assets_base"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `toml:"level" yaml:"level"`
}

// StoreConfig selects the settings store backend.
type StoreConfig struct {
	// Backend is "memory" or "nats".
	Backend string `toml:"backend" yaml:"backend"`
	NATSURL string `toml:"nats_url" yaml:"nats_url"`
	Bucket  string `toml:"bucket" yaml:"bucket"`
}

// JournalConfig controls where journal batches arrive from.
type JournalConfig struct {
	// Subject is the bus subject carrying journal batches.
	Subject string `toml:"subject" yaml:"subject"`

	// Mode is the decoding mode used by the demo listener.
	Mode string `toml:"mode" yaml:"mode"`

	// Dir is a journal directory to tail. When empty, no files are watched.
	Dir string `toml:"dir" yaml:"dir"`
}

// TelemetryConfig controls OTLP tracing. Tracing is off when Endpoint is empty.
type TelemetryConfig struct {
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Protocol string `toml:"protocol" yaml:"protocol"`
	Insecure bool   `toml:"insecure" yaml:"insecure"`
	Debug    bool   `toml:"debug" yaml:"debug"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Log:   LogConfig{Level: "info"},
		Store: StoreConfig{Backend: "memory", Bucket: "plugin-settings"},
		Journal: JournalConfig{
			Subject: "journal.batches",
			Mode:    "jsonSimple",
		},
		Telemetry: TelemetryConfig{Protocol: "grpc"},
	}
}

// Load reads a config file over the defaults and validates the result.
// Files ending in .yaml or .yml are YAML; anything else is TOML.
// Environment references in the NATS URL and telemetry endpoint are expanded.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		_, err = toml.Decode(string(data), &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	cfg.Store.NATSURL = os.ExpandEnv(cfg.Store.NATSURL)
	cfg.Telemetry.Endpoint = os.ExpandEnv(cfg.Telemetry.Endpoint)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Plugin.ID) == "" {
		return fmt.Errorf("plugin.id is required")
	}
	if strings.Contains(c.Plugin.ID, ".") {
		return fmt.Errorf("plugin.id %q must not contain '.'", c.Plugin.ID)
	}
	switch c.Store.Backend {
	case "memory":
	case "nats":
		if c.Store.NATSURL == "" {
			return fmt.Errorf("store.nats_url is required for the nats backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q (use 'memory' or 'nats')", c.Store.Backend)
	}
	if c.Journal.Dir != "" {
		info, err := os.Stat(c.Journal.Dir)
		if err != nil {
			return fmt.Errorf("journal.dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("journal.dir %q is not a directory", c.Journal.Dir)
		}
	}
	switch c.Telemetry.Protocol {
	case "", "grpc", "http":
	default:
		return fmt.Errorf("unknown telemetry.protocol %q (use 'grpc' or 'http')", c.Telemetry.Protocol)
	}
	return nil
}
