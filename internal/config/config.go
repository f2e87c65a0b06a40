// Package config loads the YAML configuration shared by the exprrepr CLI and
// the evaluation server.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sigs.k8s.io/yaml"
)

// DefaultFile is looked up in the working directory when no path is given.
const DefaultFile = "exprrepr.yaml"

// Config is the exprrepr configuration file.
type Config struct {
	Limits LimitOptions  `json:"limits"`
	Log    LogOptions    `json:"log"`
	Server ServerOptions `json:"server"`
	Watch  WatchOptions  `json:"watch"`
}

// LimitOptions bounds the work done per tree.
type LimitOptions struct {
	// MaxDepth bounds tree depth in conversion, building and decoding.
	MaxDepth int `json:"max_depth"`
}

// LogOptions configures the CLI logger.
type LogOptions struct {
	Level string `json:"level"`
	// Color is auto, always or never.
	Color string `json:"color"`
}

// ServerOptions configures the evaluation server.
type ServerOptions struct {
	Listen   string `json:"listen"`
	CertFile string `json:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty"`
	Timeout  string `json:"timeout"`
}

// WatchOptions configures the watch command.
type WatchOptions struct {
	Dir string `json:"dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Limits: LimitOptions{MaxDepth: 256},
		Log: LogOptions{
			Level: "info",
			Color: "auto",
		},
		Server: ServerOptions{
			Listen:  "127.0.0.1:4433",
			Timeout: "10s",
		},
		Watch: WatchOptions{Dir: "."},
	}
}

// Load reads path over the defaults. An empty path loads DefaultFile when
// it exists and the defaults otherwise.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultFile); err != nil {
			return cfg, nil
		}
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Limits.MaxDepth <= 0 {
		return fmt.Errorf("limits.max_depth must be positive, got %d", c.Limits.MaxDepth)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("log.color must be auto, always or never, got %q", c.Log.Color)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		return fmt.Errorf("server.cert_file and server.key_file must be set together")
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Timeout parses Server.Timeout.
func (c *Config) Timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil {
		return 0, fmt.Errorf("server.timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server.timeout must be positive, got %s", d)
	}
	return d, nil
}
