// Package config loads the host configuration from YAML with sensible
// defaults for every field, so a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nebulafusion/nebula/internal/plugin/sandbox"
)

// ErrInvalidConfig indicates the configuration file exists but cannot be
// used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the host configuration.
type Config struct {
	// LogLevel is a logrus level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Plugins  PluginConfig   `yaml:"plugins"`
	Security SecurityConfig `yaml:"security"`
}

// PluginConfig controls plugin discovery and sandboxing.
type PluginConfig struct {
	// UserDir is where user-installed plugins live. Install and
	// uninstall operate only on this directory.
	UserDir string `yaml:"user_dir"`

	// ExtraDirs are additional plugin directories, searched after
	// UserDir. On a duplicate plugin ID the earlier directory wins.
	ExtraDirs []string `yaml:"extra_dirs"`

	// Watch enables reloading the plugin list on directory changes.
	Watch bool `yaml:"watch"`

	// Limits are the per-plugin resource limits.
	Limits sandbox.Limits `yaml:"limits"`
}

// SecurityConfig controls URL blocking.
type SecurityConfig struct {
	// BlockedURLs are blocked at startup, each with a generic reason.
	BlockedURLs []string `yaml:"blocked_urls"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Plugins: PluginConfig{
			UserDir: "~/.nebulafusion/plugins",
			Limits:  sandbox.DefaultLimits(),
		},
	}
}

// Load reads the configuration at path, layering it over Default. A
// missing file yields the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "nebula.yaml"
	}
	return filepath.Join(home, ".nebulafusion", "nebula.yaml")
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.Plugins.UserDir == "" {
		return fmt.Errorf("%w: plugins.user_dir must not be empty", ErrInvalidConfig)
	}
	return nil
}

// PluginDirs returns the plugin search path, user directory first.
func (c *Config) PluginDirs() []string {
	dirs := make([]string, 0, len(c.Plugins.ExtraDirs)+1)
	dirs = append(dirs, c.Plugins.UserDir)
	dirs = append(dirs, c.Plugins.ExtraDirs...)
	return dirs
}
