package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): environment variables, project
// config, global config, defaults. Missing files are not errors; malformed
// JSON returns an error.
func Load(globalPath, projectPath string) (*SchedulerConfig, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.agentsched/config.json
// Project: .agentsched/config.json (relative to cwd)
func LoadDefault() (*SchedulerConfig, error) {
	projectPath := filepath.Join(".agentsched", "config.json")
	return Load(GlobalPath(), projectPath)
}

// GlobalPath returns the conventional global config file path, or the empty
// string when no home directory can be resolved.
func GlobalPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".agentsched", "config.json")
}

// mergeConfigFile reads a JSON config file and overlays its set fields onto
// the base config. Missing files are silently skipped.
func mergeConfigFile(base *SchedulerConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded fileConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Host != nil {
		base.Host = *loaded.Host
	}
	if loaded.Port != nil {
		base.Port = *loaded.Port
	}
	if loaded.DatabasePath != nil {
		base.DatabasePath = *loaded.DatabasePath
	}
	if loaded.LogDir != nil {
		base.LogDir = *loaded.LogDir
	}
	if loaded.Concurrency != nil {
		base.Concurrency = *loaded.Concurrency
	}
	if loaded.ClaudePath != nil {
		base.ClaudePath = *loaded.ClaudePath
	}
	if loaded.Model != nil {
		base.Model = *loaded.Model
	}
	if loaded.LogMode != nil {
		base.LogMode = *loaded.LogMode
	}
	if loaded.LogFormat != nil {
		base.LogFormat = *loaded.LogFormat
	}
	if loaded.GraceSeconds != nil {
		base.GraceSeconds = *loaded.GraceSeconds
	}
	return nil
}

// applyEnv overlays environment variable overrides, the highest-precedence
// source. An unparsable numeric value is an error rather than a silent skip.
func applyEnv(cfg *SchedulerConfig) error {
	if v := os.Getenv("AGENTSCHED_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("AGENTSCHED_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing AGENTSCHED_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("AGENTSCHED_DB"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("CLAUDE_PATH"); v != "" {
		cfg.ClaudePath = v
	}
	return nil
}

// Validate rejects values the daemon cannot run with.
func (c *SchedulerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.LogMode != "append" && c.LogMode != "truncate" {
		return fmt.Errorf("invalid log_mode %q", c.LogMode)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	if c.GraceSeconds < 1 {
		return fmt.Errorf("grace_seconds must be at least 1, got %d", c.GraceSeconds)
	}
	return nil
}

// BaseURL returns the daemon address CLI clients should dial.
func (c *SchedulerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}
