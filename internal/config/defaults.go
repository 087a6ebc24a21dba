package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns the default configuration. Paths are rooted in the
// user's state directory (~/.agentsched) when the home directory resolves;
// otherwise they fall back to the working directory.
func DefaultConfig() *SchedulerConfig {
	stateDir := ".agentsched"
	if homeDir, err := os.UserHomeDir(); err == nil {
		stateDir = filepath.Join(homeDir, ".agentsched")
	}

	return &SchedulerConfig{
		Host:         "127.0.0.1",
		Port:         39512,
		DatabasePath: filepath.Join(stateDir, "agentsched.db"),
		LogDir:       filepath.Join(stateDir, "logs"),
		Concurrency:  2,
		ClaudePath:   "claude",
		LogMode:      "append",
		LogFormat:    "text",
		GraceSeconds: 10,
	}
}
