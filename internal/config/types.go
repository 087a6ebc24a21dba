package config

// SchedulerConfig is the top-level configuration for the daemon and CLI.
type SchedulerConfig struct {
	Host         string `json:"host"`          // HTTP listen address
	Port         int    `json:"port"`          // HTTP listen port
	DatabasePath string `json:"database_path"` // SQLite database file
	LogDir       string `json:"log_dir"`       // Per-task jsonl logs
	Concurrency  int    `json:"concurrency"`   // Max simultaneous agent processes
	ClaudePath   string `json:"claude_path"`   // Agent CLI binary
	Model        string `json:"model"`         // Model override, empty for CLI default
	LogMode      string `json:"log_mode"`      // "append" or "truncate" across resumes
	LogFormat    string `json:"log_format"`    // Daemon logging: "text" or "json"
	GraceSeconds int    `json:"grace_seconds"` // SIGTERM to SIGKILL escalation window
}

// fileConfig mirrors SchedulerConfig with pointer fields so a config file
// can override any subset without zeroing the rest.
type fileConfig struct {
	Host         *string `json:"host"`
	Port         *int    `json:"port"`
	DatabasePath *string `json:"database_path"`
	LogDir       *string `json:"log_dir"`
	Concurrency  *int    `json:"concurrency"`
	ClaudePath   *string `json:"claude_path"`
	Model        *string `json:"model"`
	LogMode      *string `json:"log_mode"`
	LogFormat    *string `json:"log_format"`
	GraceSeconds *int    `json:"grace_seconds"`
}
