package config

import "time"

// Config is the perfprobe configuration.
type Config struct {
	Sampling  SamplingConfig  `yaml:"sampling" json:"sampling"`
	Execution ExecutionConfig `yaml:"execution" json:"execution"`
	Report    ReportConfig    `yaml:"report" json:"report"`
	Store     StoreConfig     `yaml:"store" json:"store"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// SamplingConfig controls how running jobs are observed.
type SamplingConfig struct {
	Interval        time.Duration `yaml:"interval" json:"interval" env:"PERFPROBE_SAMPLE_INTERVAL"`
	IncludeChildren bool          `yaml:"include_children" json:"include_children" env:"PERFPROBE_INCLUDE_CHILDREN"`
}

// ExecutionConfig controls how jobs are spawned and stopped.
type ExecutionConfig struct {
	// Timeout terminates a job that runs longer. Zero disables it.
	Timeout     time.Duration `yaml:"timeout" json:"timeout" env:"PERFPROBE_TIMEOUT"`
	GracePeriod time.Duration `yaml:"grace_period" json:"grace_period" env:"PERFPROBE_GRACE_PERIOD"`
	UseShell    bool          `yaml:"use_shell" json:"use_shell" env:"PERFPROBE_USE_SHELL"`
}

// ReportConfig controls the report written after a run.
type ReportConfig struct {
	// Output is the report path. "-" writes to stdout.
	Output string `yaml:"output" json:"output" env:"PERFPROBE_REPORT_OUTPUT"`
	Format string `yaml:"format" json:"format" env:"PERFPROBE_REPORT_FORMAT"`
}

// StoreConfig controls the DuckDB run history.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"PERFPROBE_STORE_ENABLED"`
	Path    string `yaml:"path" json:"path" env:"PERFPROBE_STORE_PATH"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"PERFPROBE_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" json:"pretty" env:"PERFPROBE_LOG_PRETTY"`
}
