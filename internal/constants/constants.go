// Package constants defines shared configuration constants and defaults.
package constants

import "time"

var (
	ConfigFile = "config.yaml"

	// DefaultDir is the per-user state directory, relative to the home directory.
	DefaultDir = ".perfprobe"

	DefaultHistoryDatabasePath = DefaultDir + "/" + "history.duckdb"

	DefaultEnvFile = ".env"

	DefaultReportPath = "report.csv"
)

// Sampling and execution defaults.
const (
	// DefaultSampleInterval is the time between two resource snapshots.
	DefaultSampleInterval = 50 * time.Millisecond

	// MinSampleInterval guards against busy-looping the sampler.
	MinSampleInterval = 1 * time.Millisecond

	// DefaultGracePeriod is how long a terminated child gets between SIGTERM and SIGKILL.
	DefaultGracePeriod = 5 * time.Second

	// DefaultQueryTimeout is the default timeout for history queries.
	DefaultQueryTimeout = 30 * time.Second
)

// Environment variable prefix for every perfprobe setting.
const EnvPrefix = "PERFPROBE_"
