package config

import (
	"github.com/coral-mesh/perfprobe/internal/constants"
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Sampling: SamplingConfig{
			Interval:        constants.DefaultSampleInterval,
			IncludeChildren: true,
		},
		Execution: ExecutionConfig{
			GracePeriod: constants.DefaultGracePeriod,
		},
		Report: ReportConfig{
			Output: constants.DefaultReportPath,
			Format: "csv",
		},
		Store: StoreConfig{
			Path: "~/" + constants.DefaultHistoryDatabasePath,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}
