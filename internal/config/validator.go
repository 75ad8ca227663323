package config

import (
	"fmt"
	"strings"

	"github.com/coral-mesh/perfprobe/internal/constants"
)

// Validator is the interface for validating configuration.
type Validator interface {
	Validate() error
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// ReportFormats lists the accepted report.format values.
var ReportFormats = []string{"csv", "json", "table"}

// LogLevels lists the accepted logging.level values.
var LogLevels = []string{"trace", "debug", "info", "warn", "error"}

// Validate validates Config.
func (c *Config) Validate() error {
	var errors []ValidationError

	if c.Sampling.Interval < constants.MinSampleInterval {
		errors = append(errors, ValidationError{
			Field:   "sampling.interval",
			Message: fmt.Sprintf("interval must be at least %s", constants.MinSampleInterval),
		})
	}

	if c.Execution.Timeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.timeout",
			Message: "timeout must not be negative",
		})
	}

	if c.Execution.GracePeriod < 0 {
		errors = append(errors, ValidationError{
			Field:   "execution.grace_period",
			Message: "grace period must not be negative",
		})
	}

	if !oneOf(c.Report.Format, ReportFormats) {
		errors = append(errors, ValidationError{
			Field:   "report.format",
			Message: "format must be one of: " + strings.Join(ReportFormats, ", "),
		})
	}

	if c.Report.Output == "" {
		errors = append(errors, ValidationError{
			Field:   "report.output",
			Message: "output path is required",
		})
	}

	if c.Store.Enabled && c.Store.Path == "" {
		errors = append(errors, ValidationError{
			Field:   "store.path",
			Message: "path is required when the store is enabled",
		})
	}

	if !oneOf(strings.ToLower(c.Logging.Level), LogLevels) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be one of: " + strings.Join(LogLevels, ", "),
		})
	}

	if len(errors) > 0 {
		return &MultiValidationError{Errors: errors}
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
