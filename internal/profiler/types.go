// Package profiler measures the resource consumption of child processes.
//
// A Runner profiles an ordered list of jobs one at a time. For every job a
// Session spawns the command, drives a Sampler that polls a Reader until the
// child exits, and folds the samples with the terminal rusage into a Record.
//
//	reader := profiler.NewSnapshotReader(profiler.ReaderOptions{IncludeChildren: true})
//	spawner := profiler.NewShellSpawner(shell.Config{})
//	session := profiler.NewSession(spawner, reader, profiler.DefaultSessionConfig(), logger)
//	records, err := profiler.NewRunner(session, logger).RunAll(ctx, jobs)
//
// Network bytes are attributed from system-wide interface counters taken
// before and after a job, so concurrent traffic on the host is included.
package profiler

import (
	"strings"
	"time"
)

// Job is a named command to profile.
type Job struct {
	Name    string `yaml:"name" json:"name" validate:"required"`
	Command string `yaml:"command" json:"command" validate:"required"`
}

// Metric identifies one family of counters in a Snapshot.
type Metric uint8

const (
	MetricCPU Metric = 1 << iota
	MetricRSS
	MetricNetwork
)

// MetricSet is a set of metrics.
type MetricSet uint8

// Has reports whether m is in the set.
func (s MetricSet) Has(m Metric) bool {
	return s&MetricSet(m) != 0
}

// With returns the set with m added.
func (s MetricSet) With(m Metric) MetricSet {
	return s | MetricSet(m)
}

func (s MetricSet) String() string {
	var names []string
	if s.Has(MetricCPU) {
		names = append(names, "cpu")
	}
	if s.Has(MetricRSS) {
		names = append(names, "rss")
	}
	if s.Has(MetricNetwork) {
		names = append(names, "network")
	}
	return strings.Join(names, ",")
}

// Snapshot is a point-in-time resource reading.
// CPU and network values are cumulative since process (or boot) start; RSS is instantaneous.
// Metrics listed in Missing could not be read and are zero.
type Snapshot struct {
	Timestamp time.Time
	CPUUser   float64
	CPUSystem float64
	RSS       uint64
	BytesSent uint64
	BytesRecv uint64
	Missing   MetricSet
}

// Target selects what a Reader reads: a single process tree or the whole host.
type Target struct {
	PID    int32
	System bool
}

// ProcessTarget targets the process with the given pid.
func ProcessTarget(pid int) Target {
	//nolint:gosec // G115: pids fit in int32 on every supported platform.
	return Target{PID: int32(pid)}
}

// SystemTarget targets host-wide counters.
func SystemTarget() Target {
	return Target{System: true}
}

// Status is the outcome of profiling one job.
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusSpawnFailed Status = "spawn_failed"
	StatusFailed      Status = "failed"
	StatusTimeout     Status = "timeout"
	StatusCancelled   Status = "cancelled"
	StatusSkipped     Status = "skipped"
)

// Record is the aggregated measurement of one job.
type Record struct {
	Name    string `json:"name"`
	Command string `json:"command"`

	BytesRecv uint64 `json:"bytes_recv"`
	BytesSent uint64 `json:"bytes_sent"`
	// UserTime and CPUTime are CPU seconds; CPUTime is user plus system.
	UserTime float64 `json:"user_time"`
	CPUTime  float64 `json:"cpu_time"`
	// TotalTime is wall-clock seconds from spawn to observed exit.
	TotalTime float64 `json:"total_time"`
	// MaxMemoryUsage is the peak resident set size in bytes.
	MaxMemoryUsage uint64 `json:"max_memory_usage"`

	// ReturnCode is the exit code, -1 when unknown or killed by a signal.
	ReturnCode int    `json:"return_code"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
}

// newRecord returns an empty record for job.
func newRecord(job Job, status Status) Record {
	return Record{
		Name:       job.Name,
		Command:    job.Command,
		ReturnCode: -1,
		Status:     status,
	}
}

// Usage is the folded result of a sampling run.
type Usage struct {
	Samples   int
	PeakRSS   uint64
	CPUUser   float64
	CPUSystem float64
	// Missing accumulates metrics that were unavailable in at least one sample.
	Missing MetricSet
}

// fold merges a snapshot. A cumulative value lower than the previous one is dropped.
func (u *Usage) fold(s Snapshot) {
	u.Samples++
	u.Missing |= s.Missing

	if !s.Missing.Has(MetricRSS) && s.RSS > u.PeakRSS {
		u.PeakRSS = s.RSS
	}
	if s.Missing.Has(MetricCPU) {
		return
	}
	if s.CPUUser >= u.CPUUser {
		u.CPUUser = s.CPUUser
	}
	if s.CPUSystem >= u.CPUSystem {
		u.CPUSystem = s.CPUSystem
	}
}

// foldPeak merges a kernel high-water mark reading.
func (u *Usage) foldPeak(peak uint64) {
	if peak > u.PeakRSS {
		u.PeakRSS = peak
	}
}
