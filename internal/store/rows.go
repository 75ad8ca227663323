package store

import (
	"time"

	"github.com/coral-mesh/perfprobe/internal/collector"
	"github.com/coral-mesh/perfprobe/internal/profiler"
)

// RunRow is one profiling batch.
type RunRow struct {
	ID         string    `duckdb:"run_id,pk,immutable" json:"run_id"`
	StartedAt  time.Time `duckdb:"started_at,immutable" json:"started_at"`
	FinishedAt time.Time `duckdb:"finished_at" json:"finished_at"`
	Version    string    `duckdb:"version" json:"version"`

	Jobs      int `duckdb:"jobs" json:"jobs"`
	Completed int `duckdb:"completed" json:"completed"`
	Failed    int `duckdb:"failed" json:"failed"`
	Skipped   int `duckdb:"skipped" json:"skipped"`

	Hostname      string `duckdb:"hostname" json:"hostname"`
	OS            string `duckdb:"os" json:"os"`
	Platform      string `duckdb:"platform" json:"platform"`
	KernelVersion string `duckdb:"kernel_version" json:"kernel_version"`
	Arch          string `duckdb:"arch" json:"arch"`
	CPUModel      string `duckdb:"cpu_model" json:"cpu_model"`
	CPUCores      int    `duckdb:"cpu_cores" json:"cpu_cores"`
	MemoryTotal   uint64 `duckdb:"memory_total" json:"memory_total"`
}

// Host returns the host information captured with the run.
func (r *RunRow) Host() collector.HostInfo {
	return collector.HostInfo{
		Hostname:      r.Hostname,
		OS:            r.OS,
		Platform:      r.Platform,
		KernelVersion: r.KernelVersion,
		Arch:          r.Arch,
		CPUModel:      r.CPUModel,
		CPUCores:      r.CPUCores,
		MemoryTotal:   r.MemoryTotal,
	}
}

func (r *RunRow) setHost(h collector.HostInfo) {
	r.Hostname = h.Hostname
	r.OS = h.OS
	r.Platform = h.Platform
	r.KernelVersion = h.KernelVersion
	r.Arch = h.Arch
	r.CPUModel = h.CPUModel
	r.CPUCores = h.CPUCores
	r.MemoryTotal = h.MemoryTotal
}

// summarize sets the job counters from records. Anything neither completed
// nor skipped counts as failed.
func (r *RunRow) summarize(records []profiler.Record) {
	r.Jobs = len(records)
	r.Completed, r.Failed, r.Skipped = 0, 0, 0
	for _, rec := range records {
		switch rec.Status {
		case profiler.StatusCompleted:
			r.Completed++
		case profiler.StatusSkipped:
			r.Skipped++
		default:
			r.Failed++
		}
	}
}

// RecordRow is one job record of a run.
type RecordRow struct {
	RunID string `duckdb:"run_id,pk,immutable"`
	Index int    `duckdb:"idx,pk,immutable"`

	Name           string  `duckdb:"name"`
	Command        string  `duckdb:"command"`
	BytesRecv      uint64  `duckdb:"bytes_recv"`
	BytesSent      uint64  `duckdb:"bytes_sent"`
	UserTime       float64 `duckdb:"user_time"`
	CPUTime        float64 `duckdb:"cpu_time"`
	TotalTime      float64 `duckdb:"total_time"`
	MaxMemoryUsage uint64  `duckdb:"max_memory_usage"`
	ReturnCode     int     `duckdb:"return_code"`
	Status         string  `duckdb:"status"`
	Error          string  `duckdb:"error"`
}

func newRecordRow(runID string, idx int, rec profiler.Record) *RecordRow {
	return &RecordRow{
		RunID:          runID,
		Index:          idx,
		Name:           rec.Name,
		Command:        rec.Command,
		BytesRecv:      rec.BytesRecv,
		BytesSent:      rec.BytesSent,
		UserTime:       rec.UserTime,
		CPUTime:        rec.CPUTime,
		TotalTime:      rec.TotalTime,
		MaxMemoryUsage: rec.MaxMemoryUsage,
		ReturnCode:     rec.ReturnCode,
		Status:         string(rec.Status),
		Error:          rec.Error,
	}
}

// Record converts the row back into a profiler record.
func (r *RecordRow) Record() profiler.Record {
	return profiler.Record{
		Name:           r.Name,
		Command:        r.Command,
		BytesRecv:      r.BytesRecv,
		BytesSent:      r.BytesSent,
		UserTime:       r.UserTime,
		CPUTime:        r.CPUTime,
		TotalTime:      r.TotalTime,
		MaxMemoryUsage: r.MaxMemoryUsage,
		ReturnCode:     r.ReturnCode,
		Status:         profiler.Status(r.Status),
		Error:          r.Error,
	}
}
