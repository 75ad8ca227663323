// Package report writes profiling records as CSV, JSON or a table.
package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/coral-mesh/perfprobe/internal/profiler"
	"github.com/coral-mesh/perfprobe/internal/safe"
)

// Row is one report line.
type Row struct {
	Name           string  `header:"name" json:"name"`
	Command        string  `header:"command" json:"command"`
	BytesRecv      uint64  `header:"bytes_recv" json:"bytes_recv"`
	BytesSent      uint64  `header:"bytes_sent" json:"bytes_sent"`
	UserTime       float64 `header:"user_time" format:"%.6f" json:"user_time"`
	CPUTime        float64 `header:"cpu_time" format:"%.6f" json:"cpu_time"`
	TotalTime      float64 `header:"total_time" format:"%.6f" json:"total_time"`
	MaxMemoryUsage uint64  `header:"max_memory_usage" json:"max_memory_usage"`
	ReturnCode     int     `header:"return_code" json:"return_code"`
	Status         string  `header:"status" json:"status"`
	Error          string  `header:"error" json:"error,omitempty"`
}

// Rows converts records to report rows, keeping their order.
func Rows(records []profiler.Record) []Row {
	rows := make([]Row, len(records))
	for i, rec := range records {
		rows[i] = Row{
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
	return rows
}

// Write writes records to w in the given format.
func Write(w io.Writer, format Format, records []profiler.Record) error {
	formatter, err := NewFormatter(format)
	if err != nil {
		return err
	}
	return formatter.Format(Rows(records), w)
}

// WriteFile writes the report to path atomically. An existing report is replaced
// only once the new one has been fully written.
func WriteFile(path string, format Format, records []profiler.Record) error {
	var buf bytes.Buffer
	if err := Write(&buf, format, records); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}

	if err := safe.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
