package duckdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterpolateQuery(t *testing.T) {
	started := time.Date(2025, 12, 13, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		query string
		args  []any
		want  string
	}{
		{name: "no args", query: "SELECT * FROM runs", want: "SELECT * FROM runs"},
		{name: "string", query: "WHERE run_id = ?", args: []any{"r1"}, want: "WHERE run_id = 'r1'"},
		{name: "escaped quote", query: "WHERE name = ?", args: []any{"it's"}, want: "WHERE name = 'it''s'"},
		{name: "signed", query: "LIMIT ?", args: []any{int64(-3)}, want: "LIMIT -3"},
		{name: "unsigned", query: "WHERE bytes_sent > ?", args: []any{uint64(1024)}, want: "WHERE bytes_sent > 1024"},
		{name: "float", query: "WHERE cpu_time > ?", args: []any{1.25}, want: "WHERE cpu_time > 1.25"},
		{name: "bool", query: "WHERE a = ? AND b = ?", args: []any{true, false}, want: "WHERE a = true AND b = false"},
		{name: "null", query: "WHERE error = ?", args: []any{nil}, want: "WHERE error = NULL"},
		{name: "time", query: "WHERE started_at >= ?", args: []any{started}, want: "WHERE started_at >= '2025-12-13T10:00:00Z'"},
		{name: "time drops monotonic clock", query: "?", args: []any{time.Now()}, want: ""},
		{name: "fallback", query: "WHERE d = ?", args: []any{time.Second}, want: "WHERE d = '1s'"},
		{name: "whitespace", query: "SELECT *\n\tFROM runs", want: "SELECT * FROM runs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpolateQuery(tt.query, tt.args)
			if tt.want == "" {
				assert.NotContains(t, got, "m=")
				assert.NotContains(t, got, "?")
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpolateQuery_HistoryQuery(t *testing.T) {
	since := time.Date(2025, 12, 13, 10, 0, 0, 0, time.UTC)

	query, args := NewQueryBuilder("runs").
		TimeColumn("started_at").
		TimeRange(since, since.Add(time.Hour)).
		Eq("hostname", "build-01").
		MustBuild()

	got := InterpolateQuery(query, args)
	assert.Equal(t, "SELECT * FROM runs WHERE started_at >= '2025-12-13T10:00:00Z' AND started_at <= '2025-12-13T11:00:00Z' AND hostname = 'build-01'", got)
}
