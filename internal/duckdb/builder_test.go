package duckdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Clauses(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		builder  *Builder
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "simple select",
			builder: NewQueryBuilder("runs"),
			wantSQL: "SELECT * FROM runs",
		},
		{
			name:    "select columns",
			builder: NewQueryBuilder("runs").Select("run_id", "hostname", "started_at"),
			wantSQL: "SELECT run_id, hostname, started_at FROM runs",
		},
		{
			name:    "select aggregations",
			builder: NewQueryBuilder("records").Select("status", "COUNT(*) as jobs", "MAX(max_memory_usage) as peak"),
			wantSQL: "SELECT status, COUNT(*) as jobs, MAX(max_memory_usage) as peak FROM records",
		},
		{
			name:     "time range default column",
			builder:  NewQueryBuilder("runs").TimeRange(start, end),
			wantSQL:  "SELECT * FROM runs WHERE timestamp >= ? AND timestamp <= ?",
			wantArgs: []any{start, end},
		},
		{
			name:     "time range custom column",
			builder:  NewQueryBuilder("runs").TimeColumn("started_at").TimeRange(start, end),
			wantSQL:  "SELECT * FROM runs WHERE started_at >= ? AND started_at <= ?",
			wantArgs: []any{start, end},
		},
		{
			name:     "time range open end",
			builder:  NewQueryBuilder("runs").TimeColumn("started_at").TimeRange(start, time.Time{}),
			wantSQL:  "SELECT * FROM runs WHERE started_at >= ?",
			wantArgs: []any{start},
		},
		{
			name:     "time range open start",
			builder:  NewQueryBuilder("runs").TimeColumn("started_at").TimeRange(time.Time{}, end),
			wantSQL:  "SELECT * FROM runs WHERE started_at <= ?",
			wantArgs: []any{end},
		},
		{
			name:    "time range fully open",
			builder: NewQueryBuilder("runs").TimeRange(time.Time{}, time.Time{}),
			wantSQL: "SELECT * FROM runs",
		},
		{
			name:     "eq",
			builder:  NewQueryBuilder("records").Eq("status", "completed"),
			wantSQL:  "SELECT * FROM records WHERE status = ?",
			wantArgs: []any{"completed"},
		},
		{
			name:    "eq with empty string skipped",
			builder: NewQueryBuilder("records").Eq("status", ""),
			wantSQL: "SELECT * FROM records",
		},
		{
			name:     "multiple eq",
			builder:  NewQueryBuilder("records").Eq("run_id", "r1").Eq("status", "failed"),
			wantSQL:  "SELECT * FROM records WHERE run_id = ? AND status = ?",
			wantArgs: []any{"r1", "failed"},
		},
		{
			name:     "comparisons",
			builder:  NewQueryBuilder("records").Gte("cpu_time", 1.5).Lte("total_time", 10.0),
			wantSQL:  "SELECT * FROM records WHERE cpu_time >= ? AND total_time <= ?",
			wantArgs: []any{1.5, 10.0},
		},
		{
			name:    "where without args",
			builder: NewQueryBuilder("records").Where("error IS NOT NULL"),
			wantSQL: "SELECT * FROM records WHERE error IS NOT NULL",
		},
		{
			name:    "group by",
			builder: NewQueryBuilder("records").Select("run_id", "status", "COUNT(*)").GroupBy("run_id", "status"),
			wantSQL: "SELECT run_id, status, COUNT(*) FROM records GROUP BY run_id, status",
		},
		{
			name:    "order by mixed",
			builder: NewQueryBuilder("runs").OrderBy("hostname", "-started_at"),
			wantSQL: "SELECT * FROM runs ORDER BY hostname, started_at DESC",
		},
		{
			name:     "limit and offset",
			builder:  NewQueryBuilder("runs").Limit(20).Offset(40),
			wantSQL:  "SELECT * FROM runs LIMIT ? OFFSET ?",
			wantArgs: []any{20, 40},
		},
		{
			name:    "zero limit and offset ignored",
			builder: NewQueryBuilder("runs").Limit(0).Offset(0),
			wantSQL: "SELECT * FROM runs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args, err := tt.builder.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestBuilder_RunHistoryQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	q, args, err := NewQueryBuilder("runs").
		Select("run_id", "hostname", "started_at", "jobs").
		TimeColumn("started_at").
		TimeRange(since, time.Time{}).
		Eq("hostname", "build-01").
		OrderBy("-started_at").
		Limit(10).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "SELECT run_id, hostname, started_at, jobs FROM runs WHERE started_at >= ? AND hostname = ? ORDER BY started_at DESC LIMIT ?", q)
	assert.Equal(t, []any{since, "build-01", 10}, args)
}

func TestBuilder_BuildIsRepeatable(t *testing.T) {
	b := NewQueryBuilder("records").Eq("run_id", "r1").Limit(5)

	q1, args1, err := b.Build()
	require.NoError(t, err)
	q2, args2, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, q1, q2)
	assert.Equal(t, args1, args2)
	assert.Len(t, args2, 2)
}

func TestBuilder_ErrorNoTable(t *testing.T) {
	_, _, err := NewQueryBuilder("").Build()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "table name is required")
}

func TestBuilder_MustBuild(t *testing.T) {
	q, args := NewQueryBuilder("runs").Eq("run_id", "abc").MustBuild()

	assert.Equal(t, "SELECT * FROM runs WHERE run_id = ?", q)
	assert.Equal(t, []any{"abc"}, args)
}

func TestBuilder_MustBuildPanic(t *testing.T) {
	assert.Panics(t, func() {
		NewQueryBuilder("").MustBuild()
	})
}
