package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/perfprobe/internal/profiler"
)

var sampleRecords = []profiler.Record{
	{
		Name:           "list",
		Command:        "ls -la",
		BytesRecv:      10,
		BytesSent:      20,
		UserTime:       0.001,
		CPUTime:        0.0025,
		TotalTime:      0.01,
		MaxMemoryUsage: 2 << 20,
		ReturnCode:     0,
		Status:         profiler.StatusCompleted,
	},
	{
		Name:       "missing",
		Command:    "/nope, really",
		ReturnCode: -1,
		Status:     profiler.StatusSpawnFailed,
		Error:      `spawn "/nope" (not_found): no such file`,
	},
}

var expectedHeader = []string{
	"name", "command", "bytes_recv", "bytes_sent", "user_time", "cpu_time",
	"total_time", "max_memory_usage", "return_code", "status", "error",
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleRecords))

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, expectedHeader, lines[0])
	assert.Equal(t, []string{
		"list", "ls -la", "10", "20", "0.001000", "0.002500", "0.010000", "2097152", "0", "completed", "",
	}, lines[1])
	assert.Equal(t, "/nope, really", lines[2][1], "commas must be quoted")
	assert.Equal(t, "-1", lines[2][8])
	assert.Equal(t, "spawn_failed", lines[2][9])
}

func TestWrite_CSVEmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, nil))

	assert.Equal(t, strings.Join(expectedHeader, ",")+"\n", buf.String())
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleRecords))

	var rows []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "list", rows[0].Name)
	assert.Equal(t, uint64(2<<20), rows[0].MaxMemoryUsage)
	assert.Equal(t, "spawn_failed", rows[1].Status)
}

func TestWrite_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatTable, sampleRecords))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "completed")
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("xml"), sampleRecords)
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	require.NoError(t, WriteFile(path, FormatCSV, sampleRecords))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "name,command,"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files may remain")
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "nope", "report.csv"), FormatCSV, sampleRecords)
	assert.Error(t, err)
}

func TestRowsPreservesOrder(t *testing.T) {
	rows := Rows(sampleRecords)
	require.Len(t, rows, len(sampleRecords))
	for i := range rows {
		assert.Equal(t, sampleRecords[i].Name, rows[i].Name)
	}
}
