package helpers

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/perfprobe/internal/report"
)

func TestValidateFormat(t *testing.T) {
	got, err := ValidateFormat("json", report.Formats)
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, got)

	_, err = ValidateFormat("xml", report.Formats)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv, json, table")
}

func TestAddFormatFlag(t *testing.T) {
	var format string
	cmd := &cobra.Command{Use: "test"}
	AddFormatFlag(cmd, &format, report.FormatTable, report.Formats)

	require.NoError(t, cmd.Flags().Parse([]string{"-f", "csv"}))
	assert.Equal(t, "csv", format)
	assert.Equal(t, "table", cmd.Flags().Lookup("format").DefValue)
}
