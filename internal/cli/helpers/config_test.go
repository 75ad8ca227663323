package helpers

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/perfprobe/internal/config"
)

func TestGlobalFlags_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("report:\n  format: json\nlogging:\n  level: warn\n"), 0o600))

	g := &GlobalFlags{ConfigPath: path, LogLevel: "debug"}
	cfg, err := g.LoadConfig(func(cfg *config.Config) error {
		cfg.Report.Output = "-"
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Report.Format)
	assert.Equal(t, "-", cfg.Report.Output)
	assert.Equal(t, "debug", cfg.Logging.Level, "--log-level wins over the file")
}

func TestGlobalFlags_LoadConfigInvalid(t *testing.T) {
	t.Chdir(t.TempDir())

	g := &GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), LogLevel: "loud"}
	_, err := g.LoadConfig(nil)
	assert.Error(t, err)
}

func TestNewLogger_NotTerminalIsJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.DefaultConfig()

	logger := NewLogger(cfg, &buf)
	logger.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"message":"hello"`)
}
