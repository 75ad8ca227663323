package testutil

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
)

// LogEnv routes test logs to t.Log when set to a zerolog level name.
const LogEnv = "PERFPROBE_TEST_LOG"

// NewTestLogger returns a disabled logger, or one writing to t.Log at the
// level named by $PERFPROBE_TEST_LOG.
func NewTestLogger(t *testing.T) zerolog.Logger {
	level, err := zerolog.ParseLevel(os.Getenv(LogEnv))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: tWriter{t}, NoColor: true}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

type tWriter struct {
	t *testing.T
}

func (w tWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
