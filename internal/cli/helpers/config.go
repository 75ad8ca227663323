package helpers

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/coral-mesh/perfprobe/internal/config"
	"github.com/coral-mesh/perfprobe/internal/logging"
)

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
}

// AddFlags registers the persistent flags.
func (g *GlobalFlags) AddFlags(flags *pflag.FlagSet) {
	flags.StringVar(&g.ConfigPath, "config", "", "Config file (default $PERFPROBE_CONFIG or ~/.perfprobe/config.yaml)")
	flags.StringVar(&g.LogLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
}

// LoadConfig loads the layered configuration. apply may override values from
// command flags; the global --log-level is applied last.
func (g *GlobalFlags) LoadConfig(apply config.FlagsFunc) (*config.Config, error) {
	return config.NewLayeredLoader().
		WithFlags(func(cfg *config.Config) error {
			if apply != nil {
				if err := apply(cfg); err != nil {
					return err
				}
			}
			if g.LogLevel != "" {
				cfg.Logging.Level = g.LogLevel
			}
			return nil
		}).
		Load(config.ResolveConfigPath(g.ConfigPath))
}

// NewLogger builds the command logger writing to out. Console formatting is
// only used when out is a terminal, so redirected logs stay JSON.
func NewLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	return logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty && isTerminal(out),
		Output: out,
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
