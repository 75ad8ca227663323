package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/perfprobe/internal/cli/helpers"
	"github.com/coral-mesh/perfprobe/internal/collector"
	"github.com/coral-mesh/perfprobe/internal/config"
	perrors "github.com/coral-mesh/perfprobe/internal/errors"
	"github.com/coral-mesh/perfprobe/internal/report"
	"github.com/coral-mesh/perfprobe/internal/store"
	"github.com/coral-mesh/perfprobe/pkg/version"
)

// environmentStatus is the output of `perfprobe status`.
type environmentStatus struct {
	Version    version.Info       `json:"version"`
	ConfigPath string             `json:"config_path"`
	Config     *config.Config     `json:"config"`
	Host       collector.HostInfo `json:"host"`
	History    historyStatus      `json:"history"`
}

type historyStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Runs   int    `json:"runs"`
	Error  string `json:"error,omitempty"`
}

// newStatusCmd creates the status command.
func newStatusCmd(global *helpers.GlobalFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show host, configuration and history database status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := helpers.ValidateFormat(format, []report.Format{report.FormatTable, report.FormatJSON})
			if err != nil {
				return err
			}

			cfg, err := global.LoadConfig(nil)
			if err != nil {
				return err
			}
			logger := helpers.NewLogger(cfg, cmd.ErrOrStderr())
			ctx := cmd.Context()

			st := environmentStatus{
				Version:    version.Get(),
				ConfigPath: config.ResolveConfigPath(global.ConfigPath),
				Config:     cfg,
				Host:       collector.CollectHostInfo(ctx, logger),
				History:    historyStatus{Path: cfg.Store.Path},
			}

			if _, err := os.Stat(cfg.Store.Path); err == nil {
				st.History.Exists = true
				s, err := store.Open(ctx, cfg.Store.Path, store.Options{ReadOnly: true}, logger)
				if err != nil {
					st.History.Error = err.Error()
				} else {
					defer perrors.DeferClose(logger, s, "Failed to close history database")
					runs, err := s.ListRuns(ctx, store.ListFilter{})
					st.History.Runs = len(runs)
					st.History.Error = perrors.Message(err)
				}
			}

			if f == report.FormatJSON {
				formatter, _ := report.NewFormatter(f)
				return formatter.Format(st, cmd.OutOrStdout())
			}
			return printStatus(cmd.OutOrStdout(), st)
		},
	}

	helpers.AddFormatFlag(cmd, &format, report.FormatTable, []report.Format{report.FormatTable, report.FormatJSON})
	return cmd
}

func printStatus(w io.Writer, st environmentStatus) error {
	history := "not created"
	switch {
	case st.History.Error != "":
		history = "error: " + st.History.Error
	case st.History.Exists:
		history = fmt.Sprintf("%d runs", st.History.Runs)
	}

	_, err := fmt.Fprintf(w, `Version:   %s
Config:    %s
Host:      %s (%s %s, %s)
Kernel:    %s
CPU:       %s (%d cores)
Memory:    %d MiB

Sampling:  every %s, children %t
Timeout:   %s (grace %s)
Report:    %s (%s)
History:   %s [%s]
`,
		st.Version.String(),
		st.ConfigPath,
		st.Host.Hostname, st.Host.Platform, st.Host.OS, st.Host.Arch,
		st.Host.KernelVersion,
		st.Host.CPUModel, st.Host.CPUCores,
		st.Host.MemoryTotal>>20,
		st.Config.Sampling.Interval, st.Config.Sampling.IncludeChildren,
		st.Config.Execution.Timeout, st.Config.Execution.GracePeriod,
		st.Config.Report.Output, st.Config.Report.Format,
		st.History.Path, history,
	)
	return err
}
