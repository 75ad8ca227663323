// Package run implements the perfprobe run command.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/perfprobe/internal/cli/helpers"
	"github.com/coral-mesh/perfprobe/internal/collector"
	"github.com/coral-mesh/perfprobe/internal/config"
	"github.com/coral-mesh/perfprobe/internal/constants"
	perrors "github.com/coral-mesh/perfprobe/internal/errors"
	"github.com/coral-mesh/perfprobe/internal/jobs"
	"github.com/coral-mesh/perfprobe/internal/profiler"
	"github.com/coral-mesh/perfprobe/internal/report"
	"github.com/coral-mesh/perfprobe/internal/store"
	"github.com/coral-mesh/perfprobe/internal/sys/shell"
	"github.com/coral-mesh/perfprobe/pkg/version"
)

// stdoutTarget writes the report to stdout instead of a file.
const stdoutTarget = "-"

type options struct {
	output          string
	format          string
	interval        time.Duration
	timeout         time.Duration
	gracePeriod     time.Duration
	includeChildren bool
	useShell        bool
	store           bool
	dbPath          string
}

func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.output, "output", "o", "", "Report file, '-' for stdout (default report.csv)")
	helpers.AddFormatFlag(cmd, &o.format, report.FormatCSV, report.Formats)
	cmd.Flags().DurationVar(&o.interval, "interval", 0, "Sampling interval (default 50ms)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Per-job timeout, 0 disables it")
	cmd.Flags().DurationVar(&o.gracePeriod, "grace-period", 0, "Delay between SIGTERM and SIGKILL (default 5s)")
	cmd.Flags().BoolVar(&o.includeChildren, "include-children", true, "Sum CPU and memory over child processes")
	cmd.Flags().BoolVar(&o.useShell, "shell", false, "Run commands through /bin/sh -c")
	cmd.Flags().BoolVar(&o.store, "store", false, "Save the run to the history database")
	cmd.Flags().StringVar(&o.dbPath, "db", "", "History database path (implies --store)")
}

// applyFlags copies explicitly set flags over the loaded configuration.
func (o *options) applyFlags(flags *pflag.FlagSet) config.FlagsFunc {
	return func(cfg *config.Config) error {
		if flags.Changed("output") {
			cfg.Report.Output = o.output
		}
		if flags.Changed("format") {
			cfg.Report.Format = o.format
		}
		if flags.Changed("interval") {
			cfg.Sampling.Interval = o.interval
		}
		if flags.Changed("timeout") {
			cfg.Execution.Timeout = o.timeout
		}
		if flags.Changed("grace-period") {
			cfg.Execution.GracePeriod = o.gracePeriod
		}
		if flags.Changed("include-children") {
			cfg.Sampling.IncludeChildren = o.includeChildren
		}
		if flags.Changed("shell") {
			cfg.Execution.UseShell = o.useShell
		}
		if flags.Changed("store") {
			cfg.Store.Enabled = o.store
		}
		if flags.Changed("db") {
			cfg.Store.Path = o.dbPath
			cfg.Store.Enabled = true
		}
		return nil
	}
}

// NewRunCmd creates the 'run' command.
func NewRunCmd(global *helpers.GlobalFlags) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "run <jobs-file>",
		Short: "Profile every command of a job file",
		Long: `Run each command of a job file one after another and record its resource usage:
CPU time, wall-clock time, peak memory and network bytes.

The job file is JSON (default) or YAML (.yaml/.yml):
  {"commands": [{"name": "build", "command": "make -j4"}]}

Network bytes are read from system-wide interface counters and include
traffic from other processes running at the same time.

Examples:
  perfprobe run jobs.json
  perfprobe run jobs.yaml --output - --format table
  perfprobe run jobs.json --timeout 5m --store
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.LoadConfig(opts.applyFlags(cmd.Flags()))
			if err != nil {
				return err
			}
			logger := helpers.NewLogger(cfg, cmd.ErrOrStderr())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return execute(ctx, cfg, args[0], cmd.OutOrStdout(), logger)
		},
	}

	opts.addFlags(cmd)
	return cmd
}

func execute(ctx context.Context, cfg *config.Config, jobsPath string, stdout io.Writer, logger zerolog.Logger) error {
	jobList, err := jobs.Load(jobsPath)
	if err != nil {
		return err
	}

	var (
		history *store.Store
		run     *store.RunRow
	)
	if cfg.Store.Enabled {
		history, err = store.Open(ctx, cfg.Store.Path, store.Options{}, logger)
		if err != nil {
			return err
		}
		defer perrors.DeferClose(logger, history, "Failed to close history database")

		run, err = store.BeginRun(collector.CollectHostInfo(ctx, logger), version.Version, len(jobList))
		if err != nil {
			return err
		}
	}

	session := profiler.NewSession(
		profiler.NewShellSpawner(shell.Config{UseShell: cfg.Execution.UseShell}),
		profiler.NewSnapshotReader(profiler.ReaderOptions{IncludeChildren: cfg.Sampling.IncludeChildren}),
		profiler.SessionConfig{
			Interval:    cfg.Sampling.Interval,
			Timeout:     cfg.Execution.Timeout,
			GracePeriod: cfg.Execution.GracePeriod,
		},
		logger,
	)

	runner := profiler.NewRunner(session, logger).OnRecord(func(i int, rec profiler.Record) {
		logger.Info().
			Str("progress", fmt.Sprintf("%d/%d", i+1, len(jobList))).
			Str("job", rec.Name).
			Str("status", string(rec.Status)).
			Msg("Job done")
	})

	records, runErr := runner.RunAll(ctx, jobList)

	if err := writeReport(cfg.Report, records, stdout); err != nil {
		return errors.Join(runErr, fmt.Errorf("write report: %w", err))
	}

	if history != nil {
		// A cancelled batch is still saved with its partial records.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultQueryTimeout)
		defer cancel()
		if err := history.SaveRun(saveCtx, run, records); err != nil {
			return errors.Join(runErr, err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("profiling run incomplete: %w", runErr)
	}
	return nil
}

func writeReport(cfg config.ReportConfig, records []profiler.Record, stdout io.Writer) error {
	format := report.Format(cfg.Format)
	if cfg.Output == stdoutTarget {
		return report.Write(stdout, format, records)
	}
	return report.WriteFile(cfg.Output, format, records)
}
