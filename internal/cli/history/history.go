// Package history implements the perfprobe history commands.
package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/perfprobe/internal/cli/helpers"
	"github.com/coral-mesh/perfprobe/internal/config"
	"github.com/coral-mesh/perfprobe/internal/constants"
	perrors "github.com/coral-mesh/perfprobe/internal/errors"
	"github.com/coral-mesh/perfprobe/internal/report"
	"github.com/coral-mesh/perfprobe/internal/store"
)

// NewHistoryCmd creates the 'history' command group.
func NewHistoryCmd(global *helpers.GlobalFlags) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query stored profiling runs",
		Long: `Query runs saved with 'perfprobe run --store'.

Examples:
  perfprobe history list --since 7d
  perfprobe history show 01936f3c-8c1e-7b4a-9d55-2f0e6c1f4a10 --format json
`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "History database path")

	open := func(cmd *cobra.Command) (*store.Store, zerolog.Logger, error) {
		cfg, err := global.LoadConfig(func(cfg *config.Config) error {
			if cmd.Flags().Changed("db") {
				cfg.Store.Path = dbPath
			}
			return nil
		})
		if err != nil {
			return nil, zerolog.Nop(), err
		}
		logger := helpers.NewLogger(cfg, cmd.ErrOrStderr())

		s, err := store.Open(cmd.Context(), cfg.Store.Path, store.Options{ReadOnly: true}, logger)
		if err != nil {
			return nil, logger, err
		}
		return s, logger, nil
	}

	cmd.AddCommand(newListCmd(open), newShowCmd(open))
	return cmd
}

type openFunc func(cmd *cobra.Command) (*store.Store, zerolog.Logger, error)

// runSummary is the table view of a stored run.
type runSummary struct {
	ID        string `header:"RUN ID" json:"run_id"`
	Started   string `header:"STARTED" json:"started_at"`
	Duration  string `header:"DURATION" json:"duration"`
	Host      string `header:"HOST" json:"hostname"`
	Jobs      int    `header:"JOBS" json:"jobs"`
	Completed int    `header:"COMPLETED" json:"completed"`
	Failed    int    `header:"FAILED" json:"failed"`
	Skipped   int    `header:"SKIPPED" json:"skipped"`
}

func summarize(runs []*store.RunRow) []runSummary {
	out := make([]runSummary, len(runs))
	for i, r := range runs {
		out[i] = runSummary{
			ID:        r.ID,
			Started:   r.StartedAt.Local().Format(time.DateTime),
			Duration:  r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
			Host:      r.Hostname,
			Jobs:      r.Jobs,
			Completed: r.Completed,
			Failed:    r.Failed,
			Skipped:   r.Skipped,
		}
	}
	return out
}

func newListCmd(open openFunc) *cobra.Command {
	var (
		format    string
		hostname  string
		limit     int
		offset    int
		timeFlags helpers.TimeFlags
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := helpers.ValidateFormat(format, report.Formats)
			if err != nil {
				return err
			}
			window, err := timeFlags.Parse(time.Now())
			if err != nil {
				return err
			}

			s, logger, err := open(cmd)
			if err != nil {
				return err
			}
			defer perrors.DeferClose(logger, s, "Failed to close history database")

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.DefaultQueryTimeout)
			defer cancel()

			return list(ctx, s, store.ListFilter{
				Since:    window.Start,
				Until:    window.End,
				Hostname: hostname,
				Limit:    limit,
				Offset:   offset,
			}, f, cmd.OutOrStdout())
		},
	}

	helpers.AddFormatFlag(cmd, &format, report.FormatTable, report.Formats)
	timeFlags.AddFlags(cmd.Flags())
	cmd.Flags().StringVar(&hostname, "host", "", "Only runs recorded on this host")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs, 0 for all")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many of the newest runs")

	return cmd
}

func list(ctx context.Context, s *store.Store, filter store.ListFilter, format report.Format, w io.Writer) error {
	runs, err := s.ListRuns(ctx, filter)
	if err != nil {
		return err
	}

	formatter, err := report.NewFormatter(format)
	if err != nil {
		return err
	}
	if format == report.FormatJSON {
		return formatter.Format(runs, w)
	}
	return formatter.Format(summarize(runs), w)
}

func newShowCmd(open openFunc) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the records of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := helpers.ValidateFormat(format, report.Formats)
			if err != nil {
				return err
			}

			s, logger, err := open(cmd)
			if err != nil {
				return err
			}
			defer perrors.DeferClose(logger, s, "Failed to close history database")

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.DefaultQueryTimeout)
			defer cancel()

			return show(ctx, s, args[0], f, cmd.OutOrStdout())
		},
	}

	helpers.AddFormatFlag(cmd, &format, report.FormatTable, report.Formats)
	return cmd
}

func show(ctx context.Context, s *store.Store, id string, format report.Format, w io.Writer) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	records, err := s.RunRecords(ctx, id)
	if err != nil {
		return err
	}

	if format == report.FormatTable {
		host := run.Host()
		if _, err := fmt.Fprintf(w, "Run %s on %s (%s/%s, %d cores), perfprobe %s\n\n",
			run.ID, host.Hostname, host.Platform, host.Arch, host.CPUCores, run.Version); err != nil {
			return err
		}
	}
	return report.Write(w, format, records)
}
