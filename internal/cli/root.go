// Package cli wires the perfprobe commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/perfprobe/internal/cli/helpers"
	"github.com/coral-mesh/perfprobe/internal/cli/history"
	"github.com/coral-mesh/perfprobe/internal/cli/run"
	"github.com/coral-mesh/perfprobe/pkg/version"
)

var global helpers.GlobalFlags

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "perfprobe",
		Short: "perfprobe - profile the resource usage of commands",
		Long: `Run a list of commands one after another and measure what each one used:
CPU time (user and system), wall-clock time, peak resident memory and
network bytes sent and received.

Results are written as a CSV, JSON or table report and can be kept in a
local DuckDB history for later comparison.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	global.AddFlags(cmd.PersistentFlags())

	cmd.AddCommand(run.NewRunCmd(&global))
	cmd.AddCommand(history.NewHistoryCmd(&global))
	cmd.AddCommand(newStatusCmd(&global))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			cmd.Printf("perfprobe version %s\n", info.Version)
			cmd.Printf("Git commit: %s\n", info.GitCommit)
			cmd.Printf("Build date: %s\n", info.BuildDate)
			cmd.Printf("Go version: %s\n", info.GoVersion)
			cmd.Printf("Platform:   %s\n", info.Platform)
		},
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
