// Package cmd provides the CLI commands for spanlabel.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/spanlabel/internal/logging"
	"github.com/Aman-CERP/spanlabel/internal/output"
	"github.com/Aman-CERP/spanlabel/internal/profiling"
	"github.com/Aman-CERP/spanlabel/pkg/version"
)

// Global flags
var (
	debugMode      bool
	projectDir     string
	loggingCleanup func()
	profiles       profiling.Options
	profileRun     *profiling.Run
)

// ownLogging marks commands that set up logging themselves.
const ownLogging = "own-logging"

// NewRootCmd creates the root command for the spanlabel CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spanlabel",
		Short: "Label overlapping spans of text",
		Long: `spanlabel keeps labeled spans of text documents in a local SQLite database.

Spans may overlap. Overlapping spans form clusters; clicking inside a cluster
cycles through its members, and tab moves between annotations in order.

Start with:
  spanlabel label add PER
  spanlabel doc add news article.txt
  spanlabel annotate news`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("spanlabel version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.spanlabel/logs/ and stderr")
	cmd.PersistentFlags().StringVar(&projectDir, "config-dir", "", "Project directory holding .spanlabel.yaml (default: nearest project root)")

	cmd.PersistentFlags().StringVar(&profiles.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profiles.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profiles.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newDocCmd())
	cmd.AddCommand(newLabelCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newNoteCmd())
	cmd.AddCommand(newRelabelCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newAnnotateCmd())
	cmd.AddCommand(newFindCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfilingAndLogging(cmd *cobra.Command, _ []string) error {
	if profiles.Enabled() {
		run, err := profiling.Start(profiles)
		if err != nil {
			return err
		}
		profileRun = run
	}
	if _, ok := cmd.Annotations[ownLogging]; ok {
		return nil
	}
	cleanup, err := logging.SetupCLI(debugMode)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	if debugMode {
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("command", cmd.CommandPath()))
	}
	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profileRun != nil {
		err = profileRun.Stop()
		profileRun = nil
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command, canceling its context on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err != nil {
		output.New(root.ErrOrStderr()).Fail(err)
	}
	return err
}
