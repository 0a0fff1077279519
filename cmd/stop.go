package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/rendernode/internal/logging"
	"github.com/smazurov/rendernode/internal/stopper"
)

// CreateStopCmd creates the stop command.
func CreateStopCmd() *cobra.Command {
	var opts stopper.Options
	var logLevel string

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Terminate a running render and every child it launched",
		Long: `Reads the runner pid file, the children pid file and optionally the runner log, then stops ` +
			`every child process tree before the runner itself. Each tree gets a graceful signal and is ` +
			`force-killed after the grace window.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logging.Initialize(logging.Config{Level: logLevel}); err != nil {
				return err
			}
			defer logging.Close()
			opts.Logger = logging.GetLogger("stop")

			report, err := stopper.Stop(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(report.Targets) == 0 {
				fmt.Fprintln(out, "Nothing to stop")
				return nil
			}
			for _, term := range report.Terminated {
				fmt.Fprintf(out, "pid %d (%d processes): %s\n", term.PID, len(term.Tree), term.Outcome)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.PIDFile, "pid-file", "", "Runner pid file (required)")
	cmd.Flags().StringVar(&opts.ChildPIDsFile, "child-pids-file", "", "Children pid file (default: next to --pid-file)")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "Runner log file to scan for child pids")
	cmd.Flags().StringVar(&opts.StopLog, "stop-log", "", "Stop log (default: next to --pid-file)")
	cmd.Flags().DurationVar(&opts.Grace, "grace", stopper.DefaultGrace, "Grace window before force-killing a process tree")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")
	_ = cmd.MarkFlagRequired("pid-file")
	return cmd
}
