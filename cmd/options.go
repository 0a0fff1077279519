package cmd

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/spf13/cobra"

	"github.com/smazurov/rendernode/internal/config"
	"github.com/smazurov/rendernode/internal/logging"
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// bindOptions registers every config.Options flag on cmd.
func bindOptions(cmd *cobra.Command, opts *config.Options) {
	if err := config.BindFlags(cmd.Flags(), opts); err != nil {
		panic(err)
	}
}

// loadOptions merges the config file and environment into opts and
// initializes logging from the result.
func loadOptions(cmd *cobra.Command, opts *config.Options) (*slog.Logger, error) {
	if err := config.LoadConfig(opts, cmd); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	loggingConfig := config.LoadLoggingConfig(opts.Config)
	loggingConfig.Level = opts.LoggingLevel
	loggingConfig.Format = opts.LoggingFormat
	loggingConfig.File = opts.LogFile
	maps.Copy(loggingConfig.Modules, opts.ModuleLevels())
	if err := logging.Initialize(loggingConfig); err != nil {
		return nil, err
	}
	return logging.GetLogger("render"), nil
}
