package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/rendernode/internal/config"
	"github.com/smazurov/rendernode/internal/events"
	"github.com/smazurov/rendernode/internal/logging"
	"github.com/smazurov/rendernode/internal/render"
)

// CreateRenderCmd creates the render command.
func CreateRenderCmd() *cobra.Command {
	opts := &config.Options{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a frame range with parallel aerender processes",
		Long: `Splits the frame range into one contiguous range per worker, launches one aerender per range ` +
			`and supervises them until they exit. Image sequences render straight into the output pattern; ` +
			`single-file outputs render as segments that are stitched with ffmpeg.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := loadOptions(cmd, opts)
			if err != nil {
				return err
			}
			defer logging.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if code := render.New(*opts, events.New(), logger).Run(ctx); code != render.ExitOK {
				return ExitError{Code: code}
			}
			return nil
		},
	}
	bindOptions(cmd, opts)
	return cmd
}
