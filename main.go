package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/rendernode/cmd"
	"github.com/smazurov/rendernode/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:   "rendernode",
		Short: "Local render-farm orchestrator for After Effects",
		Long: `rendernode splits a frame range across parallel aerender processes on one machine, ` +
			`supervises them, offloads finished files from scratch and stitches single-file outputs.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.AddCommand(cmd.CreateRenderCmd())
	root.AddCommand(cmd.CreatePlanCmd())
	root.AddCommand(cmd.CreateStopCmd())

	if err := root.Execute(); err != nil {
		var exitErr cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
