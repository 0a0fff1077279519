package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/smazurov/rendernode/internal/config"
	"github.com/smazurov/rendernode/internal/logging"
	"github.com/smazurov/rendernode/internal/render"
)

// CreatePlanCmd creates the plan command.
func CreatePlanCmd() *cobra.Command {
	opts := &config.Options{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the ranges, worker count and commands a render would use",
		Long: `Resolves the configuration exactly like render, then prints the sizing decision and one row ` +
			`per child without creating any files or launching anything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := loadOptions(cmd, opts)
			if err != nil {
				return err
			}
			defer logging.Close()

			planOpts := *opts
			planOpts.DryRun = true
			plan, err := render.BuildPlan(cmd.Context(), planOpts, render.DefaultEnv(), logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			d := plan.Decision
			fmt.Fprintf(out, "Frames %s, %d worker(s)", plan.Range, plan.Workers)
			if d.Auto {
				fmt.Fprintf(out, " (auto: ram %d, threads %d)", d.MaxByRAM, d.MaxByThreads)
			}
			fmt.Fprintln(out)
			if plan.Segmented {
				fmt.Fprintf(out, "Single-file output, %d segments stitched with %s\n", len(plan.Segments), plan.FFmpegPath)
			}
			fmt.Fprintln(out, renderPlanTable(plan))
			for _, spec := range plan.Specs() {
				fmt.Fprintf(out, "child[%d]: %s\n", spec.Index, strings.Join(spec.Args, " "))
			}
			return nil
		},
	}
	bindOptions(cmd, opts)
	return cmd
}

func renderPlanTable(plan *render.Plan) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Child", "Frames", "Count", "CPUs", "Output"})

	for _, spec := range plan.Specs() {
		cpus := "-"
		if len(spec.Affinity) > 0 {
			ids := make([]string, len(spec.Affinity))
			for i, id := range spec.Affinity {
				ids[i] = strconv.Itoa(id)
			}
			cpus = strings.Join(ids, ",")
		}
		tw.AppendRow(table.Row{spec.Index, spec.Range.String(), spec.Range.Len(), cpus, spec.Output})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})
	return tw.Render()
}
