package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/report"
	"github.com/ajitpratap0/classcycle/internal/store"
)

func runsCmd() *cobra.Command {
	var (
		limit    int
		cyclesOf string
		packages bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List analysis runs stored in Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("runs: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if cyclesOf != "" {
				level := models.LevelClass
				if packages {
					level = models.LevelPackage
				}
				cycles, cyclesErr := st.Cycles(ctx, cyclesOf, level)
				if cyclesErr != nil {
					return fmt.Errorf("runs: %w", cyclesErr)
				}
				if len(cycles) == 0 {
					fmt.Fprintf(out, "Run %s has no %s cycles.\n", cyclesOf, level)
					return nil
				}
				fmt.Fprintln(out, report.CyclesTable(cycles))
				return nil
			}

			runs, err := st.ListRuns(ctx, limit)
			if err != nil {
				return fmt.Errorf("runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored.")
				return nil
			}
			fmt.Fprintln(out, report.RunsTable(runs))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultListLimit, "maximum number of runs to list")
	cmd.Flags().StringVar(&cyclesOf, "cycles", "", "show the cycles of the run with this id")
	cmd.Flags().BoolVarP(&packages, "packages", "p", false, "with --cycles, show package cycles")
	return cmd
}
