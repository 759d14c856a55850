package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/report"
)

func cyclesCmd() *cobra.Command {
	var (
		flags    analysisFlags
		packages bool
	)

	cmd := &cobra.Command{
		Use:   "cycles [paths...]",
		Short: "Print the dependency cycles of class files, directories or jars",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			a, err := flags.run(cmd.Context(), cmd, logger, args)
			if err != nil {
				return err
			}

			level := models.LevelClass
			if packages {
				level = models.LevelPackage
			}
			cycles := a.Cycles(level)
			out := cmd.OutOrStdout()
			if len(cycles) == 0 {
				fmt.Fprintf(out, "No %s cycles found.\n", level)
				return nil
			}
			fmt.Fprintln(out, report.CyclesTable(cycles))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&packages, "packages", "p", false, "show package cycles instead of class cycles")
	return cmd
}
