package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/internal/advisor"
	"github.com/ajitpratap0/classcycle/internal/models"
)

func adviseCmd() *cobra.Command {
	var (
		flags    analysisFlags
		maxCount int
		packages bool
	)

	cmd := &cobra.Command{
		Use:   "advise [paths...]",
		Short: "Ask Claude how to break the largest dependency cycles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if cfg.Claude.APIKey == "" {
				return fmt.Errorf("advise: no Claude API key configured (set ANTHROPIC_API_KEY)")
			}
			if !cmd.Flags().Changed("max") {
				maxCount = cfg.Claude.MaxAdvice
			}
			if maxCount <= 0 {
				return fmt.Errorf("advise: --max must be greater than 0")
			}

			a, err := flags.run(ctx, cmd, logger, args)
			if err != nil {
				return err
			}

			level := models.LevelClass
			if packages {
				level = models.LevelPackage
			}
			cycles := largestFirst(a.Cycles(level))
			if len(cycles) == 0 {
				fmt.Fprintf(out, "No %s cycles found.\n", level)
				return nil
			}
			if len(cycles) > maxCount {
				cycles = cycles[:maxCount]
			}

			adv := advisor.NewAdvisor(cfg.Claude.APIKey, cfg.Claude.Model, logger)
			for i, c := range cycles {
				advice, adviseErr := adv.Advise(ctx, c, advisor.CycleEdges(a, c))
				if adviseErr != nil {
					return fmt.Errorf("advise: %w", adviseErr)
				}
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "== %s (%d members, layer %d)\n%s\n", c.Name, c.Size(), c.Layer, advice)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&maxCount, "max", 0, "maximum number of cycles to ask about (default from config)")
	cmd.Flags().BoolVarP(&packages, "packages", "p", false, "advise on package cycles instead of class cycles")
	return cmd
}
