package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var flags analysisFlags

	cmd := &cobra.Command{
		Use:   "export [paths...]",
		Short: "Analyse inputs and store the dependency graphs in Neo4j",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("export: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if err = st.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("export: %w", err)
			}

			a, err := flags.run(ctx, cmd, logger, args)
			if err != nil {
				return err
			}
			if err = st.SaveAnalysis(ctx, a); err != nil {
				return fmt.Errorf("export: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported run %s (%d classes, %d class cycles, %d package cycles)\n",
				a.ID, len(a.Classes), len(a.ClassCycles), len(a.PackageCycles))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
