package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check connectivity to required services",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			allOK := true

			// Check Neo4j
			st, err := newStore(ctx, logger)
			if err != nil {
				fmt.Fprintf(out, "Neo4j: FAIL (%v)\n", err)
				allOK = false
			} else {
				defer func() { _ = st.Close() }()
				if err := st.EnsureSchema(ctx); err != nil {
					fmt.Fprintf(out, "Neo4j: FAIL (%v)\n", err)
					allOK = false
				} else {
					fmt.Fprintln(out, "Neo4j: OK")
				}
			}

			// Check Claude API key
			if cfg.Claude.APIKey == "" {
				fmt.Fprintln(out, "Claude API: FAIL (no API key configured)")
				allOK = false
			} else {
				fmt.Fprintln(out, "Claude API: OK")
			}

			if !allOK {
				return fmt.Errorf("one or more health checks failed")
			}
			return nil
		},
	}
}
