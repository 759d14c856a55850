package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/report"
)

// errCyclesFound is returned by analyze --fail-on-cycles.
var errCyclesFound = errors.New("class cycles found")

func analyzeCmd() *cobra.Command {
	var (
		flags        analysisFlags
		format       string
		output       string
		failOnCycles bool
		save         bool
	)

	cmd := &cobra.Command{
		Use:   "analyze [paths...]",
		Short: "Analyse class files, directories or jars and write a dependency report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if !cmd.Flags().Changed("format") {
				format = cfg.Report.Format
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}

			a, err := flags.run(ctx, cmd, logger, args)
			if err != nil {
				return err
			}

			if save {
				st, storeErr := newStore(ctx, logger)
				if storeErr != nil {
					return fmt.Errorf("analyze: connecting to store: %w", storeErr)
				}
				defer func() { _ = st.Close() }()
				if err = st.EnsureSchema(ctx); err != nil {
					return fmt.Errorf("analyze: %w", err)
				}
				if err = st.SaveAnalysis(ctx, a); err != nil {
					return fmt.Errorf("analyze: %w", err)
				}
			}

			if output == "" || output == "-" {
				if err = report.Write(cmd.OutOrStdout(), a, f); err != nil {
					return fmt.Errorf("analyze: %w", err)
				}
			} else {
				if err = writeReportFile(output, a, f); err != nil {
					return fmt.Errorf("analyze: %w", err)
				}
				logger.Info("analyze: report written", "path", output, "format", f)
			}

			if failOnCycles && len(a.ClassCycles) > 0 {
				return fmt.Errorf("analyze: %w: %d", errCyclesFound, len(a.ClassCycles))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "report format: text, xml or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&failOnCycles, "fail-on-cycles", false, "exit non-zero when class cycles exist")
	cmd.Flags().BoolVar(&save, "save", false, "also persist the analysis to Neo4j")
	return cmd
}

// writeReportFile writes the report to path. A failed Close is reported, since
// it can be the only sign that buffered data never reached the disk.
func writeReportFile(path string, a *models.Analysis, f report.Format) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err = report.Write(file, a, f); err != nil {
		_ = file.Close()
		return err
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}
