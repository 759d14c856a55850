package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/internal/analyzer"
	"github.com/ajitpratap0/classcycle/internal/models"
	"github.com/ajitpratap0/classcycle/internal/scanner"
)

// analysisFlags are the scanning flags shared by every command that analyses inputs.
// A flag overrides the config only when it is set on the command line.
type analysisFlags struct {
	mergeInner   bool
	skipExternal bool
	include      []string
	exclude      []string
	workers      int
	title        string
}

func (f *analysisFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.mergeInner, "merge-inner", false, "fold inner classes into their outer class")
	fl.BoolVar(&f.skipExternal, "skip-external", false, "ignore references to classes that were not scanned")
	fl.StringSliceVar(&f.include, "include", nil, "only analyse classes matching these patterns (e.g. com.acme.*)")
	fl.StringSliceVar(&f.exclude, "exclude", nil, "drop classes matching these patterns")
	fl.IntVar(&f.workers, "workers", 0, "number of class files parsed concurrently")
	fl.StringVar(&f.title, "title", "", "report title")
}

func (f *analysisFlags) options(cmd *cobra.Command) (scanner.Options, analyzer.Options) {
	sopts := scanOptions()
	aopts := analyzeOptions()
	fl := cmd.Flags()
	if fl.Changed("merge-inner") {
		sopts.MergeInner = f.mergeInner
	}
	if fl.Changed("skip-external") {
		aopts.SkipExternal = f.skipExternal
	}
	if fl.Changed("include") {
		sopts.Include = f.include
	}
	if fl.Changed("exclude") {
		sopts.Exclude = f.exclude
	}
	if fl.Changed("workers") {
		sopts.Workers = f.workers
	}
	if fl.Changed("title") {
		aopts.Title = f.title
	}
	return sopts, aopts
}

// run scans and analyses the given paths.
func (f *analysisFlags) run(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, paths []string) (*models.Analysis, error) {
	sopts, aopts := f.options(cmd)
	sc, err := scanner.New(sopts, logger)
	if err != nil {
		return nil, err
	}
	a, err := analyzer.NewRunner(sc, aopts, logger).Run(ctx, paths...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	return a, nil
}
