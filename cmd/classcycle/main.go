package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/internal/analyzer"
	"github.com/ajitpratap0/classcycle/internal/config"
	"github.com/ajitpratap0/classcycle/internal/scanner"
	"github.com/ajitpratap0/classcycle/internal/store"
)

var (
	cfg     *config.Config
	cfgFile string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := newRootCmd()
	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "classcycle",
		Short: "classcycle: dependency cycle analysis for Java class files",
		Long: `classcycle parses compiled class files, directories and jars, builds the class and
package dependency graphs, and reports strongly connected components (cycles) and layers.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadFile(cfgFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./classcycle.yaml or ~/.classcycle/classcycle.yaml)")

	rootCmd.AddCommand(
		analyzeCmd(),
		cyclesCmd(),
		exportCmd(),
		runsCmd(),
		healthCmd(),
		adviseCmd(),
		escapeCmd(),
		mcpCmd(),
		serveCmd(),
	)
	return rootCmd
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// scanOptions converts the analysis config into scanner options.
func scanOptions() scanner.Options {
	return scanner.Options{
		Workers:    cfg.Analysis.Workers,
		MergeInner: cfg.Analysis.MergeInnerClasses,
		Include:    cfg.Analysis.Include,
		Exclude:    cfg.Analysis.Exclude,
	}
}

// analyzeOptions converts the config into analyzer options.
func analyzeOptions() analyzer.Options {
	return analyzer.Options{
		Title:        cfg.Report.Title,
		SkipExternal: cfg.Analysis.SkipExternal,
	}
}

// newStore connects to Neo4j. On failure it returns a nil interface, never a typed nil.
func newStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	st, err := store.NewNeo4jStore(ctx,
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
		logger,
	)
	if err != nil {
		return nil, err
	}
	return st, nil
}
