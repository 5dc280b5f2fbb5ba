// Package cmd implements the orchestrator's CLI, adapted from the teacher's
// cobra+viper root command: persistent config/verbose flags, a
// PersistentPreRun that wires up structured logging, and one subcommand per
// operating mode (serve, summarize, report, cleanup).
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/batchsumm/orchestrator/internal/config"
)

var (
	cfgFile string
	verbose bool
	logger  *slog.Logger
	loader  *config.Loader
)

// rootCmd is the orchestrator's base command.
var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Batch summarization orchestrator",
	Long: `orchestrator segments long documents, fans out per-segment
summarization calls to a configurable LLM provider with retry and
concurrency control, merges the results, and serves progress over a REST
and websocket API.`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogger()
		l, err := config.NewLoader(cfgFile, logger)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		loader = l
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./orchestrator.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initLogger sets up the global structured logger based on verbosity,
// generalizing the teacher's initLogger (text handler to stderr).
func initLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
