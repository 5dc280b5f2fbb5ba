package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/batchsumm/orchestrator/internal/storage"
)

var retentionDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stored summary records past their retention window",
	RunE:  runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().IntVar(&retentionDays, "retention-days", 0, "override storage.retentionDays from config")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := loader.Current()
	days := cfg.Storage.RetentionDays
	if retentionDays > 0 {
		days = retentionDays
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.SqlitePath)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", cfg.Storage.SqlitePath, err)
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	removed, err := store.Cleanup(days)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	logger.Info("cleanup complete", "removed", removed, "retentionDays", days)
	return nil
}
