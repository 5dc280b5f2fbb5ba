package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/reporter"
	"github.com/batchsumm/orchestrator/internal/storage"
)

var reportFormat string

var reportCmd = &cobra.Command{
	Use:   "report <batchId>",
	Short: "Render a stored summary record as a report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVarP(&reportFormat, "format", "f", "html", "report format (html or json)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := loader.Current()
	batchID := args[0]

	store, err := storage.NewSQLiteStore(cfg.Storage.SqlitePath)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", cfg.Storage.SqlitePath, err)
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	rec, err := store.Get(batchID)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", batchID, err)
	}
	if rec == nil {
		return fmt.Errorf("no stored record for batch id %s", batchID)
	}

	batch := &model.Batch{
		ID:           rec.ID,
		UserID:       rec.UserID,
		CreatedAt:    rec.CreatedAt,
		OriginalText: rec.OriginalText,
		FinalSummary: rec.SummaryText,
		Stage:        model.StageCompleted,
		Error:        rec.ErrorMessage,
	}
	if rec.ErrorMessage != "" {
		batch.Stage = model.StageFailed
	}

	rep, err := reporter.NewHTMLReporter()
	if err != nil {
		return fmt.Errorf("failed to load report templates: %w", err)
	}

	format := reporter.FormatHTML
	if reportFormat == "json" {
		format = reporter.FormatJSON
	}

	return rep.Generate(batch, &reporter.Options{Title: "Batch Report: " + batchID, Format: format}, os.Stdout)
}
