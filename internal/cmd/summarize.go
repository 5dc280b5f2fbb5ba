package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/batchsumm/orchestrator/internal/cancel"
	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/notifier"
	"github.com/batchsumm/orchestrator/internal/scheduler"
	"github.com/batchsumm/orchestrator/internal/segmenter"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file>",
	Short: "Summarize a document locally, without starting a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg := loader.Current()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	prov, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider %q: %w", cfg.Provider.AiProvider, err)
	}

	seg := segmenter.New(cfg.SegmenterOptions(), prov)
	segments, err := seg.Split(context.Background(), string(data))
	if err != nil {
		return fmt.Errorf("failed to segment document: %w", err)
	}

	bus := notifier.NewBus()
	cancels := cancel.New(nil, scheduler.NewBusPublisher(bus), logger)
	sched := scheduler.New(prov, cancels, bus, logger)

	batchID := sched.Start(context.Background(), "cli", string(data), segments, cfg.SchedulerConfig())

	for {
		snap, ok := sched.Progress(batchID)
		if !ok || snap.Stage.IsTerminal() {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}

	batch, ok := sched.GetBatch(batchID)
	if !ok {
		return fmt.Errorf("internal error: batch %s vanished", batchID)
	}

	if batch.Stage == model.StageFailed {
		return fmt.Errorf("batch failed: %s", batch.Error)
	}

	fmt.Println(batch.FinalSummary)
	return nil
}
