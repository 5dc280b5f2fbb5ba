package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/batchsumm/orchestrator/internal/cancel"
	"github.com/batchsumm/orchestrator/internal/httpapi"
	"github.com/batchsumm/orchestrator/internal/merger"
	"github.com/batchsumm/orchestrator/internal/notifier"
	"github.com/batchsumm/orchestrator/internal/reporter"
	"github.com/batchsumm/orchestrator/internal/scheduler"
	"github.com/batchsumm/orchestrator/internal/segmenter"
	"github.com/batchsumm/orchestrator/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and websocket API",
	Long: `serve starts the REST API (B1) and the realtime progress hub (B2),
wiring the scheduler, segmenter, configured provider, notifier bus, SQLite
store, and HTML/JSON reporter behind a single gin engine.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loader.Current()

	prov, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to build provider %q: %w", cfg.Provider.AiProvider, err)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.SqlitePath)
	if err != nil {
		return fmt.Errorf("failed to open store at %s: %w", cfg.Storage.SqlitePath, err)
	}
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	cached := storage.NewCachedStore(store, cfg.Storage.CacheSize)

	bus := notifier.NewBus()
	cancels := cancel.New(merger.New(cfg.MergeOptions(), prov), scheduler.NewBusPublisher(bus), logger)
	sched := scheduler.New(prov, cancels, bus, logger)
	seg := segmenter.New(cfg.SegmenterOptions(), prov)

	rep, err := reporter.NewHTMLReporter()
	if err != nil {
		return fmt.Errorf("failed to load report templates: %w", err)
	}

	server := httpapi.NewServer(sched, seg, prov, bus, cached, rep, cfg.SchedulerConfig(), logger)

	logger.Info("starting server", "addr", cfg.Server.ListenAddr, "provider", prov.Name())
	return http.ListenAndServe(cfg.Server.ListenAddr, server.Engine)
}
