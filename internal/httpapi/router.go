// Package httpapi implements the HTTP boundary (B1) and the realtime
// progress hub (B2): a gin REST surface fronting the scheduler, and a
// gorilla/websocket transport for the notifier's per-batch event stream.
package httpapi

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/batchsumm/orchestrator/internal/errs"
	"github.com/batchsumm/orchestrator/internal/notifier"
	"github.com/batchsumm/orchestrator/internal/provider"
	"github.com/batchsumm/orchestrator/internal/reporter"
	"github.com/batchsumm/orchestrator/internal/scheduler"
	"github.com/batchsumm/orchestrator/internal/segmenter"
	"github.com/batchsumm/orchestrator/internal/storage"
)

// Server wires the scheduler, segmenter, active provider, notifier bus,
// store, and reporter behind a gin.Engine, mirroring the route grouping and
// JSON-envelope response style of the teacher's API surface.
type Server struct {
	Engine *gin.Engine

	scheduler    *scheduler.Scheduler
	segmenter    *segmenter.Segmenter
	activeProv   provider.Summarizer
	bus          *notifier.Bus
	store        storage.Store
	reports      reporter.Reporter
	startedAt    time.Time
	logger       *slog.Logger
	schedulerCfg scheduler.Config
}

// NewServer builds the gin engine and registers every route named in
// spec.md §6. activeProv is the single Summarizer instance the scheduler is
// configured with, exposed here only for the health/self-repair endpoints.
func NewServer(
	sched *scheduler.Scheduler,
	seg *segmenter.Segmenter,
	activeProv provider.Summarizer,
	bus *notifier.Bus,
	store storage.Store,
	reports reporter.Reporter,
	cfg scheduler.Config,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		Engine:       engine,
		scheduler:    sched,
		segmenter:    seg,
		activeProv:   activeProv,
		bus:          bus,
		store:        store,
		reports:      reports,
		startedAt:    time.Now(),
		logger:       logger,
		schedulerCfg: cfg,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.Engine.Group("/api/summarize")

	api.POST("", s.handleSummarize)
	api.POST("/upload", s.handleSummarizeUpload)
	api.POST("/cancel/:batchId", s.handleCancel)
	api.POST("/batch/:batchId/cancel", s.handleLegacyCancel)

	api.GET("/health", s.handleHealth)
	api.GET("/health/system", s.handleHealthSystem)
	api.POST("/health/self-repair", s.handleSelfRepair)

	api.POST("/recovery/:batchId", s.handleRecovery)
	api.GET("/recovery/:batchId/status", s.handleRecoveryStatus)

	api.POST("/reset", s.handleReset)

	api.GET("/batch/:batchId", s.handleBatchProgress)
	api.GET("/batch/:batchId/events", s.handleProgressStream)
	api.GET("/batch/:batchId/report", s.handleBatchReport)
	api.GET("/batch/:batchId/export", s.handleBatchExport)
	api.POST("/batch/:batchId/pause", s.handlePause)
	api.POST("/batch/:batchId/resume", s.handleResume)
	api.GET("/user/:userId/batches", s.handleListByUser)

	s.Engine.GET("/batchProgressHub", s.handleProgressHub)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func classify(err error) errs.Kind {
	return errs.Classify(err)
}
