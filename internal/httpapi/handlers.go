package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/batchsumm/orchestrator/internal/errs"
	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/reporter"
)

const maxUploadBytes = 10 << 20 // 10MB, per spec.md §6

var allowedUploadExts = map[string]bool{".txt": true, ".md": true, ".rtf": true}

type summarizeOptions struct {
	Length   string `json:"length"`
	Language string `json:"language"`
}

type summarizeRequest struct {
	Text    string           `json:"text" binding:"required"`
	Options summarizeOptions `json:"options"`
	UserID  string           `json:"userId"`
}

type summarizeResponse struct {
	Success          bool   `json:"success"`
	BatchID          string `json:"batchId"`
	Summary          string `json:"summary,omitempty"`
	OriginalLength   int    `json:"originalLength"`
	SummaryLength    int    `json:"summaryLength,omitempty"`
	ProcessingTimeMs int64  `json:"processingTimeMs,omitempty"`
}

func (s *Server) userID(c *gin.Context) string {
	if id := c.Query("userId"); id != "" {
		return id
	}
	return "anonymous"
}

func (s *Server) fail(c *gin.Context, err error) {
	kind := classify(err)
	c.JSON(kind.HTTPStatus(), errs.NewAPIError(kind, err.Error()))
}

func (s *Server) failKind(c *gin.Context, kind errs.Kind, msg string) {
	c.JSON(kind.HTTPStatus(), errs.NewAPIError(kind, msg))
}

// handleSummarize implements POST /api/summarize, per spec.md §6.
func (s *Server) handleSummarize(c *gin.Context) {
	var req summarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		s.failKind(c, errs.KindInvalidInput, "text is required")
		return
	}
	s.startBatch(c, req.Text, req.UserID)
}

// handleSummarizeUpload implements POST /api/summarize/upload, per spec.md §6.
func (s *Server) handleSummarizeUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.failKind(c, errs.KindInvalidInput, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		s.failKind(c, errs.KindInvalidInput, "file exceeds the 10MB limit")
		return
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedUploadExts[ext] {
		s.failKind(c, errs.KindInvalidInput, "unsupported file type: "+ext)
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.failKind(c, errs.KindInvalidInput, "could not open uploaded file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		s.failKind(c, errs.KindInvalidInput, "could not read uploaded file")
		return
	}

	s.startBatch(c, string(content), c.PostForm("userId"))
}

func (s *Server) startBatch(c *gin.Context, text, userID string) {
	if userID == "" {
		userID = s.userID(c)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	segments, err := s.segmenter.Split(ctx, text)
	if err != nil {
		s.fail(c, err)
		return
	}

	batchID := s.scheduler.Start(context.Background(), userID, text, segments, s.schedulerCfg)
	go s.watchAndPersist(batchID)

	c.JSON(http.StatusOK, summarizeResponse{
		Success:        true,
		BatchID:        batchID,
		OriginalLength: len(text),
	})
}

// handleCancel implements POST /api/summarize/cancel/{batchId}.
func (s *Server) handleCancel(c *gin.Context) {
	var body model.CancellationRequest
	_ = c.ShouldBindJSON(&body)
	body.BatchID = c.Param("batchId")
	body.RequestedAt = time.Now()

	result := s.scheduler.Cancel(body)
	c.JSON(http.StatusOK, result)
}

// handleLegacyCancel implements the legacy toggle endpoint. Per spec.md §9's
// Open Question resolution, it behaves as force=false, save_partial=false.
func (s *Server) handleLegacyCancel(c *gin.Context) {
	result := s.scheduler.Cancel(model.CancellationRequest{
		BatchID:     c.Param("batchId"),
		Reason:      model.ReasonUser,
		Force:       false,
		SavePartial: false,
		RequestedAt: time.Now(),
	})
	c.JSON(http.StatusOK, gin.H{"success": result.Successful, "message": result.Message})
}

// handleHealth implements GET /api/summarize/health.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy, err := s.activeProv.Health(ctx)
	if err != nil || !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"data":    gin.H{"provider": s.activeProv.Name(), "healthy": false},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"provider": s.activeProv.Name(), "healthy": true},
	})
}

// handleHealthSystem implements GET /api/summarize/health/system.
func (s *Server) handleHealthSystem(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"uptimeSeconds": time.Since(s.startedAt).Seconds(),
			"goroutines":    runtime.NumGoroutine(),
		},
	})
}

// handleSelfRepair implements POST /api/summarize/health/self-repair: a
// best-effort sweep that retires stale terminal batches and reports the
// provider's current health, giving an operator a single endpoint to nudge
// the system back to a clean state without a restart.
func (s *Server) handleSelfRepair(c *gin.Context) {
	removed := s.scheduler.Cleanup(time.Hour)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	healthy, _ := s.activeProv.Health(ctx)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    gin.H{"staleBatchesRemoved": removed, "providerHealthy": healthy},
	})
}

// handleRecovery implements POST /api/summarize/recovery/{batchId}?reason=…:
// requests a graceful, partial-saving cancellation for a batch that appears
// stuck, so its owner can recover whatever was completed instead of losing
// the whole run.
func (s *Server) handleRecovery(c *gin.Context) {
	reason := c.Query("reason")
	result := s.scheduler.Cancel(model.CancellationRequest{
		BatchID:     c.Param("batchId"),
		Reason:      model.ReasonSystemError,
		SavePartial: true,
		RequestedAt: time.Now(),
		RequestedBy: reason,
	})
	c.JSON(http.StatusOK, result)
}

// handleRecoveryStatus implements GET /api/summarize/recovery/{batchId}/status.
func (s *Server) handleRecoveryStatus(c *gin.Context) {
	snap, ok := s.scheduler.Progress(c.Param("batchId"))
	if !ok {
		s.failKind(c, errs.KindInvalidInput, "unknown batch id")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snap})
}

// handleReset implements POST /api/summarize/reset?resetType=ui|batch|resources.
func (s *Server) handleReset(c *gin.Context) {
	resetType := c.Query("resetType")
	switch resetType {
	case "batch":
		batchID := c.Query("batchId")
		if batchID == "" {
			s.failKind(c, errs.KindInvalidInput, "batchId is required for resetType=batch")
			return
		}
		s.scheduler.Cancel(model.CancellationRequest{BatchID: batchID, Force: true, RequestedAt: time.Now()})
	case "resources":
		s.scheduler.Cleanup(0)
	case "ui":
		// no server-side state to clear; acknowledged for client symmetry.
	default:
		s.failKind(c, errs.KindInvalidInput, fmt.Sprintf("unknown resetType %q", resetType))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleBatchProgress implements GET /api/summarize/batch/{batchId}.
func (s *Server) handleBatchProgress(c *gin.Context) {
	snap, ok := s.scheduler.Progress(c.Param("batchId"))
	if !ok {
		s.failKind(c, errs.KindInvalidInput, "unknown batch id")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": snap})
}

// handlePause implements POST /api/summarize/batch/{batchId}/pause.
func (s *Server) handlePause(c *gin.Context) {
	if !s.scheduler.Pause(c.Param("batchId")) {
		s.failKind(c, errs.KindInvalidInput, "unknown batch id")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleResume implements POST /api/summarize/batch/{batchId}/resume.
func (s *Server) handleResume(c *gin.Context) {
	if !s.scheduler.Resume(c.Param("batchId")) {
		s.failKind(c, errs.KindInvalidInput, "unknown batch id")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleListByUser implements GET /api/summarize/user/{userId}/batches, the
// in-memory half of list_by_user (spec.md §4.2); finished batches that have
// since been persisted are reachable via the storage-backed history instead.
func (s *Server) handleListByUser(c *gin.Context) {
	summaries := s.scheduler.ListByUser(c.Param("userId"))
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summaries})
}

// handleBatchReport renders a finished batch via the Reporter, HTML by
// default or JSON when ?format=json is given.
func (s *Server) handleBatchReport(c *gin.Context) {
	batchID := c.Param("batchId")
	batch, ok := s.scheduler.GetBatch(batchID)
	if !ok {
		s.failKind(c, errs.KindInvalidInput, "unknown batch id")
		return
	}

	format := reporter.FormatHTML
	contentType := "text/html; charset=utf-8"
	if c.Query("format") == "json" {
		format = reporter.FormatJSON
		contentType = "application/json; charset=utf-8"
	}

	opts := &reporter.Options{Title: "Batch Report: " + batchID, Format: format, DarkMode: true}

	c.Status(http.StatusOK)
	c.Header("Content-Type", contentType)
	if err := s.reports.Generate(&batch, opts, c.Writer); err != nil {
		s.fail(c, err)
	}
}
