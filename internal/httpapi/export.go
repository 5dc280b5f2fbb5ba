package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/batchsumm/orchestrator/internal/errs"
	"github.com/batchsumm/orchestrator/internal/merger"
)

// handleBatchExport implements GET /api/summarize/batch/{batchId}/export,
// re-running the Merger over a finished batch's completed tasks to produce
// the machine-readable merge-stats document (merger.Export), as JSON by
// default or CSV with ?format=csv.
func (s *Server) handleBatchExport(c *gin.Context) {
	batch, ok := s.scheduler.GetBatch(c.Param("batchId"))
	if !ok {
		s.failKind(c, errs.KindInvalidInput, "unknown batch id")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	m := merger.New(s.schedulerCfg.MergeOptions, s.activeProv)
	result, err := m.Merge(ctx, batch.Tasks)
	if err != nil {
		s.fail(c, err)
		return
	}

	format := merger.ExportJSON
	contentType := "application/json; charset=utf-8"
	if c.Query("format") == "csv" {
		format = merger.ExportCSV
		contentType = "text/csv; charset=utf-8"
	}

	data, err := merger.Export(result, format)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.Data(http.StatusOK, contentType, data)
}
