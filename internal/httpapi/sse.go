package httpapi

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/batchsumm/orchestrator/internal/errs"
)

// handleProgressStream implements GET /api/summarize/batch/{batchId}/events,
// a polling-based SSE fallback for clients that cannot hold a websocket open
// (the realtime hub's primary transport, handleProgressHub). It pushes the
// same progress snapshot the REST and websocket paths expose, at a fixed
// interval, until the batch reaches a terminal stage or the client
// disconnects.
func (s *Server) handleProgressStream(c *gin.Context) {
	batchID := c.Param("batchId")
	if _, ok := s.scheduler.Progress(batchID); !ok {
		s.failKind(c, errs.KindInvalidInput, "unknown batch id")
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	clientGone := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-ticker.C:
			snap, ok := s.scheduler.Progress(batchID)
			if !ok {
				return false
			}
			c.SSEvent("progress", snap)
			return !snap.Stage.IsTerminal()
		}
	})
}
