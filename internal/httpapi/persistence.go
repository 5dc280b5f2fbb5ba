package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/notifier"
)

// watchAndPersist subscribes to a single batch's event stream and writes a
// SummaryRecord once it reaches a terminal stage. Persistence lives at this
// boundary, not inside the scheduler, so the core batch engine never depends
// on internal/storage (spec.md §9's cycle-avoidance design note, the same
// reasoning behind busPublisher).
func (s *Server) watchAndPersist(batchID string) {
	if s.store == nil {
		return
	}

	subscriberID := uuid.NewString()
	events := s.bus.Connect(subscriberID)
	s.bus.JoinBatchGroup(subscriberID, batchID)
	defer s.bus.Disconnect(subscriberID)

	for e := range events {
		if e.BatchID != batchID {
			continue
		}
		if e.Kind != notifier.EventBatchCompleted && e.Kind != notifier.EventBatchFailed {
			continue
		}
		s.persist(batchID)
		return
	}
}

func (s *Server) persist(batchID string) {
	batch, ok := s.scheduler.GetBatch(batchID)
	if !ok {
		return
	}

	rec := &model.SummaryRecord{
		ID:               batchID,
		OriginalText:     batch.OriginalText,
		SummaryText:      batch.FinalSummary,
		CreatedAt:        batch.CreatedAt,
		UserID:           batch.UserID,
		OriginalLength:   len(batch.OriginalText),
		SummaryLength:    len(batch.FinalSummary),
		ProcessingTimeMs: time.Since(batch.CreatedAt).Milliseconds(),
		ErrorMessage:     batch.Error,
		Strategy:         string(s.schedulerCfg.MergeOptions.Strategy),
	}
	if batch.PartialResult != nil {
		rec.SummaryText = batch.PartialResult.MergedPartialSummary
		rec.QualityScore = batch.PartialResult.Quality.Coherence
	}

	_ = s.store.Save(rec)
}
