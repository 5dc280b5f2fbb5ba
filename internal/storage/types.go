package storage

import (
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

// Store defines persistence for finished SummaryRecords. Only terminal
// batches are ever written here; in-flight batch state lives solely in the
// scheduler's in-memory registry (SPEC_FULL.md §6's Non-goals: no
// persistence of in-flight state across restarts).
type Store interface {
	Init() error
	Close() error

	// Save persists one finished record.
	Save(rec *model.SummaryRecord) error

	// Get retrieves a record by id.
	Get(id string) (*model.SummaryRecord, error)

	// ListByUser returns a page of a user's records, newest first.
	ListByUser(userID string, limit, offset int) ([]*model.SummaryRecord, error)

	// Cleanup removes records older than retentionDays.
	Cleanup(retentionDays int) (int64, error)
}

// storedRecord mirrors model.SummaryRecord's column layout.
type storedRecord struct {
	ID               string
	OriginalText     string
	SummaryText      string
	CreatedAt        time.Time
	UserID           string
	OriginalLength   int
	SummaryLength    int
	ProcessingTimeMs int64
	ErrorMessage     string
	Strategy         string
	QualityScore     float64
}
