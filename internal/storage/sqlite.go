package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/batchsumm/orchestrator/internal/model"
)

// SQLiteStore implements Store using SQLite, adapted from the teacher's
// SQLiteStorage: same Init/Close/transaction shape, repurposed schema.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (without initializing) a SQLite-backed Store at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Init creates the summaries table and its indexes if they do not exist.
func (s *SQLiteStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		original_text TEXT NOT NULL,
		summary_text TEXT NOT NULL,
		original_length INTEGER NOT NULL,
		summary_length INTEGER NOT NULL,
		processing_time_ms INTEGER NOT NULL,
		error_message TEXT,
		strategy TEXT,
		quality_score REAL NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_summaries_user_created ON summaries(user_id, created_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save inserts or replaces a finished SummaryRecord.
func (s *SQLiteStore) Save(rec *model.SummaryRecord) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO summaries
			(id, user_id, original_text, summary_text, original_length, summary_length,
			 processing_time_ms, error_message, strategy, quality_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.UserID, rec.OriginalText, rec.SummaryText,
		rec.OriginalLength, rec.SummaryLength, rec.ProcessingTimeMs,
		rec.ErrorMessage, rec.Strategy, rec.QualityScore, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert summary: %w", err)
	}
	return nil
}

// Get retrieves a single record by id.
func (s *SQLiteStore) Get(id string) (*model.SummaryRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, original_text, summary_text, original_length, summary_length,
		       processing_time_ms, error_message, strategy, quality_score, created_at
		FROM summaries WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query summary %s: %w", id, err)
	}
	return rec, nil
}

// ListByUser returns a page of userID's records ordered newest first, per
// SPEC_FULL.md's list_by_user requirement.
func (s *SQLiteStore) ListByUser(userID string, limit, offset int) ([]*model.SummaryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, original_text, summary_text, original_length, summary_length,
		       processing_time_ms, error_message, strategy, quality_score, created_at
		FROM summaries
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*model.SummaryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}
	return out, nil
}

// Cleanup removes records older than retentionDays, returning the count
// removed.
func (s *SQLiteStore) Cleanup(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive")
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result, err := s.db.Exec(`DELETE FROM summaries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old records: %w", err)
	}
	return result.RowsAffected()
}

// scanner abstracts *sql.Row and *sql.Rows so scanRecord serves both Get and
// ListByUser.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*model.SummaryRecord, error) {
	var rec model.SummaryRecord
	var errMsg, strategy sql.NullString

	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.OriginalText, &rec.SummaryText,
		&rec.OriginalLength, &rec.SummaryLength, &rec.ProcessingTimeMs,
		&errMsg, &strategy, &rec.QualityScore, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ErrorMessage = errMsg.String
	rec.Strategy = strategy.String
	return &rec, nil
}
