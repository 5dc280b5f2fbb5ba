// Package model defines the shared data types for the batch summarization
// orchestrator: documents, segments, batches, progress snapshots, and the
// cancellation/partial-result types that flow between the core components.
package model

import "time"

// SegmentType classifies the structural kind of a segment's content.
type SegmentType int

const (
	SegmentParagraph SegmentType = iota
	SegmentCode
	SegmentTable
	SegmentList
	SegmentQuote
)

func (t SegmentType) String() string {
	switch t {
	case SegmentCode:
		return "code"
	case SegmentTable:
		return "table"
	case SegmentList:
		return "list"
	case SegmentQuote:
		return "quote"
	default:
		return "paragraph"
	}
}

// Segment is one ordered, bounded slice of a document.
type Segment struct {
	Index       int
	Title       string
	Content     string
	StartOffset int
	EndOffset   int
	Type        SegmentType
}

// TaskStatus is the lifecycle state of a SegmentTask.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskRunning
	TaskCompleted
	TaskFailed
	TaskRetrying
)

func (s TaskStatus) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskRetrying:
		return "retrying"
	default:
		return "pending"
	}
}

// IsTerminal reports whether s is a terminal SegmentTask state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// SegmentTask tracks one segment's journey through the scheduler.
type SegmentTask struct {
	Segment       Segment
	Status        TaskStatus
	Attempts      int
	StartedAt     *time.Time
	FinishedAt    *time.Time
	Result        string
	Error         string
	LastErrorKind string
}

// Stage is the batch's overall lifecycle stage.
type Stage int

const (
	StageInitializing Stage = iota
	StageSegmenting
	StageBatchProcessing
	StageMerging
	StageFinalizing
	StageCompleted
	StageFailed
	StageCancelled
)

func (s Stage) String() string {
	switch s {
	case StageSegmenting:
		return "segmenting"
	case StageBatchProcessing:
		return "batch-processing"
	case StageMerging:
		return "merging"
	case StageFinalizing:
		return "finalizing"
	case StageCompleted:
		return "completed"
	case StageFailed:
		return "failed"
	case StageCancelled:
		return "cancelled"
	default:
		return "initializing"
	}
}

// IsTerminal reports whether s is a terminal batch stage.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageCancelled
}

// StageWeights assigns the overall-progress percentage share of each
// non-terminal stage, per spec.md §4.2.
var StageWeights = map[Stage]float64{
	StageInitializing:    5,
	StageSegmenting:      10,
	StageBatchProcessing: 70,
	StageMerging:         10,
	StageFinalizing:      5,
}

// StageOffset returns the cumulative percentage contributed by stages
// preceding s.
func StageOffset(s Stage) float64 {
	order := []Stage{StageInitializing, StageSegmenting, StageBatchProcessing, StageMerging, StageFinalizing}
	var off float64
	for _, st := range order {
		if st == s {
			return off
		}
		off += StageWeights[st]
	}
	return off
}

// CancellationReason enumerates why a batch cancellation was requested.
type CancellationReason int

const (
	ReasonUser CancellationReason = iota
	ReasonTimeout
	ReasonSystemError
	ReasonResourceExhaustion
	ReasonQualityThreshold
	ReasonShutdown
)

func (r CancellationReason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonSystemError:
		return "system-error"
	case ReasonResourceExhaustion:
		return "resource-exhaustion"
	case ReasonQualityThreshold:
		return "quality-threshold"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "user"
	}
}

// CancellationRequest is a caller's request to stop a batch.
type CancellationRequest struct {
	BatchID     string
	RequestedBy string
	Reason      CancellationReason
	SavePartial bool
	Force       bool
	RequestedAt time.Time
}

// CancellationResult is the outcome of a cancellation request.
type CancellationResult struct {
	Successful    bool
	Message       string
	PartialSaved  bool
	BatchID       string
}

// QualityLevel buckets a completeness/coherence score into a recommendation.
type QualityLevel int

const (
	QualityUnusable QualityLevel = iota
	QualityPoor
	QualityAcceptable
	QualityGood
	QualityExcellent
)

func (q QualityLevel) String() string {
	switch q {
	case QualityExcellent:
		return "excellent"
	case QualityGood:
		return "good"
	case QualityAcceptable:
		return "acceptable"
	case QualityPoor:
		return "poor"
	default:
		return "unusable"
	}
}

// ClassifyQuality buckets score (0..1) per spec.md §4.5.
func ClassifyQuality(score float64) QualityLevel {
	switch {
	case score >= 0.9:
		return QualityExcellent
	case score >= 0.75:
		return QualityGood
	case score >= 0.5:
		return QualityAcceptable
	case score >= 0.25:
		return QualityPoor
	default:
		return QualityUnusable
	}
}

// RecommendedAction maps a quality level to the action spec.md §4.5 names.
func RecommendedAction(q QualityLevel) string {
	switch q {
	case QualityExcellent, QualityGood:
		return "recommend"
	case QualityAcceptable:
		return "consider-continue"
	case QualityPoor:
		return "review-required"
	default:
		return "discard"
	}
}

// QualityAssessment summarizes a (possibly partial) merge's fitness.
type QualityAssessment struct {
	Completeness      float64
	Coherence         float64
	MissingTopics     []string
	Level             QualityLevel
	RecommendedAction string
}

// PartialResult is the merged output captured at cancellation time.
type PartialResult struct {
	BatchID              string
	CompletedTasks       []SegmentTask
	CompletionPct        float64
	MergedPartialSummary string
	Quality              QualityAssessment
	CancellationTime     time.Time
}

// ProgressSnapshot is a point-in-time view of a batch's progress.
type ProgressSnapshot struct {
	Total           int
	Completed       int
	Failed          int
	CurrentIndex    int
	Stage           Stage
	OverallPct      float64
	StagePct        float64
	ElapsedMs       int64
	ETAMs           *int64
	AvgSegmentMs    float64
	ThroughputPerMin float64
	ThroughputChars  float64
	LastUpdated     time.Time
}

// Document is the immutable input to a batch.
type Document struct {
	Text   string
	UserID string
}

// Batch is one end-to-end summarization job. Mutation discipline: only the
// owning scheduler mutates it, including CancelRequested and PartialResult
// when the batch finalizes; the cancellation controller keeps its own
// per-batch state (see internal/cancel) and never writes to a Batch.
type Batch struct {
	ID              string
	UserID          string
	CreatedAt       time.Time
	OriginalText    string
	Tasks           []SegmentTask
	Stage           Stage
	Progress        ProgressSnapshot
	CancelRequested bool
	SafeCheckpoint  bool
	PartialResult   *PartialResult
	FinalSummary    string
	Error           string
}

// BatchSummary is the compact view returned by list_by_user.
type BatchSummary struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	Stage     Stage
	Progress  float64
}

// SummaryRecord is a finished, persisted record (spec.md §6 / SPEC_FULL.md §3).
type SummaryRecord struct {
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
