// Package scheduler implements the batch scheduler: a per-batch worker pool
// that dispatches segments to a Summarizer with a concurrency ceiling,
// retry/backoff, pause/resume, and stage progression (spec.md §4.2 / C6).
// Adapted from the teacher's internal/executor worker-pool shape
// (job channel + fixed goroutines, ExecuteBatch/executeWithRetry), with the
// concurrency ceiling moved onto a counting semaphore and the single-shot
// command execution replaced by a retrying provider call per segment.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/batchsumm/orchestrator/internal/cancel"
	"github.com/batchsumm/orchestrator/internal/errs"
	"github.com/batchsumm/orchestrator/internal/merger"
	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/notifier"
	"github.com/batchsumm/orchestrator/internal/provider"
	"github.com/batchsumm/orchestrator/internal/tracker"
)

// Config tunes a single batch's execution, per spec.md §4.2/§6.
type Config struct {
	ConcurrencyLimit int
	MaxRetries       int
	BaseDelay        time.Duration
	Multiplier       float64
	Jitter           float64
	CallTimeout      time.Duration
	LongCallTimeout  time.Duration
	LongCallTrigger  int // content length above which LongCallTimeout applies
	MergeOptions     merger.Options
}

// DefaultConfig matches spec.md §4.2's defaults.
func DefaultConfig() Config {
	return Config{
		ConcurrencyLimit: 2,
		MaxRetries:       3,
		BaseDelay:        time.Second,
		Multiplier:       2.0,
		Jitter:           0.2,
		CallTimeout:      30 * time.Second,
		LongCallTimeout:  60 * time.Second,
		LongCallTrigger:  4000,
		MergeOptions:     merger.DefaultOptions(),
	}
}

// clampConcurrency enforces spec.md §4.2's max of 4.
func clampConcurrency(n int) int64 {
	if n <= 0 {
		n = 2
	}
	if n > 4 {
		n = 4
	}
	return int64(n)
}

// Scheduler owns the registry of all in-flight and recently-terminal
// batches, a single process-wide struct per spec.md §9's design note.
type Scheduler struct {
	mu       sync.RWMutex
	batches  map[string]*runningBatch
	provider provider.Summarizer
	cancels  *cancel.Controller
	bus      *notifier.Bus
	logger   *slog.Logger
}

// runningBatch wraps a model.Batch with the scheduler-private state needed
// to drive it (gate, worker handles), never exposed outside this package.
type runningBatch struct {
	mu      sync.RWMutex
	batch   *model.Batch
	cfg     Config
	tracker *tracker.Tracker
	ctx     context.Context

	paused   bool
	gateCond *sync.Cond

	doneCh chan struct{}
	merger *merger.Merger
}

// New builds a Scheduler backed by a single provider, a shared cancellation
// controller, and a shared notifier bus.
func New(p provider.Summarizer, cancels *cancel.Controller, bus *notifier.Bus, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		batches:  make(map[string]*runningBatch),
		provider: p,
		cancels:  cancels,
		bus:      bus,
		logger:   logger,
	}
}

// Start registers a new batch from pre-segmented tasks and launches its
// worker pool, returning the batch id immediately (non-blocking), per
// spec.md §4.2.
func (s *Scheduler) Start(parent context.Context, userID, originalText string, segments []model.Segment, cfg Config) string {
	batchID := uuid.NewString()

	tasks := make([]model.SegmentTask, len(segments))
	for i, seg := range segments {
		tasks[i] = model.SegmentTask{Segment: seg, Status: model.TaskPending}
	}

	b := &model.Batch{
		ID:           batchID,
		UserID:       userID,
		CreatedAt:    time.Now(),
		OriginalText: originalText,
		Tasks:        tasks,
		Stage:        model.StageInitializing,
	}

	ctx := s.cancels.Register(parent, batchID)
	trk := tracker.New(len(tasks), b.CreatedAt)

	rb := &runningBatch{
		batch:   b,
		cfg:     cfg,
		tracker: trk,
		ctx:     ctx,
		doneCh:  make(chan struct{}),
		merger:  merger.New(cfg.MergeOptions, s.provider),
	}
	rb.gateCond = sync.NewCond(&rb.mu)

	s.mu.Lock()
	s.batches[batchID] = rb
	s.mu.Unlock()

	s.cancels.SetSafeCheckpoint(batchID, true)

	go s.run(rb)

	return batchID
}

// Progress returns the current snapshot for a batch, if known.
func (s *Scheduler) Progress(batchID string) (model.ProgressSnapshot, bool) {
	rb := s.get(batchID)
	if rb == nil {
		return model.ProgressSnapshot{}, false
	}
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.batch.Progress, true
}

// GetBatch returns a copy of the full batch state, if known. Callers outside
// this package (the HTTP/report layer) need this instead of Progress when
// they must see FinalSummary, PartialResult, or per-segment Tasks.
func (s *Scheduler) GetBatch(batchID string) (model.Batch, bool) {
	rb := s.get(batchID)
	if rb == nil {
		return model.Batch{}, false
	}
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	cp := *rb.batch
	cp.Tasks = make([]model.SegmentTask, len(rb.batch.Tasks))
	copy(cp.Tasks, rb.batch.Tasks)
	return cp, true
}

// Pause sets the pause gate; in-flight provider calls are not interrupted,
// per spec.md §4.2.
func (s *Scheduler) Pause(batchID string) bool {
	rb := s.get(batchID)
	if rb == nil {
		return false
	}
	rb.mu.Lock()
	rb.paused = true
	rb.mu.Unlock()
	return true
}

// Resume opens the pause gate.
func (s *Scheduler) Resume(batchID string) bool {
	rb := s.get(batchID)
	if rb == nil {
		return false
	}
	rb.mu.Lock()
	rb.paused = false
	rb.gateCond.Broadcast()
	rb.mu.Unlock()
	return true
}

// Cancel requests cancellation of a batch via the shared controller.
func (s *Scheduler) Cancel(req model.CancellationRequest) model.CancellationResult {
	return s.cancels.Request(context.Background(), req)
}

// ListByUser returns compact summaries of every batch owned by userID.
func (s *Scheduler) ListByUser(userID string) []model.BatchSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.BatchSummary
	for _, rb := range s.batches {
		rb.mu.RLock()
		if rb.batch.UserID == userID {
			out = append(out, model.BatchSummary{
				ID:        rb.batch.ID,
				UserID:    rb.batch.UserID,
				CreatedAt: rb.batch.CreatedAt,
				Stage:     rb.batch.Stage,
			})
		}
		rb.mu.RUnlock()
	}
	return out
}

// Cleanup removes terminal batches older than olderThan, returning the
// count removed, per spec.md §4.2.
func (s *Scheduler) Cleanup(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rb := range s.batches {
		rb.mu.RLock()
		terminal := rb.batch.Stage.IsTerminal()
		createdAt := rb.batch.CreatedAt
		rb.mu.RUnlock()

		if terminal && createdAt.Before(cutoff) {
			delete(s.batches, id)
			s.cancels.Unregister(id)
			removed++
		}
	}
	return removed
}

func (s *Scheduler) get(batchID string) *runningBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batches[batchID]
}

// newBackoff builds the per-batch exponential backoff policy, per spec.md
// §4.2/§8: base*multiplier^attempt ± jitter, via cenkalti/backoff/v4 rather
// than hand-rolled math.
func newBackoff(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.BaseDelay
	b.Multiplier = cfg.Multiplier
	b.RandomizationFactor = cfg.Jitter
	b.MaxElapsedTime = 0 // bounded by MaxRetries, not wall-clock, at the call site
	return b
}

// callTimeoutFor selects the per-call timeout based on content length, per
// spec.md §4.2 step 3.
func callTimeoutFor(cfg Config, contentLen int) time.Duration {
	if contentLen > cfg.LongCallTrigger {
		return cfg.LongCallTimeout
	}
	return cfg.CallTimeout
}

// failFastThreshold is the strict threshold of spec.md §4.2's failure
// policy: more than floor(total/2) failures trips it.
func failFastThreshold(total int) int {
	return total / 2
}

// classify exposes errs.Classify for the retry loop without re-importing
// errs at every call site in this package's other files.
func classify(err error) errs.Kind {
	return errs.Classify(err)
}
