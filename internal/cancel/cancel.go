// Package cancel implements the per-batch cancellation controller: a
// signalable token, safe-checkpoint tracking, and the force/graceful/
// pending policy that governs how and when a batch actually stops
// (spec.md §4.5 / C5).
package cancel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

// pendingTimeout bounds how long a non-safe-checkpoint graceful cancel
// waits before behaving as forced, per spec.md §4.5.
const pendingTimeout = 15 * time.Second

// Merger is the narrow capability the controller needs to capture a partial
// result, breaking the scheduler<->notifier<->cancellation cycle called out
// in spec.md §9: the controller depends on this interface, never on the
// concrete merger type.
type Merger interface {
	MergePartial(ctx context.Context, tasks []model.SegmentTask) (string, model.QualityAssessment, error)
}

// Publisher is the narrow capability the controller needs to emit lifecycle
// events, satisfied by *notifier.Bus without an import of that package's
// concrete type.
type Publisher interface {
	Publish(event PublishedEvent)
}

// PublishedEvent is the controller's view of an event to hand to a
// Publisher; transport-specific fields (sequence numbers, etc.) are the
// Publisher's concern.
type PublishedEvent struct {
	Kind    string
	BatchID string
	Payload any
}

type entry struct {
	mu             sync.Mutex
	batchID        string
	cancel         context.CancelFunc
	ctx            context.Context
	safeCheckpoint bool
	cancelled      bool
	request        *model.CancellationRequest
	pendingTimer   *time.Timer
}

// Controller owns cancellation state for every registered batch.
type Controller struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	merger   Merger
	notifier Publisher
	logger   *slog.Logger
}

// New builds a Controller. merger and notifier may be nil in tests that do
// not exercise partial-capture or event emission.
func New(merger Merger, notifier Publisher, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		entries:  make(map[string]*entry),
		merger:   merger,
		notifier: notifier,
		logger:   logger,
	}
}

// Register creates a cancel token for batchID, derived from parent.
func (c *Controller) Register(parent context.Context, batchID string) context.Context {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	c.entries[batchID] = &entry{
		batchID: batchID,
		cancel:  cancel,
		ctx:     ctx,
	}
	c.mu.Unlock()

	return ctx
}

// Unregister removes a batch's cancellation state and releases its timer.
func (c *Controller) Unregister(batchID string) {
	c.mu.Lock()
	e, ok := c.entries[batchID]
	delete(c.entries, batchID)
	c.mu.Unlock()

	if ok {
		e.mu.Lock()
		if e.pendingTimer != nil {
			e.pendingTimer.Stop()
		}
		e.mu.Unlock()
	}
}

// GetToken returns the batch's cancellation context, if registered.
func (c *Controller) GetToken(batchID string) (context.Context, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[batchID]
	if !ok {
		return nil, false
	}
	return e.ctx, true
}

// IsCancelled reports whether a cancellation signal has already fired.
func (c *Controller) IsCancelled(batchID string) bool {
	c.mu.RLock()
	e, ok := c.entries[batchID]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case <-e.ctx.Done():
		return true
	default:
		return false
	}
}

// SetSafeCheckpoint is called by the scheduler when it is between segments
// and it is safe to abort cleanly. If a pending graceful cancel is waiting
// on this transition, it fires now.
func (c *Controller) SetSafeCheckpoint(batchID string, safe bool) {
	c.mu.RLock()
	e, ok := c.entries[batchID]
	c.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	e.safeCheckpoint = safe
	fireNow := safe && e.request != nil && !e.cancelled && !e.request.Force
	var req *model.CancellationRequest
	if fireNow {
		req = e.request
	}
	e.mu.Unlock()

	if fireNow {
		c.fire(e, *req, "graceful")
	}
}

// Request applies the force/graceful/pending policy of spec.md §4.5 and
// returns the outcome. A second request for an already-cancelled batch is
// idempotent (spec.md §5).
func (c *Controller) Request(ctx context.Context, req model.CancellationRequest) model.CancellationResult {
	c.mu.RLock()
	e, ok := c.entries[req.BatchID]
	c.mu.RUnlock()
	if !ok {
		return model.CancellationResult{
			Successful: false,
			Message:    fmt.Sprintf("batch %s is not registered for cancellation", req.BatchID),
			BatchID:    req.BatchID,
		}
	}

	e.mu.Lock()
	if e.cancelled {
		msg := cancellationMessage(e.request)
		e.mu.Unlock()
		return model.CancellationResult{Successful: true, Message: msg, BatchID: req.BatchID}
	}

	if req.Force {
		e.mu.Unlock()
		c.fire(e, req, "forced")
		return model.CancellationResult{Successful: true, Message: "forced", BatchID: req.BatchID}
	}

	if e.safeCheckpoint {
		e.mu.Unlock()
		partialSaved := c.fire(e, req, "graceful")
		return model.CancellationResult{Successful: true, Message: "graceful", PartialSaved: partialSaved, BatchID: req.BatchID}
	}

	// Not at a safe checkpoint: schedule the signal for the next checkpoint
	// transition, bounded by pendingTimeout, after which it behaves as forced.
	e.request = &req
	e.pendingTimer = time.AfterFunc(pendingTimeout, func() {
		e.mu.Lock()
		already := e.cancelled
		e.mu.Unlock()
		if already {
			return
		}
		c.logger.Warn("cancel: pending request timed out, forcing", "batch_id", req.BatchID)
		forced := req
		forced.Force = true
		c.fire(e, forced, "forced")
	})
	e.mu.Unlock()

	c.publish(req.BatchID, "CancellationRequested", req)

	return model.CancellationResult{Successful: true, Message: "pending", BatchID: req.BatchID}
}

func cancellationMessage(r *model.CancellationRequest) string {
	if r == nil {
		return "already cancelled"
	}
	if r.Force {
		return "forced"
	}
	return "graceful"
}

// SignalOnly cancels batchID's context directly, bypassing fire's publish
// and partial-capture policy. It exists for fail-fast abandonment: the
// scheduler needs outstanding per-segment work torn down immediately, but
// it emits its own terminal BatchFailed event and must not also see a
// cancellation-completion event or have the batch flagged cancelled.
func (c *Controller) SignalOnly(batchID string) {
	c.mu.RLock()
	e, ok := c.entries[batchID]
	c.mu.RUnlock()
	if !ok {
		return
	}
	e.cancel()
}

// fire performs the actual signal + optional partial capture, exactly once
// per batch. Returns whether a partial result was saved.
func (c *Controller) fire(e *entry, req model.CancellationRequest, mode string) bool {
	e.mu.Lock()
	if e.cancelled {
		e.mu.Unlock()
		return false
	}
	e.cancelled = true
	if e.pendingTimer != nil {
		e.pendingTimer.Stop()
	}
	e.mu.Unlock()

	e.cancel()

	partialSaved := false
	if mode != "forced" && req.SavePartial && c.merger != nil {
		partialSaved = true // the capture itself runs when the scheduler finalizes the batch (CapturePartial)
	}

	c.publish(req.BatchID, "CancellationRequested", req)
	c.publish(req.BatchID, "BatchCompleted", map[string]any{"cancelled": true})

	return partialSaved
}

// CapturePartial snapshots completed tasks, invokes the Merger capability,
// and computes the quality assessment described in spec.md §4.5. It is the
// scheduler's responsibility to call this with the batch's current task
// list at the moment cancellation fires, since only the scheduler holds the
// write lock on Batch.Tasks.
func (c *Controller) CapturePartial(ctx context.Context, batchID string, tasks []model.SegmentTask, allTitles []string) (*model.PartialResult, error) {
	if c.merger == nil {
		return nil, fmt.Errorf("cancel: no merger capability configured")
	}

	var completed []model.SegmentTask
	for _, t := range tasks {
		if t.Status == model.TaskCompleted {
			completed = append(completed, t)
		}
	}

	summary, quality, err := c.merger.MergePartial(ctx, completed)
	if err != nil {
		return nil, fmt.Errorf("cancel: partial merge failed: %w", err)
	}

	total := len(tasks)
	completeness := 0.0
	if total > 0 {
		completeness = float64(len(completed)) / float64(total)
	}
	coherence := contiguousRatio(tasks)
	missing := missingTitles(tasks, allTitles)

	quality.Completeness = completeness
	quality.Coherence = coherence
	quality.MissingTopics = missing

	score := 0.5*completeness + 0.5*coherence
	quality.Level = model.ClassifyQuality(score)
	quality.RecommendedAction = model.RecommendedAction(quality.Level)

	return &model.PartialResult{
		BatchID:              batchID,
		CompletedTasks:       completed,
		CompletionPct:        completeness * 100,
		MergedPartialSummary: summary,
		Quality:              quality,
		CancellationTime:     time.Now(),
	}, nil
}

// contiguousRatio computes the length of the run of completed tasks
// starting at index 0 as a fraction of all tasks, a coherence heuristic per
// spec.md §4.5.
func contiguousRatio(tasks []model.SegmentTask) float64 {
	if len(tasks) == 0 {
		return 0
	}
	contiguous := 0
	for _, t := range tasks {
		if t.Status != model.TaskCompleted {
			break
		}
		contiguous++
	}
	return float64(contiguous) / float64(len(tasks))
}

func missingTitles(tasks []model.SegmentTask, allTitles []string) []string {
	var missing []string
	for i, t := range tasks {
		if t.Status != model.TaskCompleted {
			title := t.Segment.Title
			if title == "" && i < len(allTitles) {
				title = allTitles[i]
			}
			missing = append(missing, title)
		}
	}
	return missing
}

func (c *Controller) publish(batchID, kind string, payload any) {
	if c.notifier == nil {
		return
	}
	c.notifier.Publish(PublishedEvent{Kind: kind, BatchID: batchID, Payload: payload})
}
