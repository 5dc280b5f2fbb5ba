package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/batchsumm/orchestrator/internal/errs"
	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/notifier"
)

// run drives one batch end to end: stage progression, the worker pool over
// segments, cancellation/fail-fast handling, and final merge. Adapted from
// the teacher's ExecuteBatch, with one goroutine launched per segment
// (rather than a fixed pool pulling from a job channel) since the
// concurrency ceiling is enforced by the semaphore itself, exactly as
// spec.md §4.2 describes the scheduling model.
func (s *Scheduler) run(rb *runningBatch) {
	defer close(rb.doneCh)

	rb.setStage(model.StageSegmenting)
	s.publish(rb.batch.ID, notifier.EventStageChanged, rb.batch.Stage.String())

	rb.setStage(model.StageBatchProcessing)
	rb.tracker.SetStage(model.StageBatchProcessing)
	s.publish(rb.batch.ID, notifier.EventStageChanged, rb.batch.Stage.String())

	width := clampConcurrency(rb.cfg.ConcurrencyLimit)
	sem := semaphore.NewWeighted(width)
	rb.tracker.SetActiveWorkers(int(width))

	var wg sync.WaitGroup
	var inFlight inFlightCounter
	var failedCount failCounter

	total := len(rb.batch.Tasks)
	var fastFailed atomic.Bool

	for i := range rb.batch.Tasks {
		if rb.cancelled() {
			break
		}

		wg.Add(1)
		go func(index int) {
			defer wg.Done()

			rb.waitForResumeGate()

			if err := sem.Acquire(rb.ctx, 1); err != nil {
				rb.markFailed(index, "cancelled", "Cancelled")
				return
			}
			defer sem.Release(1)

			if rb.cancelled() {
				rb.markFailed(index, "cancelled", "Cancelled")
				return
			}

			s.processSegment(rb, index, &inFlight)

			if rb.taskFailed(index) {
				n := failedCount.inc()
				if n > failFastThreshold(total) {
					fastFailed.Store(true)
					s.cancels.SignalOnly(rb.batch.ID)
				}
			}
		}(i)
	}

	wg.Wait()

	s.finalize(rb, fastFailed.Load())
}

// processSegment runs the full per-segment protocol of spec.md §4.2 steps
// 2-6: mark running, call the provider with retry/backoff, record the
// outcome, and maintain the tracker/safe-checkpoint bookkeeping.
func (s *Scheduler) processSegment(rb *runningBatch, index int, inFlight *inFlightCounter) {
	start := time.Now()

	rb.setTaskStatus(index, model.TaskRunning)
	s.publish(rb.batch.ID, notifier.EventSegmentStatusUpdate, segmentUpdate(rb, index))

	if inFlight.enter() == 1 {
		s.cancels.SetSafeCheckpoint(rb.batch.ID, false)
	}

	result, attempts, lastErr := s.summarizeWithRetry(rb, index)

	if inFlight.leave() == 0 {
		s.cancels.SetSafeCheckpoint(rb.batch.ID, true)
	}

	failed := lastErr != nil
	rb.recordOutcome(index, result, attempts, lastErr)
	chars := len(rb.taskAt(index).Segment.Content)
	rb.tracker.RecordSegmentDuration(index, time.Since(start), failed, chars)

	s.publish(rb.batch.ID, notifier.EventSegmentStatusUpdate, segmentUpdate(rb, index))
	s.maybeEmitProgress(rb)
}

// summarizeWithRetry implements spec.md §4.2 steps 3-5: call the provider,
// classify any failure, and retry with exponential backoff + jitter up to
// MaxRetries when the error is retryable.
func (s *Scheduler) summarizeWithRetry(rb *runningBatch, index int) (string, int, error) {
	task := rb.taskAt(index)
	content := task.Segment.Content

	bo := newBackoff(rb.cfg)
	attempts := 0
	var lastErr error

	for {
		attempts++

		if rb.cancelled() {
			return "", attempts, context.Canceled
		}

		callCtx, cancel := context.WithTimeout(rb.ctx, callTimeoutFor(rb.cfg, len(content)))
		result, err := s.provider.Summarize(callCtx, content)
		cancel()

		if err == nil {
			return result, attempts, nil
		}
		lastErr = err

		if rb.ctx.Err() != nil {
			return "", attempts, rb.ctx.Err()
		}

		kind := classify(err)
		if !kind.Retryable() || attempts > rb.cfg.MaxRetries {
			return "", attempts, err
		}
		// A protocol error gets a single retry.
		if kind == errs.KindProviderProtocol && attempts >= 2 {
			return "", attempts, err
		}

		rb.setTaskStatus(index, model.TaskRetrying)
		s.publish(rb.batch.ID, notifier.EventSegmentStatusUpdate, segmentUpdate(rb, index))

		delay := bo.NextBackOff()
		select {
		case <-time.After(delay):
		case <-rb.ctx.Done():
			return "", attempts, rb.ctx.Err()
		}
	}
}

func segmentUpdate(rb *runningBatch, index int) map[string]any {
	task := rb.taskAt(index)
	return map[string]any{
		"index":  index,
		"status": task.Status.String(),
	}
}

// finalize invokes the Merger over completed tasks, sets the terminal
// stage, and emits BatchCompleted/BatchFailed, per spec.md §4.2
// Termination/Failure policy.
func (s *Scheduler) finalize(rb *runningBatch, fastFailed bool) {
	if fastFailed {
		rb.setStage(model.StageFailed)
		s.publish(rb.batch.ID, notifier.EventStageChanged, rb.batch.Stage.String())
	}

	rb.setStage(model.StageMerging)
	s.publish(rb.batch.ID, notifier.EventStageChanged, rb.batch.Stage.String())
	rb.tracker.SetStage(model.StageMerging)

	result, err := rb.merger.Merge(context.Background(), rb.batchTasksSnapshot())

	rb.setStage(model.StageFinalizing)
	s.publish(rb.batch.ID, notifier.EventStageChanged, rb.batch.Stage.String())
	rb.tracker.SetStage(model.StageFinalizing)

	// rb.ctx is also cancelled by fail-fast's SignalOnly, which is abandonment
	// rather than a cancellation request, so it must not read as "cancelled"
	// here.
	cancelled := rb.cancelled() && !fastFailed

	var partial *model.PartialResult
	if cancelled {
		if pr, perr := s.cancels.CapturePartial(context.Background(), rb.batch.ID, rb.batchTasksSnapshot(), nil); perr == nil {
			partial = pr
		}
	}

	rb.mu.Lock()
	rb.batch.CancelRequested = cancelled
	rb.batch.PartialResult = partial
	if err == nil {
		rb.batch.FinalSummary = result.Summary
	} else {
		rb.batch.Error = err.Error()
	}
	if fastFailed {
		rb.batch.Stage = model.StageFailed
	} else if cancelled {
		rb.batch.Stage = model.StageCancelled
	} else {
		rb.batch.Stage = model.StageCompleted
	}
	stage := rb.batch.Stage
	rb.mu.Unlock()

	rb.tracker.SetStage(stage)
	s.publish(rb.batch.ID, notifier.EventStageChanged, stage.String())

	if fastFailed || (err != nil && !cancelled) {
		s.publish(rb.batch.ID, notifier.EventBatchFailed, map[string]any{"error": rb.batch.Error})
		return
	}

	s.publish(rb.batch.ID, notifier.EventBatchCompleted, map[string]any{
		"cancelled": cancelled,
		"summary":   rb.batch.FinalSummary,
	})
}

func (s *Scheduler) maybeEmitProgress(rb *runningBatch) {
	snap, ok := rb.tracker.ShouldEmit(time.Now())
	if !ok {
		return
	}
	rb.mu.Lock()
	rb.batch.Progress = snap
	rb.mu.Unlock()
	s.publish(rb.batch.ID, notifier.EventProgressUpdate, snap)
}

func (s *Scheduler) publish(batchID string, kind notifier.EventKind, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(notifier.Event{Kind: kind, BatchID: batchID, Payload: payload})
}

// inFlightCounter tracks how many provider calls are currently outstanding
// for a batch, used to derive the safe-checkpoint signal: the checkpoint is
// safe exactly when no call is in flight.
type inFlightCounter struct {
	mu    sync.Mutex
	count int
}

func (c *inFlightCounter) enter() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count
}

func (c *inFlightCounter) leave() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count--
	return c.count
}

type failCounter struct {
	mu    sync.Mutex
	count int
}

func (f *failCounter) inc() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	return f.count
}
