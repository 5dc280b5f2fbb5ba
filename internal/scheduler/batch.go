package scheduler

import (
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

func (rb *runningBatch) setStage(stage model.Stage) {
	rb.mu.Lock()
	rb.batch.Stage = stage
	rb.mu.Unlock()
}

func (rb *runningBatch) cancelled() bool {
	select {
	case <-rb.ctx.Done():
		return true
	default:
		return false
	}
}

// waitForResumeGate blocks a worker that is about to pick up a new segment
// while the batch is paused, per spec.md §4.2's Pause/Resume semantics:
// in-flight calls are never interrupted, only the *next* segment waits.
func (rb *runningBatch) waitForResumeGate() {
	rb.mu.Lock()
	for rb.paused {
		rb.gateCond.Wait()
	}
	rb.mu.Unlock()
}

func (rb *runningBatch) taskAt(index int) model.SegmentTask {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.batch.Tasks[index]
}

func (rb *runningBatch) setTaskStatus(index int, status model.TaskStatus) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.batch.Tasks[index].Status = status
	if status == model.TaskRunning && rb.batch.Tasks[index].StartedAt == nil {
		now := time.Now()
		rb.batch.Tasks[index].StartedAt = &now
	}
	rb.batch.Tasks[index].Attempts++
}

// recordOutcome stores a segment's final result or error, per spec.md §4.2
// step 4/5.
func (rb *runningBatch) recordOutcome(index int, result string, attempts int, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	now := time.Now()
	rb.batch.Tasks[index].FinishedAt = &now
	rb.batch.Tasks[index].Attempts = attempts

	if err == nil {
		rb.batch.Tasks[index].Status = model.TaskCompleted
		rb.batch.Tasks[index].Result = result
		return
	}

	rb.batch.Tasks[index].Status = model.TaskFailed
	rb.batch.Tasks[index].Error = err.Error()
	rb.batch.Tasks[index].LastErrorKind = classify(err).String()
}

func (rb *runningBatch) markFailed(index int, errKind, message string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	now := time.Now()
	rb.batch.Tasks[index].Status = model.TaskFailed
	rb.batch.Tasks[index].FinishedAt = &now
	rb.batch.Tasks[index].Error = message
	rb.batch.Tasks[index].LastErrorKind = errKind
}

func (rb *runningBatch) taskFailed(index int) bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.batch.Tasks[index].Status == model.TaskFailed
}

// batchTasksSnapshot returns a copy of the task slice for handing to the
// Merger without holding the batch lock during the merge.
func (rb *runningBatch) batchTasksSnapshot() []model.SegmentTask {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	out := make([]model.SegmentTask, len(rb.batch.Tasks))
	copy(out, rb.batch.Tasks)
	return out
}
