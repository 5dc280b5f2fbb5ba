// Package tracker maintains per-batch progress state: a rolling window of
// segment completion durations, ETA/throughput derivations, and idempotent,
// throttled snapshot publishing (spec.md §4.3 / C3).
package tracker

import (
	"sync"
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

// DefaultWindow is the ring buffer size spec.md §4.3 fixes at 20.
const DefaultWindow = 20

// overheadFactor pads the ETA estimate, per spec.md §4.3.
const overheadFactor = 1.1

// minEmitInterval is the throttling floor, per spec.md §4.3.
const minEmitInterval = 2 * time.Second

// ring is a small fixed-capacity circular buffer of float64 durations,
// overwrite-oldest, simpler than a resizable ring since the window never
// grows (per SPEC_FULL.md's implementation note for this component).
type ring struct {
	buf   []float64
	next  int
	count int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]float64, capacity)}
}

func (r *ring) add(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) mean() float64 {
	if r.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.count; i++ {
		sum += r.buf[i]
	}
	return sum / float64(r.count)
}

// Tracker owns the progress state of a single batch.
type Tracker struct {
	mu sync.Mutex

	total          int
	completed      int
	failed         int
	currentIndex   int
	stage          model.Stage
	activeWorkers  int
	startedAt      time.Time
	completedChars int64

	durations *ring

	lastSnapshot  *model.ProgressSnapshot
	lastEmittedAt time.Time
}

// New creates a Tracker for a batch of the given total segment count.
func New(total int, startedAt time.Time) *Tracker {
	return &Tracker{
		total:     total,
		stage:     model.StageInitializing,
		startedAt: startedAt,
		durations: newRing(DefaultWindow),
	}
}

// SetActiveWorkers updates the divisor used for ETA estimation.
func (t *Tracker) SetActiveWorkers(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeWorkers = n
}

// SetStage records a stage transition.
func (t *Tracker) SetStage(stage model.Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
}

// RecordSegmentDuration folds one segment's completion time into the window
// and advances the completed/failed counters, per spec.md §4.3. chars is the
// completed segment's content length, accumulated to derive the chars/sec
// throughput component of ProgressSnapshot.
func (t *Tracker) RecordSegmentDuration(index int, d time.Duration, failed bool, chars int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.durations.add(float64(d.Milliseconds()))
	t.currentIndex = index
	if failed {
		t.failed++
	} else {
		t.completed++
		t.completedChars += int64(chars)
	}
}

// Snapshot computes the current ProgressSnapshot without applying the
// emission throttle. Callers that need the throttled publish decision
// should use ShouldEmit alongside this.
func (t *Tracker) Snapshot(now time.Time) model.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(now)
}

func (t *Tracker) snapshotLocked(now time.Time) model.ProgressSnapshot {
	avgSegmentMs := t.durations.mean()

	elapsed := now.Sub(t.startedAt)
	elapsedMs := elapsed.Milliseconds()

	stagePct := t.stagePctLocked()
	overallPct := model.StageOffset(t.stage) + model.StageWeights[t.stage]*stagePct

	var etaMs *int64
	remaining := t.total - t.completed - t.failed
	if t.stage == model.StageBatchProcessing && remaining > 0 && avgSegmentMs > 0 {
		workers := t.activeWorkers
		if workers < 1 {
			workers = 1
		}
		eta := int64(avgSegmentMs * float64(remaining) / float64(workers) * overheadFactor)
		etaMs = &eta
	}

	var throughputPerMin float64
	var throughputChars float64
	if elapsed > 0 {
		throughputPerMin = float64(t.completed) / elapsed.Minutes()
		throughputChars = float64(t.completedChars) / elapsed.Seconds()
	}

	return model.ProgressSnapshot{
		Total:            t.total,
		Completed:        t.completed,
		Failed:           t.failed,
		CurrentIndex:     t.currentIndex,
		Stage:            t.stage,
		OverallPct:       overallPct,
		StagePct:         stagePct,
		ElapsedMs:        elapsedMs,
		ETAMs:            etaMs,
		AvgSegmentMs:     avgSegmentMs,
		ThroughputPerMin: throughputPerMin,
		ThroughputChars:  throughputChars,
		LastUpdated:      now,
	}
}

// stagePctLocked computes stage_pct for the current stage; only
// batch-processing has a meaningful formula (spec.md §4.3), every other
// stage reports 0.
func (t *Tracker) stagePctLocked() float64 {
	if t.stage != model.StageBatchProcessing {
		return 0
	}
	if t.total == 0 {
		return 0
	}
	return float64(t.completed+t.failed) / float64(t.total)
}

// ShouldEmit decides whether a new snapshot differs enough from the last
// emitted one to warrant publishing, per spec.md §4.3's idempotent-snapshot
// guarantee: stage change, ±1% overall, ±5% eta, or 2s elapsed since the
// last emission. It updates internal emission bookkeeping as a side effect
// when it returns true, so callers should publish immediately after.
func (t *Tracker) ShouldEmit(now time.Time) (model.ProgressSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snapshotLocked(now)

	if t.lastSnapshot == nil {
		t.lastSnapshot = &snap
		t.lastEmittedAt = now
		return snap, true
	}

	prev := t.lastSnapshot
	changed := prev.Stage != snap.Stage ||
		absFloat(snap.OverallPct-prev.OverallPct) >= 1.0 ||
		etaChangedBeyond(prev.ETAMs, snap.ETAMs, 0.05) ||
		now.Sub(t.lastEmittedAt) >= minEmitInterval

	if !changed {
		return snap, false
	}

	t.lastSnapshot = &snap
	t.lastEmittedAt = now
	return snap, true
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func etaChangedBeyond(prev, cur *int64, frac float64) bool {
	if prev == nil && cur == nil {
		return false
	}
	if prev == nil || cur == nil {
		return true
	}
	if *prev == 0 {
		return *cur != 0
	}
	delta := absFloat(float64(*cur-*prev)) / float64(*prev)
	return delta >= frac
}
