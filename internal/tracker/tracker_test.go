package tracker

import (
	"testing"
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

func TestSnapshot_StagePctForBatchProcessing(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	tr := New(10, start)
	tr.SetStage(model.StageBatchProcessing)
	tr.SetActiveWorkers(2)

	for i := 0; i < 4; i++ {
		tr.RecordSegmentDuration(i, 500*time.Millisecond, false, 100)
	}
	tr.RecordSegmentDuration(4, 500*time.Millisecond, true, 100)

	snap := tr.Snapshot(time.Now())
	if snap.Completed != 4 || snap.Failed != 1 {
		t.Fatalf("unexpected counters: completed=%d failed=%d", snap.Completed, snap.Failed)
	}
	wantStagePct := 5.0 / 10.0
	if snap.StagePct != wantStagePct {
		t.Fatalf("expected stage_pct=%v, got %v", wantStagePct, snap.StagePct)
	}

	wantOverall := model.StageOffset(model.StageBatchProcessing) + model.StageWeights[model.StageBatchProcessing]*wantStagePct
	if snap.OverallPct != wantOverall {
		t.Fatalf("expected overall_pct=%v, got %v", wantOverall, snap.OverallPct)
	}
}

func TestSnapshot_ETANilOutsideBatchProcessing(t *testing.T) {
	tr := New(10, time.Now())
	tr.SetStage(model.StageSegmenting)
	snap := tr.Snapshot(time.Now())
	if snap.ETAMs != nil {
		t.Fatalf("expected nil ETA outside batch-processing, got %v", *snap.ETAMs)
	}
}

func TestSnapshot_ETANilWhenComplete(t *testing.T) {
	tr := New(2, time.Now())
	tr.SetStage(model.StageBatchProcessing)
	tr.SetActiveWorkers(1)
	tr.RecordSegmentDuration(0, time.Second, false, 100)
	tr.RecordSegmentDuration(1, time.Second, false, 100)

	snap := tr.Snapshot(time.Now())
	if snap.ETAMs != nil {
		t.Fatalf("expected nil ETA once all segments are accounted for, got %v", *snap.ETAMs)
	}
}

func TestShouldEmit_ThrottlesUnchangedSnapshots(t *testing.T) {
	base := time.Now()
	tr := New(100, base)
	tr.SetStage(model.StageBatchProcessing)
	tr.SetActiveWorkers(1)

	// First call always emits.
	if _, ok := tr.ShouldEmit(base); !ok {
		t.Fatalf("expected first snapshot to emit")
	}

	// Same instant, no state change: should not emit again.
	if _, ok := tr.ShouldEmit(base.Add(100 * time.Millisecond)); ok {
		t.Fatalf("expected throttled snapshot to be suppressed")
	}

	// After 2s with no change, the time-based floor forces an emission.
	if _, ok := tr.ShouldEmit(base.Add(2100 * time.Millisecond)); !ok {
		t.Fatalf("expected emission after 2s floor elapsed")
	}
}

func TestShouldEmit_EmitsOnStageChange(t *testing.T) {
	base := time.Now()
	tr := New(10, base)
	tr.SetStage(model.StageSegmenting)

	if _, ok := tr.ShouldEmit(base); !ok {
		t.Fatalf("expected first snapshot to emit")
	}
	tr.SetStage(model.StageBatchProcessing)
	if _, ok := tr.ShouldEmit(base.Add(10 * time.Millisecond)); !ok {
		t.Fatalf("expected emission on stage change even within throttle window")
	}
}

func TestShouldEmit_EmitsOnOnePercentOverallChange(t *testing.T) {
	base := time.Now()
	tr := New(100, base)
	tr.SetStage(model.StageBatchProcessing)
	tr.SetActiveWorkers(4)

	if _, ok := tr.ShouldEmit(base); !ok {
		t.Fatalf("expected first snapshot to emit")
	}

	for i := 0; i < 2; i++ {
		tr.RecordSegmentDuration(i, 50*time.Millisecond, false, 100)
	}
	// Completing 2/100 segments moves stage_pct by 2% -> overall_pct by
	// 1.4 percentage points (70 * 0.02), clearing the 1% threshold.
	if _, ok := tr.ShouldEmit(base.Add(20 * time.Millisecond)); !ok {
		t.Fatalf("expected emission once overall_pct moved by >=1%%")
	}
}

func TestRingBuffer_OverwritesOldest(t *testing.T) {
	r := newRing(3)
	r.add(10)
	r.add(20)
	r.add(30)
	r.add(40) // overwrites the 10

	got := r.mean()
	want := (20.0 + 30.0 + 40.0) / 3.0
	if got != want {
		t.Fatalf("expected mean %v, got %v", want, got)
	}
}
