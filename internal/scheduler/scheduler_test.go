package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/batchsumm/orchestrator/internal/cancel"
	"github.com/batchsumm/orchestrator/internal/merger"
	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/notifier"
	"github.com/batchsumm/orchestrator/internal/provider"
)

func testSegments(n int) []model.Segment {
	segs := make([]model.Segment, n)
	for i := range segs {
		segs[i] = model.Segment{Index: i, Title: fmt.Sprintf("seg-%d", i), Content: fmt.Sprintf("content for segment %d", i)}
	}
	return segs
}

func newTestScheduler(p provider.Summarizer) (*Scheduler, *notifier.Bus) {
	bus := notifier.NewBus()
	m := merger.New(merger.DefaultOptions(), p)
	cc := cancel.New(m, NewBusPublisher(bus), nil)
	return New(p, cc, bus, nil), bus
}

func waitForTerminal(t *testing.T, s *Scheduler, batchID string, timeout time.Duration) model.ProgressSnapshot {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rb := s.get(batchID)
		if rb == nil {
			t.Fatalf("batch %s not found", batchID)
		}
		select {
		case <-rb.doneCh:
			snap, _ := s.Progress(batchID)
			return snap
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatalf("timed out waiting for batch %s to finish", batchID)
	return model.ProgressSnapshot{}
}

func TestStart_AllSegmentsSucceed(t *testing.T) {
	fake := provider.NewFake()
	s, _ := newTestScheduler(fake)

	cfg := DefaultConfig()
	batchID := s.Start(context.Background(), "user-1", "original text", testSegments(3), cfg)

	waitForTerminal(t, s, batchID, 5*time.Second)

	rb := s.get(batchID)
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.batch.Stage != model.StageCompleted {
		t.Fatalf("expected stage completed, got %v", rb.batch.Stage)
	}
	for _, task := range rb.batch.Tasks {
		if task.Status != model.TaskCompleted {
			t.Fatalf("expected all tasks completed, got %v", task.Status)
		}
	}
	if rb.batch.FinalSummary == "" {
		t.Fatalf("expected a non-empty final summary")
	}
}

func TestStart_RetriesTransientFailureThenSucceeds(t *testing.T) {
	fake := provider.NewFake()
	fake.FailUntil = 1 // fail once per segment, then succeed
	s, _ := newTestScheduler(fake)

	cfg := DefaultConfig()
	cfg.BaseDelay = 10 * time.Millisecond
	batchID := s.Start(context.Background(), "user-1", "original text", testSegments(2), cfg)

	waitForTerminal(t, s, batchID, 5*time.Second)

	rb := s.get(batchID)
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.batch.Stage != model.StageCompleted {
		t.Fatalf("expected stage completed after retry, got %v", rb.batch.Stage)
	}
	for _, task := range rb.batch.Tasks {
		if task.Attempts < 2 {
			t.Fatalf("expected at least 2 attempts after one simulated failure, got %d", task.Attempts)
		}
	}
}

func TestStart_FailFastTripsOnMajorityFailures(t *testing.T) {
	fake := provider.NewFake()
	fake.FailUntil = 100 // always fail
	s, _ := newTestScheduler(fake)

	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	cfg.BaseDelay = time.Millisecond
	batchID := s.Start(context.Background(), "user-1", "original text", testSegments(4), cfg)

	waitForTerminal(t, s, batchID, 5*time.Second)

	rb := s.get(batchID)
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.batch.Stage != model.StageFailed {
		t.Fatalf("expected stage failed once fail-fast threshold trips, got %v", rb.batch.Stage)
	}
	if rb.batch.CancelRequested {
		t.Fatalf("expected fail-fast abandonment not to read as a cancellation")
	}
}

func TestStart_FailFastEmitsExactlyOneBatchFailedEvent(t *testing.T) {
	gate := make(chan struct{})
	fake := provider.NewFake()
	fake.SummarizeFn = func(ctx context.Context, text string) (string, error) {
		<-gate
		return "", fmt.Errorf("fake provider: simulated failure")
	}
	s, bus := newTestScheduler(fake)

	sub := bus.Connect("watcher")
	defer bus.Disconnect("watcher")

	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	cfg.BaseDelay = time.Millisecond
	batchID := s.Start(context.Background(), "user-1", "original text", testSegments(4), cfg)
	bus.JoinBatchGroup("watcher", batchID)
	close(gate) // every segment is now past its SummarizeFn block and will fail

	waitForTerminal(t, s, batchID, 5*time.Second)
	time.Sleep(50 * time.Millisecond) // drain any trailing events

	completed, failed := 0, 0
drain:
	for {
		select {
		case e := <-sub:
			switch e.Kind {
			case notifier.EventBatchCompleted:
				completed++
			case notifier.EventBatchFailed:
				failed++
			}
		default:
			break drain
		}
	}

	if completed != 0 {
		t.Fatalf("expected no BatchCompleted event for a fail-fast batch, got %d", completed)
	}
	if failed != 1 {
		t.Fatalf("expected exactly 1 BatchFailed event, got %d", failed)
	}
}

func TestCancel_ForcedStopsBatch(t *testing.T) {
	fake := provider.NewFake()
	fake.SummarizeFn = func(ctx context.Context, text string) (string, error) {
		select {
		case <-time.After(2 * time.Second):
			return "slow summary", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s, _ := newTestScheduler(fake)

	cfg := DefaultConfig()
	batchID := s.Start(context.Background(), "user-1", "original text", testSegments(2), cfg)

	time.Sleep(50 * time.Millisecond) // let workers start their calls
	res := s.Cancel(model.CancellationRequest{BatchID: batchID, Force: true})
	if !res.Successful {
		t.Fatalf("expected successful cancel result, got %+v", res)
	}

	waitForTerminal(t, s, batchID, 5*time.Second)

	rb := s.get(batchID)
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.batch.Stage != model.StageCancelled {
		t.Fatalf("expected stage cancelled, got %v", rb.batch.Stage)
	}
}

func TestListByUser_FiltersByOwner(t *testing.T) {
	fake := provider.NewFake()
	s, _ := newTestScheduler(fake)

	b1 := s.Start(context.Background(), "alice", "text", testSegments(1), DefaultConfig())
	b2 := s.Start(context.Background(), "bob", "text", testSegments(1), DefaultConfig())
	waitForTerminal(t, s, b1, 5*time.Second)
	waitForTerminal(t, s, b2, 5*time.Second)

	aliceBatches := s.ListByUser("alice")
	if len(aliceBatches) != 1 || aliceBatches[0].ID != b1 {
		t.Fatalf("expected exactly alice's batch, got %+v", aliceBatches)
	}
}

func TestCleanup_RemovesOldTerminalBatches(t *testing.T) {
	fake := provider.NewFake()
	s, _ := newTestScheduler(fake)

	batchID := s.Start(context.Background(), "user-1", "text", testSegments(1), DefaultConfig())
	waitForTerminal(t, s, batchID, 5*time.Second)

	removed := s.Cleanup(-time.Hour) // "older than" a negative duration: everything qualifies
	if removed != 1 {
		t.Fatalf("expected 1 batch removed, got %d", removed)
	}
	if _, ok := s.Progress(batchID); ok {
		t.Fatalf("expected batch to be gone after cleanup")
	}
}

func TestPauseResume_GatesNewSegmentsNotInFlightCalls(t *testing.T) {
	fake := provider.NewFake()
	s, _ := newTestScheduler(fake)

	cfg := DefaultConfig()
	cfg.ConcurrencyLimit = 1
	batchID := s.Start(context.Background(), "user-1", "text", testSegments(3), cfg)

	if ok := s.Pause(batchID); !ok {
		t.Fatalf("expected pause to succeed")
	}
	if ok := s.Resume(batchID); !ok {
		t.Fatalf("expected resume to succeed")
	}

	waitForTerminal(t, s, batchID, 5*time.Second)
}

func TestFailFastThreshold_StrictMajority(t *testing.T) {
	if failFastThreshold(10) != 5 {
		t.Fatalf("expected floor(10/2)=5, got %d", failFastThreshold(10))
	}
	if failFastThreshold(3) != 1 {
		t.Fatalf("expected floor(3/2)=1, got %d", failFastThreshold(3))
	}
}
