package cancel

import (
	"context"
	"testing"
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

type fakeMerger struct {
	summary string
	quality model.QualityAssessment
	err     error
}

func (f *fakeMerger) MergePartial(ctx context.Context, tasks []model.SegmentTask) (string, model.QualityAssessment, error) {
	return f.summary, f.quality, f.err
}

type recordingPublisher struct {
	events []PublishedEvent
}

func (r *recordingPublisher) Publish(e PublishedEvent) {
	r.events = append(r.events, e)
}

func TestRequest_ForcedCancelsImmediately(t *testing.T) {
	pub := &recordingPublisher{}
	c := New(nil, pub, nil)
	ctx := c.Register(context.Background(), "b1")

	res := c.Request(context.Background(), model.CancellationRequest{BatchID: "b1", Force: true})
	if !res.Successful || res.Message != "forced" {
		t.Fatalf("expected successful forced result, got %+v", res)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected token to be cancelled")
	}
	if res.PartialSaved {
		t.Fatalf("forced cancellation must not save partial results")
	}
}

func TestRequest_GracefulAtSafeCheckpointFiresImmediately(t *testing.T) {
	pub := &recordingPublisher{}
	c := New(&fakeMerger{}, pub, nil)
	ctx := c.Register(context.Background(), "b1")
	c.SetSafeCheckpoint("b1", true)

	res := c.Request(context.Background(), model.CancellationRequest{BatchID: "b1", SavePartial: true})
	if !res.Successful || res.Message != "graceful" {
		t.Fatalf("expected graceful result, got %+v", res)
	}
	select {
	case <-ctx.Done():
	default:
		t.Fatalf("expected token to be cancelled at safe checkpoint")
	}
	if !res.PartialSaved {
		t.Fatalf("expected partial save when requested at a safe checkpoint")
	}
}

func TestRequest_NotAtSafeCheckpointIsPendingThenFiresAtCheckpoint(t *testing.T) {
	pub := &recordingPublisher{}
	c := New(nil, pub, nil)
	ctx := c.Register(context.Background(), "b1")

	res := c.Request(context.Background(), model.CancellationRequest{BatchID: "b1"})
	if res.Message != "pending" {
		t.Fatalf("expected pending result, got %+v", res)
	}
	select {
	case <-ctx.Done():
		t.Fatalf("should not be cancelled yet")
	default:
	}

	c.SetSafeCheckpoint("b1", true)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("expected cancellation to fire once a safe checkpoint is reached")
	}
}

func TestRequest_IdempotentOnRepeatedCalls(t *testing.T) {
	c := New(nil, nil, nil)
	c.Register(context.Background(), "b1")

	first := c.Request(context.Background(), model.CancellationRequest{BatchID: "b1", Force: true})
	second := c.Request(context.Background(), model.CancellationRequest{BatchID: "b1", Force: true})

	if !first.Successful || !second.Successful {
		t.Fatalf("expected both requests to report success")
	}
}

func TestIsCancelled_ReflectsTokenState(t *testing.T) {
	c := New(nil, nil, nil)
	c.Register(context.Background(), "b1")

	if c.IsCancelled("b1") {
		t.Fatalf("expected not cancelled initially")
	}
	c.Request(context.Background(), model.CancellationRequest{BatchID: "b1", Force: true})
	if !c.IsCancelled("b1") {
		t.Fatalf("expected cancelled after forced request")
	}
}

func TestCapturePartial_ComputesCompletenessAndCoherence(t *testing.T) {
	merger := &fakeMerger{summary: "partial summary"}
	c := New(merger, nil, nil)

	tasks := []model.SegmentTask{
		{Segment: model.Segment{Title: "s0"}, Status: model.TaskCompleted},
		{Segment: model.Segment{Title: "s1"}, Status: model.TaskCompleted},
		{Segment: model.Segment{Title: "s2"}, Status: model.TaskPending},
		{Segment: model.Segment{Title: "s3"}, Status: model.TaskFailed},
	}

	result, err := c.CapturePartial(context.Background(), "b1", tasks, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CompletionPct != 50 {
		t.Fatalf("expected completion pct 50, got %v", result.CompletionPct)
	}
	if result.Quality.Coherence != 0.5 {
		t.Fatalf("expected coherence 0.5 (2 contiguous of 4), got %v", result.Quality.Coherence)
	}
	if len(result.Quality.MissingTopics) != 2 {
		t.Fatalf("expected 2 missing topics, got %d", len(result.Quality.MissingTopics))
	}
	if result.MergedPartialSummary != "partial summary" {
		t.Fatalf("expected merger summary to flow through, got %q", result.MergedPartialSummary)
	}
}

func TestUnregister_StopsPendingTimer(t *testing.T) {
	c := New(nil, nil, nil)
	c.Register(context.Background(), "b1")
	c.Request(context.Background(), model.CancellationRequest{BatchID: "b1"})
	c.Unregister("b1")
	// No assertion beyond "does not panic": this exercises the cleanup path.
}
