package merger

import (
	"context"
	"strings"
	"testing"

	"github.com/batchsumm/orchestrator/internal/model"
)

func completedTask(title, result string) model.SegmentTask {
	return model.SegmentTask{
		Segment: model.Segment{Title: title},
		Status:  model.TaskCompleted,
		Result:  result,
	}
}

func TestMerge_DeduplicatesSimilarAdjacentSummaries(t *testing.T) {
	opts := DefaultOptions()
	opts.SimilarityThreshold = 0.5
	m := New(opts, nil)

	tasks := []model.SegmentTask{
		completedTask("s0", "The quick brown fox jumps over the lazy dog."),
		completedTask("s1", "The quick brown fox jumps over the lazy dog again."),
		completedTask("s2", "A completely unrelated sentence about weather patterns."),
	}

	result, err := m.Merge(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.DuplicatesRemoved != 1 {
		t.Fatalf("expected 1 duplicate removed, got %d", result.Stats.DuplicatesRemoved)
	}
	if result.Stats.SegmentsMerged != 3 {
		t.Fatalf("expected 3 input segments counted, got %d", result.Stats.SegmentsMerged)
	}
}

func TestMerge_SingleSegmentBypassesMerging(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxLength = 10 // would force compression if length control ran
	m := New(opts, nil)

	summary := "This is the only segment's summary, well over the max length."
	tasks := []model.SegmentTask{completedTask("s0", summary)}

	result, err := m.Merge(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Summary != summary {
		t.Fatalf("expected single-segment merge to return the summary verbatim, got %q", result.Summary)
	}
	if result.Stats.SegmentsMerged != 1 {
		t.Fatalf("expected 1 segment counted, got %d", result.Stats.SegmentsMerged)
	}
}

func TestMerge_NoCompletedTasksErrors(t *testing.T) {
	m := New(DefaultOptions(), nil)
	_, err := m.Merge(context.Background(), []model.SegmentTask{
		{Status: model.TaskFailed},
	})
	if err == nil {
		t.Fatalf("expected an error when no tasks are completed")
	}
}

func TestMerge_PreservesSegmentOrder(t *testing.T) {
	m := New(DefaultOptions(), nil)
	tasks := []model.SegmentTask{
		completedTask("s0", "First segment summary about topic alpha."),
		completedTask("s1", "Second segment summary about topic beta."),
		completedTask("s2", "Third segment summary about topic gamma."),
	}

	result, err := m.Merge(context.Background(), tasks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ia := strings.Index(result.Summary, "alpha")
	ib := strings.Index(result.Summary, "beta")
	ig := strings.Index(result.Summary, "gamma")
	if !(ia < ib && ib < ig) {
		t.Fatalf("expected segment order alpha < beta < gamma in merged summary, got %q", result.Summary)
	}
}

func TestMergePartial_HandlesEmptyCompletedSet(t *testing.T) {
	m := New(DefaultOptions(), nil)
	summary, quality, err := m.MergePartial(context.Background(), []model.SegmentTask{
		{Status: model.TaskPending},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary != "" {
		t.Fatalf("expected empty summary for no completed tasks, got %q", summary)
	}
	if quality.Completeness != 0 {
		t.Fatalf("expected zero-value quality placeholder")
	}
}

func TestJaccard_IdenticalSetsScoreOne(t *testing.T) {
	a := tokenize("the quick brown fox")
	b := tokenize("the quick brown fox")
	if score := jaccard(a, b); score != 1 {
		t.Fatalf("expected identical token sets to score 1, got %v", score)
	}
}

func TestJaccard_PartialOverlapScoresBetweenZeroAndOne(t *testing.T) {
	a := tokenize("apples and oranges")
	b := tokenize("trains and planes")
	score := jaccard(a, b)
	if score <= 0 || score >= 1 {
		t.Fatalf("expected a partial overlap score in (0,1) for shared word 'and', got %v", score)
	}
}

func TestSimilarityCache_ReturnsCachedScore(t *testing.T) {
	m := New(DefaultOptions(), nil)
	a, b := "hello world this is a test", "hello world this is another test"

	first := m.similarity(a, b)
	if m.sim.size() != 1 {
		t.Fatalf("expected one cached entry after first computation")
	}
	second := m.similarity(a, b)
	if first != second {
		t.Fatalf("expected cached similarity to match recomputation")
	}
}

func TestExport_JSONRoundTripsStats(t *testing.T) {
	m := New(DefaultOptions(), nil)
	result, err := m.Merge(context.Background(), []model.SegmentTask{
		completedTask("s0", "Some summary text here for export testing purposes."),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := Export(result, ExportJSON)
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty JSON export")
	}
}

func TestExport_CSVHasHeaderAndRow(t *testing.T) {
	m := New(DefaultOptions(), nil)
	result, err := m.Merge(context.Background(), []model.SegmentTask{
		completedTask("s0", "Some summary text here for export testing purposes."),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := Export(result, ExportCSV)
	if err != nil {
		t.Fatalf("unexpected export error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 data row, got %d lines", len(lines))
	}
}
