package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/batchsumm/orchestrator/internal/model"
)

func sampleBatch() *model.Batch {
	return &model.Batch{
		ID:     "batch-1",
		UserID: "user-1",
		Stage:  model.StageCompleted,
		Tasks: []model.SegmentTask{
			{Segment: model.Segment{Index: 0, Title: "Intro"}, Status: model.TaskCompleted, Attempts: 1},
			{Segment: model.Segment{Index: 1, Title: "Body"}, Status: model.TaskCompleted, Attempts: 2},
		},
		Progress:     model.ProgressSnapshot{ElapsedMs: 4200},
		FinalSummary: "a concise final summary",
	}
}

func TestNewHTMLReporter(t *testing.T) {
	rep, err := NewHTMLReporter()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep == nil || rep.templates == nil {
		t.Fatal("expected reporter with loaded templates")
	}
}

func TestHTMLReporter_Generate_HTML_IncludesFinalSummary(t *testing.T) {
	rep, err := NewHTMLReporter()
	if err != nil {
		t.Fatalf("failed to create reporter: %v", err)
	}

	var buf bytes.Buffer
	opts := &Options{Title: "Test Report", Format: FormatHTML, DarkMode: true}
	if err := rep.Generate(sampleBatch(), opts, &buf); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "a concise final summary") {
		t.Errorf("expected HTML output to contain the final summary")
	}
	if !strings.Contains(out, "batch-1") {
		t.Errorf("expected HTML output to contain the batch id")
	}
}

func TestHTMLReporter_Generate_HTML_RendersPartialResultWhenCancelled(t *testing.T) {
	rep, err := NewHTMLReporter()
	if err != nil {
		t.Fatalf("failed to create reporter: %v", err)
	}

	batch := sampleBatch()
	batch.CancelRequested = true
	batch.PartialResult = &model.PartialResult{
		BatchID:              "batch-1",
		CompletionPct:        0.5,
		MergedPartialSummary: "partial summary text",
		Quality: model.QualityAssessment{
			Coherence:         0.7,
			Level:             model.QualityAcceptable,
			RecommendedAction: "consider-continue",
		},
		CancellationTime: time.Now(),
	}

	var buf bytes.Buffer
	if err := rep.Generate(batch, &Options{Title: "t", Format: FormatHTML}, &buf); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "partial summary text") {
		t.Errorf("expected partial summary to be rendered")
	}
	if !strings.Contains(out, "consider-continue") {
		t.Errorf("expected recommended action to be rendered")
	}
}

func TestHTMLReporter_Generate_JSON_RoundTripsBatch(t *testing.T) {
	rep, err := NewHTMLReporter()
	if err != nil {
		t.Fatalf("failed to create reporter: %v", err)
	}

	var buf bytes.Buffer
	if err := rep.Generate(sampleBatch(), &Options{Format: FormatJSON}, &buf); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	var decoded model.Batch
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}
	if decoded.ID != "batch-1" {
		t.Errorf("expected decoded batch id batch-1, got %s", decoded.ID)
	}
}

func TestHTMLReporter_Generate_NilBatchErrors(t *testing.T) {
	rep, err := NewHTMLReporter()
	if err != nil {
		t.Fatalf("failed to create reporter: %v", err)
	}
	var buf bytes.Buffer
	if err := rep.Generate(nil, &Options{Format: FormatHTML}, &buf); err == nil {
		t.Fatal("expected error for nil batch")
	}
}
