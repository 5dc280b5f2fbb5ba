// Package merger implements the summary-merging pipeline: deduplication,
// concatenation, length control, optional LLM polish, and quality scoring
// over a batch's completed segment summaries (spec.md §4.6 / C7).
package merger

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/provider"
)

// Strategy selects the merge profile, per spec.md §4.6.
type Strategy string

const (
	StrategyConcise  Strategy = "concise"
	StrategyBalanced Strategy = "balanced"
	StrategyDetailed Strategy = "detailed"
	StrategyCustom   Strategy = "custom"
)

// Options configures one Merge call.
type Options struct {
	Strategy             Strategy
	TargetLengthRatio    float64
	MinLength            int
	MaxLength            int
	Tolerance            float64
	SimilarityThreshold  float64
	ContextWindow        int
	EnableLLMAssist      bool
	MinSegmentsForLLM    int
	FallbackToRuleBased  bool
	PrependTitles        bool
	MaxIterations        int
	MaxReferencesPerPara int

	// Quality gate minima, per spec.md §4.6 step 5.
	MinCoherence    float64
	MinCompleteness float64
	MinConciseness  float64
	MinAccuracy     float64
}

// DefaultOptions matches the defaults spelled out in spec.md §4.6.
func DefaultOptions() Options {
	return Options{
		Strategy:             StrategyBalanced,
		TargetLengthRatio:    0.6,
		MinLength:            100,
		MaxLength:            2000,
		Tolerance:            0.15,
		SimilarityThreshold:  0.8,
		ContextWindow:        3,
		EnableLLMAssist:      false,
		MinSegmentsForLLM:    5,
		FallbackToRuleBased:  true,
		PrependTitles:        false,
		MaxIterations:        3,
		MaxReferencesPerPara: 3,
		MinCoherence:         0.7,
		MinCompleteness:      0.8,
		MinConciseness:       0.6,
		MinAccuracy:          0.75,
	}
}

// Stats reports the merge's input/output shape, per spec.md §4.6.
type Stats struct {
	InputLength      int
	OutputLength     int
	CompressionRatio float64
	SegmentsMerged   int
	DuplicatesRemoved int
}

// Quality is the heuristic quality score computed over the merged summary.
type Quality struct {
	Coherence    float64
	Completeness float64
	Conciseness  float64
	Accuracy     float64
}

func (q Quality) passes(o Options) bool {
	return q.Coherence >= o.MinCoherence &&
		q.Completeness >= o.MinCompleteness &&
		q.Conciseness >= o.MinConciseness &&
		q.Accuracy >= o.MinAccuracy
}

// Result is the output of a Merge call.
type Result struct {
	Summary         string
	Stats           Stats
	Quality         Quality
	StrategyUsed    Strategy
	ProcessingMs    int64
	RejectedByGate  bool
}

// Merger merges per-segment summaries into one document-level summary.
type Merger struct {
	opts Options
	llm  provider.Summarizer
	sim  *similarityCache
}

// New builds a Merger. llm may be nil; EnableLLMAssist is then ignored.
func New(opts Options, llm provider.Summarizer) *Merger {
	return &Merger{
		opts: opts,
		llm:  llm,
		sim:  newSimilarityCache(256),
	}
}

// completedSummary pairs a task's segment title with its produced summary,
// in segment order.
type completedSummary struct {
	title   string
	content string
}

// Merge runs the full pipeline of spec.md §4.6 over tasks, which must
// already be in segment-index order.
func (m *Merger) Merge(ctx context.Context, tasks []model.SegmentTask) (Result, error) {
	inputs := collectSummaries(tasks)
	if len(inputs) == 0 {
		return Result{}, fmt.Errorf("merger: no completed segment summaries to merge")
	}

	inputLength := 0
	for _, in := range inputs {
		inputLength += len(in.content)
	}

	if len(inputs) == 1 {
		text := inputs[0].content
		quality := scoreQuality(text, inputs, false)
		return Result{
			Summary: text,
			Stats: Stats{
				InputLength:      inputLength,
				OutputLength:     len(text),
				SegmentsMerged:   1,
				CompressionRatio: 1,
			},
			Quality:      quality,
			StrategyUsed: m.opts.Strategy,
		}, nil
	}

	deduped, duplicatesRemoved := m.deduplicate(inputs)

	text := m.concatenate(deduped)

	text, err := m.controlLength(text)
	if err != nil {
		return Result{}, err
	}

	usedLLM := false
	if m.opts.EnableLLMAssist && m.llm != nil && len(inputs) >= m.opts.MinSegmentsForLLM {
		if polished, ok := m.tryPolish(ctx, text); ok {
			text = polished
			usedLLM = true
		}
	}

	quality := scoreQuality(text, deduped, usedLLM)

	stats := Stats{
		InputLength:       inputLength,
		OutputLength:       len(text),
		SegmentsMerged:     len(inputs),
		DuplicatesRemoved:  duplicatesRemoved,
	}
	if inputLength > 0 {
		stats.CompressionRatio = float64(stats.OutputLength) / float64(inputLength)
	}

	result := Result{
		Summary:      text,
		Stats:        stats,
		Quality:      quality,
		StrategyUsed: m.opts.Strategy,
	}

	if !quality.passes(m.opts) {
		result.RejectedByGate = true
		result.Summary = m.concatenate(deduped) // rule-based draft, pre-polish/pre-compression
	}

	return result, nil
}

// MergePartial satisfies the cancel.Merger capability interface: it merges
// whatever subset of tasks completed before cancellation, skipping length
// control and LLM polish (there is no "target" for a partial capture) and
// returning a lightweight model.QualityAssessment placeholder that the
// cancellation controller overwrites with its own completeness/coherence
// computation.
func (m *Merger) MergePartial(ctx context.Context, tasks []model.SegmentTask) (string, model.QualityAssessment, error) {
	inputs := collectSummaries(tasks)
	if len(inputs) == 0 {
		return "", model.QualityAssessment{}, nil
	}
	deduped, _ := m.deduplicate(inputs)
	return m.concatenate(deduped), model.QualityAssessment{}, nil
}

func collectSummaries(tasks []model.SegmentTask) []completedSummary {
	var out []completedSummary
	for _, t := range tasks {
		if t.Status != model.TaskCompleted || strings.TrimSpace(t.Result) == "" {
			continue
		}
		out = append(out, completedSummary{title: t.Segment.Title, content: t.Result})
	}
	return out
}

// Export serializes a Result as JSON or CSV, adapted from the teacher's
// Aggregator.Export/exportJSON/exportCSV.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

func Export(result Result, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportJSON:
		return exportJSON(result)
	case ExportCSV:
		return exportCSV(result)
	default:
		return nil, fmt.Errorf("merger: unsupported export format %q", format)
	}
}

func exportJSON(result Result) ([]byte, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("merger: failed to marshal JSON: %w", err)
	}
	return data, nil
}

func exportCSV(result Result) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"strategy", "input_length", "output_length", "compression_ratio", "segments_merged", "duplicates_removed", "coherence", "completeness", "conciseness", "accuracy"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("merger: failed to write CSV header: %w", err)
	}

	row := []string{
		string(result.StrategyUsed),
		fmt.Sprintf("%d", result.Stats.InputLength),
		fmt.Sprintf("%d", result.Stats.OutputLength),
		fmt.Sprintf("%.4f", result.Stats.CompressionRatio),
		fmt.Sprintf("%d", result.Stats.SegmentsMerged),
		fmt.Sprintf("%d", result.Stats.DuplicatesRemoved),
		fmt.Sprintf("%.4f", result.Quality.Coherence),
		fmt.Sprintf("%.4f", result.Quality.Completeness),
		fmt.Sprintf("%.4f", result.Quality.Conciseness),
		fmt.Sprintf("%.4f", result.Quality.Accuracy),
	}
	if err := w.Write(row); err != nil {
		return nil, fmt.Errorf("merger: failed to write CSV row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("merger: CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}
