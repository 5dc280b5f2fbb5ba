package segmenter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/batchsumm/orchestrator/internal/model"
)

// segmentMarker delimits LLM-proposed segments in the assist-path prompt.
const segmentMarker = "\n<<<SEGMENT>>>\n"

// tryLLMAssist asks the provider to propose segment boundaries in one call,
// validates the result, and falls back silently on any problem, per
// spec.md §4.1's LLM-assist path.
func (s *Segmenter) tryLLMAssist(ctx context.Context, text string) ([]model.Segment, bool) {
	prompt := fmt.Sprintf(
		"Split the following text into coherent segments of at most %d characters each. "+
			"Separate each segment with the exact marker %q. Return only the segmented text.\n\n%s",
		s.opts.MaxSegmentLen, strings.TrimSpace(segmentMarker), text,
	)

	raw, err := s.llm.Summarize(ctx, prompt)
	if err != nil {
		slog.Warn("segmenter: llm-assist backend error, falling back to rule-based", "error", err)
		return nil, false
	}

	parts := strings.Split(raw, segmentMarker)
	if len(parts) <= 1 {
		// try a looser split in case the model normalized whitespace around the marker
		parts = strings.Split(raw, strings.TrimSpace(segmentMarker))
	}

	segments := make([]model.Segment, 0, len(parts))
	offset := 0
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if utf8.RuneCountInString(trimmed) > s.opts.MaxSegmentLen {
			slog.Warn("segmenter: llm-assist segment exceeds max length, falling back to rule-based")
			return nil, false
		}
		segments = append(segments, model.Segment{
			Content:     trimmed,
			StartOffset: offset,
			EndOffset:   offset + len(trimmed),
			Type:        model.SegmentParagraph,
		})
		offset += len(trimmed)
	}

	if len(segments) == 0 {
		slog.Warn("segmenter: llm-assist produced no valid segments, falling back to rule-based")
		return nil, false
	}

	return reindex(segments, s), true
}
