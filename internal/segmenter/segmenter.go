// Package segmenter splits a document into ordered, bounded, semantically
// coherent segments (spec.md §4.1 / C2). Structural detection (code/table/
// list/quote) is implemented as a small registry of stateless detectors,
// mirroring the teacher's per-language ParserRegistry (internal/parser).
package segmenter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/batchsumm/orchestrator/internal/model"
	"github.com/batchsumm/orchestrator/internal/provider"
)

// Options configures a single Split call, per spec.md §4.1.
type Options struct {
	MaxSegmentLen      int
	TriggerLen         int
	PreserveParagraphs bool
	GenerateTitles     bool
	EnableLLMAssist    bool
	SentenceTerminators []rune
}

// DefaultOptions matches the defaults in spec.md §4.1/§6.
func DefaultOptions() Options {
	return Options{
		MaxSegmentLen:       2000,
		TriggerLen:          2048,
		PreserveParagraphs:  true,
		GenerateTitles:      true,
		EnableLLMAssist:     false,
		SentenceTerminators: []rune{'.', '。', '!', '！', '?', '？'},
	}
}

// ErrInvalidInput is returned for empty text, per spec.md §4.1 Errors.
var ErrInvalidInput = fmt.Errorf("segmenter: text must not be empty")

// Segmenter splits documents into segments.
type Segmenter struct {
	opts      Options
	detectors []detector
	llm       provider.Summarizer // optional, used only for the LLM-assist path
}

// New builds a Segmenter. llm may be nil; EnableLLMAssist is then ignored.
func New(opts Options, llm provider.Summarizer) *Segmenter {
	return &Segmenter{
		opts:      opts,
		detectors: defaultDetectors(),
		llm:       llm,
	}
}

// ShouldSegment reports whether text needs splitting at all, per the
// short-circuit rule in spec.md §4.1 and the exactly-at-trigger scenario
// in spec.md §8.
func ShouldSegment(text string, triggerLen int) bool {
	return utf8.RuneCountInString(text) > triggerLen
}

// Split segments text into an ordered list of Segments.
func (s *Segmenter) Split(ctx context.Context, text string) ([]model.Segment, error) {
	if len(strings.TrimSpace(text)) == 0 {
		return nil, ErrInvalidInput
	}

	if !ShouldSegment(text, s.opts.TriggerLen) {
		return []model.Segment{s.singleSegment(text)}, nil
	}

	if s.opts.EnableLLMAssist && s.llm != nil {
		if segs, ok := s.tryLLMAssist(ctx, text); ok {
			return segs, nil
		}
		// validation or backend error: fall back silently, per spec.md §4.1.
	}

	return s.splitRuleBased(text), nil
}

func (s *Segmenter) singleSegment(text string) model.Segment {
	seg := model.Segment{
		Index:       0,
		Content:     text,
		StartOffset: 0,
		EndOffset:   len(text),
		Type:        model.SegmentParagraph,
	}
	seg.Title = s.titleFor(seg, 0)
	return seg
}

// splitRuleBased implements the algorithm in spec.md §4.1 steps 1-5.
func (s *Segmenter) splitRuleBased(text string) []model.Segment {
	paragraphs := splitParagraphsWithOffsets(text, s.opts.PreserveParagraphs)

	var segments []model.Segment
	for _, para := range paragraphs {
		if segType, ok := detectStructure(s.detectors, para.content); ok {
			segments = append(segments, s.emitStructural(para.content, para.start, segType)...)
		} else if utf8.RuneCountInString(para.content) <= s.opts.MaxSegmentLen {
			segments = append(segments, s.emitPlain(para.content, para.start))
		} else {
			segments = append(segments, s.splitLongParagraph(para.content, para.start)...)
		}
	}

	return reindex(segments, s)
}

func (s *Segmenter) emitPlain(content string, start int) model.Segment {
	return model.Segment{
		Content:     content,
		StartOffset: start,
		EndOffset:   start + len(content),
		Type:        model.SegmentParagraph,
	}
}

// emitStructural emits a detected special block as a single segment, unless
// it exceeds the hard ceiling (max*1.5), in which case it is split like a
// long paragraph, per spec.md §4.1 step 3.
func (s *Segmenter) emitStructural(content string, start int, segType model.SegmentType) []model.Segment {
	ceiling := int(float64(s.opts.MaxSegmentLen) * 1.5)
	if utf8.RuneCountInString(content) <= ceiling {
		return []model.Segment{{
			Content:     content,
			StartOffset: start,
			EndOffset:   start + len(content),
			Type:        segType,
		}}
	}
	parts := s.splitLongParagraph(content, start)
	for i := range parts {
		parts[i].Type = segType
	}
	return parts
}

// splitLongParagraph greedily accumulates sentences until the next would
// exceed MaxSegmentLen, then flushes; a single over-long sentence is
// hard-split near the tail of the limit, or at MaxSegmentLen if no
// terminator is found there, per spec.md §4.1 step 2.
func (s *Segmenter) splitLongParagraph(para string, start int) []model.Segment {
	sentences := splitSentences(para, s.opts.SentenceTerminators)

	var segments []model.Segment
	var buf strings.Builder
	bufStart := start
	cursor := start

	flush := func(end int) {
		if buf.Len() == 0 {
			return
		}
		segments = append(segments, model.Segment{
			Content:     buf.String(),
			StartOffset: bufStart,
			EndOffset:   end,
			Type:        model.SegmentParagraph,
		})
		buf.Reset()
	}

	for _, sent := range sentences {
		if utf8.RuneCountInString(sent) > s.opts.MaxSegmentLen {
			flush(cursor)
			segments = append(segments, s.hardSplit(sent, cursor)...)
			cursor += len(sent)
			bufStart = cursor
			continue
		}

		if buf.Len() > 0 && utf8.RuneCountInString(buf.String())+utf8.RuneCountInString(sent) > s.opts.MaxSegmentLen {
			flush(cursor)
			bufStart = cursor
		}
		if buf.Len() == 0 {
			bufStart = cursor
		}
		buf.WriteString(sent)
		cursor += len(sent)
	}
	flush(cursor)

	return segments
}

// hardSplit splits a single over-long sentence at the nearest terminator
// within [max*0.8, max], falling back to a hard cut at MaxSegmentLen.
func (s *Segmenter) hardSplit(sent string, start int) []model.Segment {
	var out []model.Segment
	remaining := sent
	cursor := start

	for utf8.RuneCountInString(remaining) > s.opts.MaxSegmentLen {
		lo := int(float64(s.opts.MaxSegmentLen) * 0.8)
		cut := findTerminatorInRange(remaining, lo, s.opts.MaxSegmentLen, s.opts.SentenceTerminators)
		if cut <= 0 {
			cut = byteOffsetForRuneCount(remaining, s.opts.MaxSegmentLen)
		}
		cut = clampRuneBoundary(remaining, cut)

		chunk := remaining[:cut]
		out = append(out, model.Segment{
			Content:     chunk,
			StartOffset: cursor,
			EndOffset:   cursor + len(chunk),
			Type:        model.SegmentParagraph,
		})
		cursor += len(chunk)
		remaining = remaining[cut:]
	}

	if len(remaining) > 0 {
		out = append(out, model.Segment{
			Content:     remaining,
			StartOffset: cursor,
			EndOffset:   cursor + len(remaining),
			Type:        model.SegmentParagraph,
		})
	}
	return out
}

// reindex assigns dense indices and titles after the full segment slice is
// known, per spec.md §4.1 step 4-5.
func reindex(segments []model.Segment, s *Segmenter) []model.Segment {
	for i := range segments {
		segments[i].Index = i
		segments[i].Title = s.titleFor(segments[i], i)
	}
	return segments
}

func (s *Segmenter) titleFor(seg model.Segment, index int) string {
	if !s.opts.GenerateTitles {
		return fmt.Sprintf("Segment %d", index+1)
	}
	sentences := splitSentences(seg.Content, s.opts.SentenceTerminators)
	first := seg.Content
	if len(sentences) > 0 {
		first = sentences[0]
	}
	first = strings.TrimSpace(first)
	if utf8.RuneCountInString(first) > 30 {
		return string([]rune(first)[:30]) + "…"
	}
	if first == "" {
		return fmt.Sprintf("Segment %d", index+1)
	}
	return first
}
