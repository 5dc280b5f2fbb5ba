package segmenter

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/batchsumm/orchestrator/internal/model"
)

// QualityScore is the weighted assessment described in spec.md §4.1.
type QualityScore struct {
	SemanticIntegrity float64 // ends on a terminator
	ParagraphIntegrity float64
	LengthBalance     float64 // inverse of std-dev normalized by mean
	Overall           float64
}

// Acceptable is the threshold spec.md §4.1/§9 fixes at 60 (an Open Question
// resolved to this default, per DESIGN.md).
const Acceptable = 60.0

// AssessQuality scores a completed segmentation, exposed for tests per
// spec.md §4.1.
func AssessQuality(segments []model.Segment, terminators []rune) QualityScore {
	if len(segments) == 0 {
		return QualityScore{}
	}

	semantic := semanticIntegrity(segments, terminators)
	paragraph := paragraphIntegrity(segments)
	balance := lengthBalance(segments)

	overall := 0.4*semantic + 0.3*paragraph + 0.3*balance

	return QualityScore{
		SemanticIntegrity:  semantic * 100,
		ParagraphIntegrity: paragraph * 100,
		LengthBalance:      balance * 100,
		Overall:            overall * 100,
	}
}

// IsAcceptable reports whether q clears the acceptable threshold.
func (q QualityScore) IsAcceptable() bool {
	return q.Overall >= Acceptable
}

func semanticIntegrity(segments []model.Segment, terminators []rune) float64 {
	if len(segments) == 0 {
		return 0
	}
	ends := 0
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg.Content)
		if trimmed == "" {
			continue
		}
		last, _ := utf8.DecodeLastRuneInString(trimmed)
		for _, t := range terminators {
			if last == t {
				ends++
				break
			}
		}
	}
	return float64(ends) / float64(len(segments))
}

func paragraphIntegrity(segments []model.Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	intact := 0
	for _, seg := range segments {
		if !strings.Contains(strings.TrimSpace(seg.Content), "\n\n") {
			intact++
		}
	}
	return float64(intact) / float64(len(segments))
}

// lengthBalance scores 1.0 for perfectly uniform segment lengths, decaying
// toward 0 as the coefficient of variation grows.
func lengthBalance(segments []model.Segment) float64 {
	lengths := make([]float64, len(segments))
	for i, seg := range segments {
		lengths[i] = float64(utf8.RuneCountInString(seg.Content))
	}

	m := mean(lengths)
	if m == 0 {
		return 0
	}
	sd := stddev(lengths, m)
	cv := sd / m

	balance := 1 - cv
	if balance < 0 {
		balance = 0
	}
	if balance > 1 {
		balance = 1
	}
	return balance
}

// mean and stddev are adapted from the teacher's
// internal/analyzer/analyzer.go helpers (calculateMean/calculateStdDev),
// the only part of that package carried forward (see DESIGN.md).
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
