package merger

import "strings"

// scoreQuality computes the four in-[0,1] heuristics of spec.md §4.6 step 5
// over the final merged text.
func scoreQuality(text string, deduped []completedSummary, usedLLM bool) Quality {
	return Quality{
		Coherence:    coherenceScore(text),
		Completeness: completenessScore(text, deduped),
		Conciseness:  concisenessScore(text, deduped),
		Accuracy:     accuracyScore(text, deduped, usedLLM),
	}
}

// coherenceScore rewards text whose sentences mostly end on an ASCII
// terminator ('.', '!' or '?'), a cheap proxy for "reads as one document"
// in the absence of a semantic model.
func coherenceScore(text string) float64 {
	sentences := splitSentencesForCompression(text)
	if len(sentences) == 0 {
		return 0
	}
	terminated := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		last := s[len(s)-1]
		if last == '.' || last == '!' || last == '?' {
			terminated++
		}
	}
	return float64(terminated) / float64(len(sentences))
}

// completenessScore rewards coverage of the deduplicated inputs' vocabulary
// by the final (possibly compressed/polished) text.
func completenessScore(text string, deduped []completedSummary) float64 {
	if len(deduped) == 0 {
		return 0
	}
	outTokens := tokenize(text)
	if len(outTokens) == 0 {
		return 0
	}

	var inputTokens = make(map[string]struct{})
	for _, d := range deduped {
		for k := range tokenize(d.content) {
			inputTokens[k] = struct{}{}
		}
	}
	if len(inputTokens) == 0 {
		return 1
	}

	covered := 0
	for k := range inputTokens {
		if _, ok := outTokens[k]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(inputTokens))
}

// concisenessScore rewards a meaningful reduction relative to the
// concatenated (pre-compression) input length: the score is 1 minus the
// output/input length ratio, clamped to [0,1].
func concisenessScore(text string, deduped []completedSummary) float64 {
	inputLen := 0
	for _, d := range deduped {
		inputLen += len(d.content)
	}
	if inputLen == 0 {
		return 0
	}
	ratio := float64(len(text)) / float64(inputLen)
	if ratio <= 0 {
		return 1
	}
	score := 1 - ratio
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// accuracyScore is a conservative proxy: rule-based merges (no LLM
// rewriting) start from a high baseline since they only ever drop or keep
// original sentences verbatim; an LLM polish pass earns a smaller bonus
// capped below the rule-based ceiling to reflect the unverified rewrite
// risk spec.md §4.6 step 4 calls out.
func accuracyScore(text string, deduped []completedSummary, usedLLM bool) float64 {
	if len(deduped) == 0 {
		return 0
	}
	base := 0.9
	if usedLLM {
		base = 0.8
	}
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return base
}
