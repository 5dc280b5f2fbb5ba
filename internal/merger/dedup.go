package merger

import (
	"sort"
	"strings"
)

// deduplicate collapses adjacent segment summaries whose token-set Jaccard
// similarity exceeds the configured threshold, considering a context
// window of neighboring segments, per spec.md §4.6 step 1.
func (m *Merger) deduplicate(inputs []completedSummary) ([]completedSummary, int) {
	if len(inputs) <= 1 {
		return inputs, 0
	}

	kept := make([]bool, len(inputs))
	for i := range kept {
		kept[i] = true
	}

	removed := 0
	for i := 1; i < len(inputs); i++ {
		if !kept[i] {
			continue
		}
		lo := i - m.opts.ContextWindow
		if lo < 0 {
			lo = 0
		}
		for j := lo; j < i; j++ {
			if !kept[j] {
				continue
			}
			score := m.similarity(inputs[j].content, inputs[i].content)
			if score > m.opts.SimilarityThreshold {
				kept[i] = false
				removed++
				break
			}
		}
	}

	out := make([]completedSummary, 0, len(inputs)-removed)
	for i, k := range kept {
		if k {
			out = append(out, inputs[i])
		}
	}
	return out, removed
}

// similarity returns the cached (or freshly computed) Jaccard similarity
// between two summaries' token sets.
func (m *Merger) similarity(a, b string) float64 {
	key := cacheKey(a, b)
	if score, ok := m.sim.get(key); ok {
		return score
	}
	score := jaccard(tokenize(a), tokenize(b))
	m.sim.set(key, score)
	return score
}

func cacheKey(a, b string) string {
	var sb strings.Builder
	sb.WriteString(a)
	sb.WriteByte(0)
	sb.WriteString(b)
	return sb.String()
}

func tokenize(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,!?;:\"'()")] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// concatenate joins deduplicated summaries with paragraph breaks in
// segment order, optionally prepending segment titles, per spec.md §4.6
// step 2.
func (m *Merger) concatenate(inputs []completedSummary) string {
	parts := make([]string, 0, len(inputs))
	for _, in := range inputs {
		content := strings.TrimSpace(in.content)
		if content == "" {
			continue
		}
		if m.opts.PrependTitles && in.title != "" {
			content = in.title + ": " + content
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n\n")
}

// splitSentencesForCompression is a conservative sentence splitter local to
// length control, separate from the segmenter's splitter since the merger
// only needs terminator-based splitting, not offset tracking.
func splitSentencesForCompression(text string) []string {
	var sentences []string
	var buf strings.Builder
	for _, r := range text {
		buf.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？':
			s := strings.TrimSpace(buf.String())
			if s != "" {
				sentences = append(sentences, s)
			}
			buf.Reset()
		}
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// salienceRank orders sentence indices by the drop-priority heuristic of
// spec.md §4.6 step 3: shorter sentences and ones that repeat an earlier
// sentence's leading tokens are dropped first.
func salienceRank(sentences []string) []int {
	seenPrefix := make(map[string]int)
	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, len(sentences))
	for i, s := range sentences {
		words := strings.Fields(strings.ToLower(s))
		prefix := ""
		if len(words) > 0 {
			n := 3
			if len(words) < n {
				n = len(words)
			}
			prefix = strings.Join(words[:n], " ")
		}
		repeatPenalty := 0.0
		if _, seen := seenPrefix[prefix]; seen && prefix != "" {
			repeatPenalty = 1000 // strongly prefer dropping repeats first
		} else if prefix != "" {
			seenPrefix[prefix] = i
		}
		// Lower score = earlier candidate for removal: short sentences and
		// repeats sort first.
		scores[i] = scored{idx: i, score: float64(len(s)) - repeatPenalty}
	}
	sort.Slice(scores, func(a, b int) bool { return scores[a].score < scores[b].score })

	order := make([]int, len(scores))
	for i, s := range scores {
		order[i] = s.idx
	}
	return order
}
