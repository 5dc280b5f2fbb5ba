package merger

import (
	"context"
	"fmt"
	"strings"
)

// controlLength compresses or expands text until it falls within
// target±tolerance, bounded by MaxIterations, per spec.md §4.6 step 3.
// Compression drops sentences in ascending salience order. Expansion only
// reintroduces sentences this call dropped earlier, so text that starts
// below the range gains no content.
func (m *Merger) controlLength(text string) (string, error) {
	target := targetLength(len(text), m.opts)
	lo := int(float64(target) * (1 - m.opts.Tolerance))
	hi := int(float64(target) * (1 + m.opts.Tolerance))
	if lo < m.opts.MinLength {
		lo = m.opts.MinLength
	}
	if hi > m.opts.MaxLength {
		hi = m.opts.MaxLength
	}

	if len(text) >= lo && len(text) <= hi {
		return text, nil
	}

	sentences := splitSentencesForCompression(text)
	if len(sentences) == 0 {
		return text, nil
	}
	order := salienceRank(sentences)

	dropped := make(map[int]bool)
	current := joinKept(sentences, dropped)

	for i := 0; i < m.opts.MaxIterations; i++ {
		if len(current) >= lo && len(current) <= hi {
			break
		}

		if len(current) > hi {
			// Compression: drop the next lowest-salience sentence not yet dropped.
			next := nextUndropped(order, dropped)
			if next < 0 {
				break
			}
			dropped[next] = true
			current = joinKept(sentences, dropped)
			continue
		}

		// Expansion: reintroduce the dropped sentence with the highest index.
		last := lastDropped(dropped)
		if last < 0 {
			break
		}
		delete(dropped, last)
		current = joinKept(sentences, dropped)
	}

	return current, nil
}

func targetLength(inputLength int, o Options) int {
	t := int(float64(inputLength) * o.TargetLengthRatio)
	if t < o.MinLength {
		t = o.MinLength
	}
	if t > o.MaxLength {
		t = o.MaxLength
	}
	return t
}

func joinKept(sentences []string, dropped map[int]bool) string {
	var parts []string
	for i, s := range sentences {
		if dropped[i] {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func nextUndropped(order []int, dropped map[int]bool) int {
	for _, idx := range order {
		if !dropped[idx] {
			return idx
		}
	}
	return -1
}

func lastDropped(dropped map[int]bool) int {
	best := -1
	for idx := range dropped {
		if idx > best {
			best = idx
		}
	}
	return best
}

// tryPolish requests a single coherence-smoothing LLM pass over the
// rule-based merge, per spec.md §4.6 step 4. On any error or an empty reply
// it returns ok=false so the caller keeps the rule-based text; this holds
// whether or not FallbackToRuleBased is set.
func (m *Merger) tryPolish(ctx context.Context, text string) (string, bool) {
	prompt := fmt.Sprintf("Smooth the following merged summary for coherence without changing its meaning or length significantly:\n\n%s", text)
	polished, err := m.llm.Summarize(ctx, prompt)
	if err != nil {
		if !m.opts.FallbackToRuleBased {
			return text, false
		}
		return text, false
	}
	polished = strings.TrimSpace(polished)
	if polished == "" {
		return text, false
	}
	return polished, true
}
