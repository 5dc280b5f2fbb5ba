package segmenter

import (
	"strings"
	"unicode/utf8"
)

// paragraphSpan is a paragraph's content alongside its offset in the
// original text, so downstream segments can carry accurate byte offsets.
type paragraphSpan struct {
	content string
	start   int
}

// splitParagraphsWithOffsets splits on blank-line boundaries when
// preserveParagraphs is set, otherwise treats the whole text as one
// paragraph, per spec.md §4.1 step 1. Each returned span's offset is its
// exact byte position in text, so concatenation-in-order (accounting for
// the dropped separators) reproduces the input up to whitespace, per the
// round-trip invariant in spec.md §8.
func splitParagraphsWithOffsets(text string, preserveParagraphs bool) []paragraphSpan {
	if !preserveParagraphs {
		return []paragraphSpan{{content: text, start: 0}}
	}

	const sep = "\n\n"
	var spans []paragraphSpan
	cursor := 0
	for {
		idx := strings.Index(text[cursor:], sep)
		var chunk string
		var chunkStart int
		if idx < 0 {
			chunk = text[cursor:]
			chunkStart = cursor
			cursor = len(text)
		} else {
			chunk = text[cursor : cursor+idx]
			chunkStart = cursor
			cursor += idx + len(sep)
		}

		if strings.TrimSpace(chunk) != "" {
			spans = append(spans, paragraphSpan{content: chunk, start: chunkStart})
		}

		if idx < 0 {
			break
		}
	}

	if len(spans) == 0 {
		return []paragraphSpan{{content: text, start: 0}}
	}
	return spans
}

// splitSentences breaks text at sentence-terminator positions, keeping the
// terminator attached to the preceding sentence.
func splitSentences(text string, terminators []rune) []string {
	if text == "" {
		return nil
	}

	isTerminator := func(r rune) bool {
		for _, t := range terminators {
			if r == t {
				return true
			}
		}
		return false
	}

	var sentences []string
	var buf strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		buf.WriteRune(r)
		if isTerminator(r) {
			// absorb any immediately-following closing quote/paren/space
			j := i + 1
			for j < len(runes) && (runes[j] == '"' || runes[j] == '\'' || runes[j] == ')' || runes[j] == ' ') {
				if runes[j] != ' ' {
					buf.WriteRune(runes[j])
				}
				j++
				if runes[j-1] == ' ' {
					break
				}
			}
			sentences = append(sentences, buf.String())
			buf.Reset()
		}
	}
	if buf.Len() > 0 {
		sentences = append(sentences, buf.String())
	}
	return sentences
}

// findTerminatorInRange returns the byte offset just past the last
// terminator found within the rune range [lo, hi) of text, or -1 if none.
func findTerminatorInRange(text string, lo, hi int, terminators []rune) int {
	runes := []rune(text)
	if hi > len(runes) {
		hi = len(runes)
	}
	if lo < 0 {
		lo = 0
	}

	best := -1
	for i := lo; i < hi; i++ {
		for _, t := range terminators {
			if runes[i] == t {
				best = i + 1
			}
		}
	}
	if best == -1 {
		return -1
	}
	return len(string(runes[:best]))
}

// byteOffsetForRuneCount returns the byte offset corresponding to the first
// n runes of s (or len(s) if s has fewer than n runes).
func byteOffsetForRuneCount(s string, n int) int {
	if n <= 0 {
		return 0
	}
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

// clampRuneBoundary ensures byte offset n in s does not split a multi-byte
// rune; n is assumed to be a rune-count-derived value already, but this
// guards against drift when converting between rune and byte offsets.
func clampRuneBoundary(s string, n int) int {
	if n <= 0 {
		return 0
	}
	if n >= len(s) {
		return len(s)
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
