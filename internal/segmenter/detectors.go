package segmenter

import (
	"regexp"
	"strings"

	"github.com/batchsumm/orchestrator/internal/model"
)

// detector is a stateless line-prefix heuristic for one structural kind,
// mirroring the "one strategy per kind, tried via a small registry" shape
// of the teacher's per-language parsers (internal/parser/{go,python,rust,
// typescript,nodejs}.go), generalized from "benchmark output dialect" to
// "paragraph structural kind".
type detector struct {
	segType model.SegmentType
	match   func(content string) bool
}

var listItemRe = regexp.MustCompile(`(?m)^\s*([-*+]|\d+[.)])\s+`)
var tableRowRe = regexp.MustCompile(`(?m)^\s*\|.*\|\s*$`)

func defaultDetectors() []detector {
	return []detector{
		{
			segType: model.SegmentCode,
			match: func(content string) bool {
				return strings.Contains(content, "```")
			},
		},
		{
			segType: model.SegmentTable,
			match: func(content string) bool {
				lines := strings.Split(strings.TrimSpace(content), "\n")
				matches := 0
				for _, l := range lines {
					if tableRowRe.MatchString(l) {
						matches++
					}
				}
				return matches >= 2
			},
		},
		{
			segType: model.SegmentList,
			match: func(content string) bool {
				lines := strings.Split(strings.TrimSpace(content), "\n")
				matches := 0
				for _, l := range lines {
					if listItemRe.MatchString(l) {
						matches++
					}
				}
				return matches >= 2
			},
		},
		{
			segType: model.SegmentQuote,
			match: func(content string) bool {
				lines := strings.Split(strings.TrimSpace(content), "\n")
				if len(lines) == 0 {
					return false
				}
				for _, l := range lines {
					trimmed := strings.TrimSpace(l)
					if trimmed == "" {
						continue
					}
					if !strings.HasPrefix(trimmed, ">") {
						return false
					}
				}
				return true
			},
		},
	}
}

// detectStructure tries detectors in order of specificity (code fence >
// table > list > quote), returning the first match.
func detectStructure(detectors []detector, content string) (model.SegmentType, bool) {
	for _, d := range detectors {
		if d.match(content) {
			return d.segType, true
		}
	}
	return model.SegmentParagraph, false
}
