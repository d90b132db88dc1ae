package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"call-compliance-go/internal/types"
)

// Sales-pressure check. Counts urgency, repetition and dismissive phrasing,
// plus interruptions derived from the speaker segments.

type pressureTactic struct {
	name      string
	patterns  []*regexp.Regexp
	threshold int
	vtype     string
	severity  string
	describe  func(count int) string
	rule      string
}

var pressureTactics = []pressureTactic{
	{
		name: "urgency",
		patterns: compileAll(
			`må bestemme deg nå`,
			`tilbudet utgår`,
			`kun i dag`,
			`begrenset tid`,
			`siste sjanse`,
			`bare nå`,
			`må handle raskt`,
		),
		threshold: 2,
		vtype:     "excessive_urgency",
		severity:  types.SeverityHigh,
		describe: func(n int) string {
			return fmt.Sprintf("Excessive urgency tactics used (%d instances)", n)
		},
		rule: "Excessive pressure tactics are prohibited in telecom sales",
	},
	{
		name: "repetition",
		patterns: compileAll(
			`som jeg sa`,
			`som nevnt`,
			`igjen`,
			`fortsatt`,
		),
		threshold: 5,
		vtype:     "excessive_repetition",
		severity:  types.SeverityMedium,
		describe: func(n int) string {
			return fmt.Sprintf("Excessive repetition detected (%d instances)", n)
		},
		rule: "Repetitive pressure tactics may violate consumer protection",
	},
	{
		name: "dismissal",
		patterns: compileAll(
			`ikke tenk så mye`,
			`bare si ja`,
			`det er enkelt`,
			`ikke kompliser`,
		),
		threshold: 1,
		vtype:     "dismissive_language",
		severity:  types.SeverityHigh,
		describe: func(n int) string {
			return fmt.Sprintf("Dismissive language used (%d instances)", n)
		},
		rule: "Dismissive sales tactics are inappropriate",
	},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// CheckPressure scans the transcript for pressure tactics. Segments are the
// interleaved speaker segments of the whole call; adjacent overlap counts as
// an interruption.
func CheckPressure(text string, segments []types.Segment) types.RuleResult {
	res := types.RuleResult{
		Violations: []types.Violation{},
		Details:    map[string]any{},
	}

	lower := strings.ToLower(text)

	for _, tactic := range pressureTactics {
		count := 0
		var examples []map[string]any
		for _, re := range tactic.patterns {
			for _, idx := range re.FindAllStringIndex(lower, -1) {
				res.Mentioned = true
				count++
				examples = append(examples, map[string]any{
					"text":     lower[idx[0]:idx[1]],
					"position": idx[0],
				})
			}
		}
		if len(examples) > 0 {
			res.Details[tactic.name+"_examples"] = examples
		}
		if count > tactic.threshold {
			res.Violations = append(res.Violations, types.Violation{
				Type:        tactic.vtype,
				Severity:    tactic.severity,
				Description: tactic.describe(count),
				Rule:        tactic.rule,
			})
		}
	}

	if interruptions := CountInterruptions(segments); interruptions > 3 {
		res.Details["interruption_count"] = interruptions
		res.Violations = append(res.Violations, types.Violation{
			Type:        "excessive_interruptions",
			Severity:    types.SeverityMedium,
			Description: fmt.Sprintf("Agent interrupted customer %d times", interruptions),
			Rule:        "Excessive interruptions may indicate pressure tactics",
		})
	}

	return res
}

// CountInterruptions counts adjacent segment pairs where the next segment
// starts before the current one ends. Segments are sorted by start time
// first so unordered diarizer output cannot inflate the count.
func CountInterruptions(segments []types.Segment) int {
	if len(segments) < 2 {
		return 0
	}
	ordered := make([]types.Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	interruptions := 0
	for i := 0; i < len(ordered)-1; i++ {
		if ordered[i+1].Start < ordered[i].End {
			interruptions++
		}
	}
	return interruptions
}
