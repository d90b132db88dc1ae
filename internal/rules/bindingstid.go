package rules

import (
	"fmt"
	"regexp"
	"strings"

	"call-compliance-go/internal/types"
)

// Binding-period (bindingstid) disclosure check. Norwegian telecom law
// requires the contract duration to be stated clearly, not just mentioned.

var bindingstidPatterns = []*regexp.Regexp{
	regexp.MustCompile(`bindingstid.*?(\d+)\s*(måned|år)`),
	regexp.MustCompile(`binding.*?(\d+)\s*(month|year)`),
	regexp.MustCompile(`kontrakt.*?(\d+)\s*(måned|år)`),
	regexp.MustCompile(`avtale.*?(\d+)\s*(måned|år)`),
	regexp.MustCompile(`forpliktelse.*?(\d+)\s*(måned|år)`),
	regexp.MustCompile(`(\d+)\s*(års?|måneders?)\s*binding`),
	regexp.MustCompile(`(\d+)\s*(års?|måneders?)\s*kontrakt`),
}

var clearDisclosurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`du blir bundet.*?(\d+)`),
	regexp.MustCompile(`kontrakten gjelder.*?(\d+)`),
	regexp.MustCompile(`du forplikter deg.*?(\d+)`),
	regexp.MustCompile(`bindingstiden er.*?(\d+)`),
}

// CheckBindingstid scans the transcript for binding-period disclosure.
func CheckBindingstid(text string) types.RuleResult {
	res := types.RuleResult{
		Violations: []types.Violation{},
		Details:    map[string]any{},
	}

	lower := strings.ToLower(text)

	for _, re := range bindingstidPatterns {
		for _, idx := range re.FindAllStringSubmatchIndex(lower, -1) {
			res.Mentioned = true
			res.Details[fmt.Sprintf("mention_%d", len(res.Details))] = map[string]any{
				"duration": lower[idx[2]:idx[3]],
				"unit":     lower[idx[4]:idx[5]],
				"text":     lower[idx[0]:idx[1]],
				"position": idx[0],
			}
		}
	}

	if !res.Mentioned {
		res.Violations = append(res.Violations, types.Violation{
			Type:        "bindingstid_missing",
			Severity:    types.SeverityHigh,
			Description: "No mention of binding period found in conversation",
			Rule:        "Binding period must be clearly disclosed in telecom sales",
		})
		return res
	}

	clear := false
	for _, re := range clearDisclosurePatterns {
		if re.MatchString(lower) {
			clear = true
			break
		}
	}
	if !clear {
		res.Violations = append(res.Violations, types.Violation{
			Type:        "bindingstid_unclear",
			Severity:    types.SeverityHigh,
			Description: "Bindingstid mentioned but not clearly disclosed",
			Rule:        "Norwegian telecom regulations require clear disclosure of contract duration",
		})
	}

	return res
}
