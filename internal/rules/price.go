package rules

import (
	"fmt"
	"regexp"
	"strings"

	"call-compliance-go/internal/types"
)

// Price disclosure check. A compliant sales call states the monthly fee,
// any one-time setup fee, and the total cost.

var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`pris.*?(\d+)\s*kroner?`),
	regexp.MustCompile(`koster.*?(\d+)\s*kr`),
	regexp.MustCompile(`betaler.*?(\d+)\s*kroner?`),
	regexp.MustCompile(`månedlig.*?(\d+)\s*kr`),
	regexp.MustCompile(`(\d+)\s*kr.*?måneden`),
	regexp.MustCompile(`totalprisen.*?(\d+)`),
	regexp.MustCompile(`opprettelsesgebyr.*?(\d+)`),
	regexp.MustCompile(`fakturagebyr.*?(\d+)`),
}

// requiredDisclosures maps each mandatory price component to the phrase
// patterns that count as disclosing it. Order fixes the order of the
// missing-components list.
var requiredDisclosureOrder = []string{"monthly_fee", "setup_fee", "total_cost"}

var requiredDisclosures = map[string][]*regexp.Regexp{
	"monthly_fee": {
		regexp.MustCompile(`månedlig.*?(\d+)`),
		regexp.MustCompile(`per måned.*?(\d+)`),
		regexp.MustCompile(`(\d+).*?i måneden`),
	},
	"setup_fee": {
		regexp.MustCompile(`opprettelse.*?(\d+)`),
		regexp.MustCompile(`etablering.*?(\d+)`),
		regexp.MustCompile(`aktivering.*?(\d+)`),
	},
	"total_cost": {
		regexp.MustCompile(`total.*?(\d+)`),
		regexp.MustCompile(`tilsamen.*?(\d+)`),
		regexp.MustCompile(`samlet.*?(\d+)`),
	},
}

// CheckPrice scans the transcript for price disclosure completeness.
func CheckPrice(text string) types.RuleResult {
	res := types.RuleResult{
		Violations: []types.Violation{},
		Details:    map[string]any{},
	}

	lower := strings.ToLower(text)

	for _, re := range pricePatterns {
		for _, idx := range re.FindAllStringSubmatchIndex(lower, -1) {
			res.Mentioned = true
			res.Details[fmt.Sprintf("price_%d", len(res.Details))] = map[string]any{
				"amount":   lower[idx[2]:idx[3]],
				"text":     lower[idx[0]:idx[1]],
				"position": idx[0],
			}
		}
	}

	if !res.Mentioned {
		res.Violations = append(res.Violations, types.Violation{
			Type:        "price_missing",
			Severity:    types.SeverityHigh,
			Description: "No pricing information disclosed during call",
			Rule:        "Price must be clearly disclosed in telecom sales",
		})
		return res
	}

	var missing []string
	for _, name := range requiredDisclosureOrder {
		found := false
		for _, re := range requiredDisclosures[name] {
			if re.MatchString(lower) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		res.Violations = append(res.Violations, types.Violation{
			Type:              "price_incomplete",
			Severity:          types.SeverityMedium,
			Description:       fmt.Sprintf("Missing price disclosures: %s", strings.Join(missing, ", ")),
			Rule:              "All price components must be clearly disclosed",
			MissingComponents: missing,
		})
	}

	return res
}
