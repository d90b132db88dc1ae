package rules

import (
	"fmt"
	"strings"
	"time"

	"call-compliance-go/internal/types"
)

// Engine evaluates Norwegian telecom sales compliance rules over a
// transcript. Pure: no I/O, deterministic for a given input.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Analyze runs the three compliance checks and aggregates them into a
// CallAnalysis. Violations keep a stable order: binding period, price,
// pressure.
func (e *Engine) Analyze(text string, segments []types.Segment) types.CallAnalysis {
	bindingstid := CheckBindingstid(text)
	pris := CheckPrice(text)
	press := CheckPressure(text, segments)

	violations := []types.Violation{}
	violations = append(violations, bindingstid.Violations...)
	violations = append(violations, pris.Violations...)
	violations = append(violations, press.Violations...)

	overall := "good"
	if len(violations) > 0 {
		overall = "bad"
	}

	return types.CallAnalysis{
		OverallResult:      overall,
		ConfidenceScore:    confidenceScore(bindingstid, pris, press, violations),
		Violations:         violations,
		BindingstidMention: bindingstid.Mentioned,
		BindingstidDetails: bindingstid.Details,
		PrisMention:        pris.Mentioned,
		PrisDetails:        pris.Details,
		PressMention:       press.Mentioned,
		PressDetails:       press.Details,
		Summary:            summarize(bindingstid, pris, violations),
		KeyPoints:          keyPoints(text, violations),
		CreatedAt:          time.Now().UTC(),
	}
}

// confidenceScore starts at 0.7 and earns 0.1 per check that found its
// subject matter, plus 0.1 for a clean call. Clamped to 1.0.
func confidenceScore(bindingstid, pris, press types.RuleResult, violations []types.Violation) float64 {
	score := 0.7
	if bindingstid.Mentioned {
		score += 0.1
	}
	if pris.Mentioned {
		score += 0.1
	}
	if press.Mentioned {
		score += 0.1
	}
	if len(violations) == 0 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func summarize(bindingstid, pris types.RuleResult, violations []types.Violation) string {
	if len(violations) == 0 {
		return "Samtalen følger alle nødvendige retningslinjer for telecom-salg. " +
			"Bindingstid og priser er tydelig kommunisert, og det er ikke brukt utilbørlige salgsteknikker."
	}

	var parts []string

	if !bindingstid.Mentioned {
		parts = append(parts, "Bindingstid ikke nevnt")
	} else if hasViolationType(violations, "bindingstid_unclear") {
		parts = append(parts, "Bindingstid nevnt men ikke klart kommunisert")
	}

	if !pris.Mentioned {
		parts = append(parts, "Prisinformasjon mangler")
	} else if hasViolationType(violations, "price_incomplete") {
		parts = append(parts, "Ufullstendig prisinformasjon")
	}

	for _, v := range violations {
		if strings.Contains(v.Type, "pressure") || strings.Contains(v.Type, "urgency") ||
			strings.Contains(v.Type, "repetition") || strings.Contains(v.Type, "dismissive") ||
			strings.Contains(v.Type, "interruption") {
			parts = append(parts, "Utilbørlige salgsteknikker oppdaget")
			break
		}
	}

	if len(parts) == 0 {
		return "Mindre problemer funnet, men hovedkravene er oppfylt."
	}
	return fmt.Sprintf("Regelbrudd funnet: %s. Samtalen følger ikke retningslinjene for ansvarlig telecom-salg.",
		strings.Join(parts, ", "))
}

// keyPoints builds up to five short observations about the call.
func keyPoints(text string, violations []types.Violation) []string {
	var points []string
	lower := strings.ToLower(text)

	if strings.Contains(lower, "velkommen") || strings.Contains(lower, "takk") {
		points = append(points, "Høflig tone i samtalen")
	}
	if strings.Contains(lower, "spørsmål") {
		points = append(points, "Kunden oppfordret til å stille spørsmål")
	}
	if strings.Contains(lower, "betingelser") || strings.Contains(lower, "vilkår") {
		points = append(points, "Vilkår og betingelser diskutert")
	}

	high := countBySeverity(violations, types.SeverityHigh)
	if high > 0 {
		points = append(points, fmt.Sprintf("%d alvorlige regelbrudd funnet", high))
	}
	medium := countBySeverity(violations, types.SeverityMedium)
	if medium > 0 {
		points = append(points, fmt.Sprintf("%d mindre regelbrudd funnet", medium))
	}
	if len(violations) == 0 {
		points = append(points, "Ingen regelbrudd funnet")
	}

	if len(points) > 5 {
		points = points[:5]
	}
	return points
}

func hasViolationType(violations []types.Violation, vtype string) bool {
	for _, v := range violations {
		if v.Type == vtype {
			return true
		}
	}
	return false
}

func countBySeverity(violations []types.Violation, severity string) int {
	n := 0
	for _, v := range violations {
		if v.Severity == severity {
			n++
		}
	}
	return n
}
