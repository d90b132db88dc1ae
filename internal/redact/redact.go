package redact

import (
	"sort"

	"call-compliance-go/internal/pii"
	"call-compliance-go/internal/types"
)

// ConfidenceThreshold is the minimum detection confidence that gets masked.
const ConfidenceThreshold = 0.7

// masks are lexically distinct from every detector pattern so re-detecting
// on redacted output cannot re-trigger a masked category.
var masks = map[string]string{
	pii.CategoryPhone:       "[TELEFON]",
	pii.CategoryEmail:       "[E-POST]",
	pii.CategoryNorwegianID: "[PERSONNUMMER]",
	pii.CategoryAddress:     "[ADRESSE]",
	pii.CategoryName:        "[NAVN]",
	pii.CategoryCreditCard:  "[KORTNUMMER]",
	pii.CategoryBankAccount: "[KONTONUMMER]",
}

const genericMask = "[REDACTED]"

// Result of one redaction pass.
type Result struct {
	RedactedText    string   `json:"redacted_text"`
	RedactionsCount int      `json:"redactions_count"`
	RedactionTypes  []string `json:"redaction_types"`
}

// Apply masks every confidence-qualifying detection in text. Replacements
// run in descending start order so earlier ones cannot shift the offsets of
// detections still pending. Spans overlapping an already-masked span are
// skipped; the higher-confidence category wins when two categories claim
// the same digits. Text outside redacted spans is preserved byte-for-byte.
func Apply(text string, set pii.DetectionSet) Result {
	detections := set.Flatten()
	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Start != detections[j].Start {
			return detections[i].Start > detections[j].Start
		}
		return detections[i].Confidence > detections[j].Confidence
	})

	redacted := text
	count := 0
	applied := map[string]bool{}
	lastStart := len(text) + 1

	for _, d := range detections {
		if d.Confidence < ConfidenceThreshold {
			continue
		}
		if d.End > lastStart {
			continue
		}
		mask, ok := masks[d.Category]
		if !ok {
			mask = genericMask
		}
		redacted = redacted[:d.Start] + mask + redacted[d.End:]
		count++
		applied[d.Category] = true
		lastStart = d.Start
	}

	categories := make([]string, 0, len(applied))
	for category := range applied {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	return Result{
		RedactedText:    redacted,
		RedactionsCount: count,
		RedactionTypes:  categories,
	}
}

// Transcript redacts the full transcript text and each segment's text with
// a fresh detection pass per segment.
func Transcript(detector *pii.Detector, text string, segments []types.Segment) (Result, []types.Segment) {
	result := Apply(text, detector.Detect(text))

	redactedSegments := make([]types.Segment, len(segments))
	for i, seg := range segments {
		redactedSegments[i] = seg
		if seg.Text == "" {
			continue
		}
		segResult := Apply(seg.Text, detector.Detect(seg.Text))
		redactedSegments[i].Text = segResult.RedactedText
	}
	return result, redactedSegments
}
