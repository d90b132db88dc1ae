package pii

import (
	"regexp"
	"sort"
	"strings"
)

// Supported categories.
const (
	CategoryPhone       = "phone_numbers"
	CategoryEmail       = "email_addresses"
	CategoryNorwegianID = "norwegian_ids"
	CategoryCreditCard  = "credit_cards"
	CategoryBankAccount = "bank_accounts"
	CategoryAddress     = "addresses"
	CategoryName        = "names"
)

// brandTerms are known non-personal terms that disqualify a name match.
var brandTerms = []string{"telenor", "telia", "ice", "fiber", "bredbånd"}

var nonDigit = regexp.MustCompile(`[^0-9]`)

func digitsOnly(s string) string { return nonDigit.ReplaceAllString(s, "") }

// DetectionSet is the result of one detection run over a text.
type DetectionSet struct {
	Detections map[string][]Detection `json:"detections"`
	TotalCount int                    `json:"total_count"`
	TypesFound []string               `json:"types_found"`
}

// Flatten returns every detection across categories in one slice.
func (s DetectionSet) Flatten() []Detection {
	var all []Detection
	for _, list := range s.Detections {
		all = append(all, list...)
	}
	return all
}

// Detector locates personal data in Norwegian call transcripts.
type Detector struct {
	matcher *Matcher
}

func NewDetector() *Detector {
	return &Detector{matcher: NewMatcher(patternClasses())}
}

// Detect scans the text for every supported category. Never fails: text
// with nothing sensitive in it yields an empty set.
func (d *Detector) Detect(text string) DetectionSet {
	detections := d.matcher.Scan(text)

	set := DetectionSet{Detections: detections}
	for category, list := range detections {
		set.TotalCount += len(list)
		set.TypesFound = append(set.TypesFound, category)
	}
	sort.Strings(set.TypesFound)
	return set
}

func patternClasses() []PatternClass {
	return []PatternClass{
		{
			Category: CategoryPhone,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(\+47\s?)?[4-9]\d{7}\b`), // mobile
				regexp.MustCompile(`\b(\+47\s?)?[2-3]\d{7}\b`), // landline
				regexp.MustCompile(`\b\d{8}\b`),
			},
			Confidence: 0.9,
		},
		{
			Category: CategoryEmail,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			},
			Confidence: 0.95,
		},
		{
			Category: CategoryNorwegianID,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b\d{6}[\s-]?\d{5}\b`),
			},
			Confidence: 0.98,
			Validate: func(match string) bool {
				return fodselsnummerValid(digitsOnly(match))
			},
		},
		{
			Category: CategoryCreditCard,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(?:\d{4}[\s-]?){3}\d{4}\b`),
			},
			Confidence: 0.85,
			Validate: func(match string) bool {
				return luhnValid(digitsOnly(match))
			},
		},
		{
			Category: CategoryBankAccount,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b\d{4}[\s.]?\d{2}[\s.]?\d{5}\b`),
			},
			Confidence: 0.8,
		},
		{
			Category: CategoryAddress,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b[A-ZÆØÅ][a-zæøå]+(?:s?gate|svei|plass|vegen|gata)\s+\d+[A-Z]?\b`),
				regexp.MustCompile(`\b\d{4}\s+[A-ZÆØÅ][a-zæøå]+\b`), // postal code + city
			},
			Confidence: 0.7,
		},
		{
			Category: CategoryName,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b[A-ZÆØÅ][a-zæøå]{2,}\s+[A-ZÆØÅ][a-zæøå]{2,}\b`),
			},
			Confidence: 0.6,
			Exclude: func(match string) bool {
				lower := strings.ToLower(match)
				for _, term := range brandTerms {
					if strings.Contains(lower, term) {
						return true
					}
				}
				return false
			},
		},
	}
}
