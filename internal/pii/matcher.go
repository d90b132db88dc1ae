package pii

import (
	"regexp"
	"sort"
)

// Detection is one located span of sensitive text. Start/End are byte
// offsets into the scanned string, half-open.
type Detection struct {
	Category   string  `json:"category"`
	Text       string  `json:"text"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// PatternClass is one labeled family of patterns with a fixed confidence.
// Validate, when set, must accept the raw match for it to be kept (checksum
// checks). Exclude, when set, drops matches it reports true for (known
// false positives).
type PatternClass struct {
	Category   string
	Patterns   []*regexp.Regexp
	Confidence float64
	Validate   func(match string) bool
	Exclude    func(match string) bool
}

// Matcher scans text for a set of pattern classes.
type Matcher struct {
	classes []PatternClass
}

func NewMatcher(classes []PatternClass) *Matcher {
	return &Matcher{classes: classes}
}

// Scan runs every class over the text and returns detections grouped by
// category. Within one category the returned spans never overlap: matches
// are sorted by start (longer first on ties) and kept greedily.
func (m *Matcher) Scan(text string) map[string][]Detection {
	out := make(map[string][]Detection, len(m.classes))
	for _, class := range m.classes {
		if found := scanClass(text, class); len(found) > 0 {
			out[class.Category] = found
		}
	}
	return out
}

func scanClass(text string, class PatternClass) []Detection {
	var raw []Detection
	for _, re := range class.Patterns {
		for _, idx := range re.FindAllStringIndex(text, -1) {
			match := text[idx[0]:idx[1]]
			if class.Validate != nil && !class.Validate(match) {
				continue
			}
			if class.Exclude != nil && class.Exclude(match) {
				continue
			}
			raw = append(raw, Detection{
				Category:   class.Category,
				Text:       match,
				Start:      idx[0],
				End:        idx[1],
				Confidence: class.Confidence,
			})
		}
	}
	return dropOverlaps(raw)
}

// dropOverlaps keeps the earliest-starting (longest on ties) span of every
// overlapping group. Multiple patterns in one class frequently rediscover
// the same digits.
func dropOverlaps(dets []Detection) []Detection {
	if len(dets) < 2 {
		return dets
	}
	sort.Slice(dets, func(i, j int) bool {
		if dets[i].Start != dets[j].Start {
			return dets[i].Start < dets[j].Start
		}
		return dets[i].End > dets[j].End
	})
	kept := dets[:1]
	for _, d := range dets[1:] {
		if d.Start < kept[len(kept)-1].End {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}
