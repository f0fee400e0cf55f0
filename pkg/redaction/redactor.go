package redaction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Redactor replaces personally identifiable information with stable
// placeholders before document text is sent to the LLM, and keeps the
// mapping so placeholders can be restored in human-facing output.
type Redactor struct {
	patterns []pattern
}

type pattern struct {
	category string
	re       *regexp.Regexp
}

type match struct {
	category string
	start    int
	end      int
}

// Pattern order is deterministic so placeholder numbering is stable for
// identical input.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []pattern{
			// SSN requires separators between parts so arbitrary 9-digit
			// sequences (account numbers) are not matched.
			{"SSN", regexp.MustCompile(`\b(?:0[1-9]\d|[1-5]\d\d|6[0-57-9]\d|[78]\d\d)[- ]\d{2}[- ]\d{4}\b`)},
			{"Email", regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
			{"Phone", regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)},
			{"CreditCard", regexp.MustCompile(`\b(?:4\d{12}(?:\d{3})?|5[1-5]\d{14}|6(?:011|5\d\d)\d{12}|3[47]\d{13}|3(?:0[0-5]|[68]\d)\d{11}|(?:2131|1800|35\d{3})\d{11})\b`)},
			{"DOB", regexp.MustCompile(`(?i)\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|Jul(?:y)?|Aug(?:ust)?|Sep(?:tember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\s+\d{1,2}(?:st|nd|rd|th)?,\s+(?:19|20)\d{2}\b`)},
		},
	}
}

// Redact scans text and replaces detected PII with placeholders of the
// form [REDACTED-<Category>-<n>]. Safe to call with empty input. Returns
// the redacted text, the placeholder-to-original map, and the distinct
// categories found.
func (r *Redactor) Redact(text string) (string, map[string]string, []string) {
	if text == "" {
		return text, map[string]string{}, nil
	}

	var matches []match
	for _, p := range r.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			matches = append(matches, match{category: p.category, start: loc[0], end: loc[1]})
		}
	}
	if len(matches) == 0 {
		return text, map[string]string{}, nil
	}

	// Sort by start and drop overlaps, keeping the earliest match.
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })
	filtered := matches[:0]
	lastEnd := 0
	for _, m := range matches {
		if m.start >= lastEnd {
			filtered = append(filtered, m)
			lastEnd = m.end
		}
	}

	piiMap := make(map[string]string, len(filtered))
	counters := make(map[string]int)
	categorySet := make(map[string]struct{})

	var b strings.Builder
	prev := 0
	for _, m := range filtered {
		counters[m.category]++
		placeholder := fmt.Sprintf("[REDACTED-%s-%d]", m.category, counters[m.category])
		piiMap[placeholder] = text[m.start:m.end]
		categorySet[m.category] = struct{}{}

		b.WriteString(text[prev:m.start])
		b.WriteString(placeholder)
		prev = m.end
	}
	b.WriteString(text[prev:])

	categories := make([]string, 0, len(categorySet))
	for c := range categorySet {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	return b.String(), piiMap, categories
}

// Restore substitutes original values back for their placeholders.
// Used on human-facing result fields only, never on text sent upstream.
func Restore(text string, piiMap map[string]string) string {
	if text == "" || len(piiMap) == 0 {
		return text
	}
	for placeholder, original := range piiMap {
		text = strings.ReplaceAll(text, placeholder, original)
	}
	return text
}
