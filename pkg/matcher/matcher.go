package matcher

import (
	"strings"

	"ai-docreview-be/internal/entity"
)

// Matcher reconciles clause text produced by the analysis model against
// OCR word-position data. The model's clause text is semantically
// equivalent but rarely byte-identical to the extracted text, so we search
// each page for the best-matching contiguous window of words and take the
// union of the matched words' boxes.
type Matcher struct {
	minScore      float64
	pageThreshold float64
	shortCircuit  float64
	windowFactor  int
}

func NewMatcher() *Matcher {
	return &Matcher{
		minScore:      0.5,
		pageThreshold: 0.4,
		shortCircuit:  0.9,
		windowFactor:  2,
	}
}

// Match is the recovered placement for one clause.
type Match struct {
	PageNumber int
	Position   entity.BoundingBox
	Score      float64
	Found      bool
}

// defaultMatch places an unlocatable clause at a nominal box on page one
// rather than leaving the field unset.
func defaultMatch() Match {
	return Match{
		PageNumber: 1,
		Position:   entity.BoundingBox{X1: 72, Y1: 72, X2: 540, Y2: 120},
	}
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"are": {}, "was": {}, "were": {}, "will": {}, "shall": {}, "may": {},
	"not": {}, "any": {}, "all": {}, "its": {}, "his": {}, "her": {},
	"their": {}, "them": {}, "from": {}, "have": {}, "has": {}, "had": {},
	"been": {}, "being": {}, "such": {}, "upon": {}, "into": {}, "under": {},
	"other": {}, "than": {}, "then": {}, "when": {}, "which": {}, "while": {},
	"where": {}, "who": {}, "whom": {}, "whose": {}, "these": {}, "those": {},
	"there": {}, "here": {}, "each": {}, "per": {}, "but": {}, "nor": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "must": {}, "does": {},
	"did": {}, "about": {}, "also": {}, "only": {}, "more": {}, "most": {},
	"some": {}, "both": {}, "either": {}, "neither": {},
}

// normalizeWord lowercases and strips everything except letters and digits.
func normalizeWord(w string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(w) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// scoringWords filters the clause down to words worth matching on.
// Function words and words of two characters or fewer produce false
// positives at document scale.
func scoringWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Locate finds the best window of OCR words for the clause text across
// all pages. Pages missing too many scoring words are rejected cheaply
// before any window is slid. Returns a first-page fallback when no page
// clears the acceptance threshold or the clause has fewer than two
// scoring words.
func (m *Matcher) Locate(clauseText string, pages []entity.Page) Match {
	clauseWords := make([]string, 0)
	for _, raw := range strings.Fields(clauseText) {
		if n := normalizeWord(raw); n != "" {
			clauseWords = append(clauseWords, n)
		}
	}

	scoring := scoringWords(clauseWords)
	if len(scoring) < 2 {
		return defaultMatch()
	}

	scoringSet := make(map[string]struct{}, len(scoring))
	for _, w := range scoring {
		scoringSet[w] = struct{}{}
	}

	windowSize := m.windowFactor * len(clauseWords)
	best := Match{}

	for _, page := range pages {
		normalized := make([]string, len(page.Words))
		pageSet := make(map[string]struct{}, len(page.Words))
		for i, w := range page.Words {
			n := normalizeWord(w.Text)
			normalized[i] = n
			if n != "" {
				pageSet[n] = struct{}{}
			}
		}

		// Cheap prefilter: skip pages where under 40% of the scoring
		// words appear anywhere.
		present := 0
		for w := range scoringSet {
			if _, ok := pageSet[w]; ok {
				present++
			}
		}
		if float64(present)/float64(len(scoring)) < m.pageThreshold {
			continue
		}

		for start := 0; start < len(page.Words); start++ {
			end := start + windowSize
			if end > len(page.Words) {
				end = len(page.Words)
			}

			found := make(map[string]struct{})
			for i := start; i < end; i++ {
				if _, ok := scoringSet[normalized[i]]; ok {
					found[normalized[i]] = struct{}{}
				}
			}

			score := float64(len(found)) / float64(len(scoring))
			if score <= best.Score {
				continue
			}

			// Box is the union over exactly the matched scoring words,
			// not the whole window, to keep it tight.
			var box entity.BoundingBox
			for i := start; i < end; i++ {
				if _, ok := found[normalized[i]]; ok {
					box = box.Union(page.Words[i].BBox)
				}
			}

			best = Match{
				PageNumber: page.PageNumber,
				Position:   box,
				Score:      score,
				Found:      true,
			}

			if best.Score >= m.shortCircuit {
				return best
			}
		}
	}

	if !best.Found || best.Score < m.minScore {
		return defaultMatch()
	}
	return best
}

// AttachPositions runs Locate over every clause in the result, replacing
// the model's estimated placements with reconciled ones.
func (m *Matcher) AttachPositions(result *entity.AnalysisResult, pages []entity.Page) {
	if result == nil {
		return
	}
	for i := range result.Clauses {
		match := m.Locate(result.Clauses[i].Text, pages)
		result.Clauses[i].PageNumber = match.PageNumber
		result.Clauses[i].Position = match.Position
	}
}
