package entity

type ClauseCategory string

const (
	CategoryStandard   ClauseCategory = "standard"
	CategoryUnusual    ClauseCategory = "unusual"
	CategoryRisky      ClauseCategory = "risky"
	CategoryNegotiable ClauseCategory = "negotiable"
)

type Clause struct {
	ClauseId          string         `json:"clause_id"`
	Text              string         `json:"text"`
	PlainLanguage     string         `json:"plain_language"`
	Category          ClauseCategory `json:"category"`
	Severity          string         `json:"severity"`
	TypicalComparison string         `json:"typical_comparison,omitempty"`
	Suggestion        string         `json:"suggestion,omitempty"`
	PageNumber        int            `json:"page_number"`
	Position          BoundingBox    `json:"position"`
}

type AnalysisResult struct {
	DocumentName   string         `json:"document_name"`
	DocumentType   string         `json:"document_type"`
	TotalClauses   int            `json:"total_clauses"`
	FlaggedClauses int            `json:"flagged_clauses"`
	Clauses        []Clause       `json:"clauses"`
	Summary        string         `json:"summary"`
	TopConcerns    []string       `json:"top_concerns"`
	CategoryCounts map[string]int `json:"category_counts"`
}
