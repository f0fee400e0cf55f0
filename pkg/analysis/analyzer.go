package analysis

import (
	"context"

	"ai-docreview-be/internal/entity"
)

// Analyzer classifies the clauses of extracted document text.
// Implementations surface a rate-limit signal on 429-equivalent provider
// responses so the call scheduler can back off and retry.
type Analyzer interface {
	Analyze(ctx context.Context, documentText, documentName string) (*entity.AnalysisResult, error)
}
