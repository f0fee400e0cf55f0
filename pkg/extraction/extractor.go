package extraction

import (
	"context"

	"ai-docreview-be/internal/entity"
)

// Extractor produces full text and word-level layout data for a stored
// document. Implementations fail with an extraction error on corrupt or
// unsupported input.
type Extractor interface {
	Extract(ctx context.Context, documentPath string) (*entity.Extraction, error)
}
