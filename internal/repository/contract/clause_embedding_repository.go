package contract

import (
	"context"

	"ai-docreview-be/internal/entity"

	"github.com/google/uuid"
)

// ClauseEmbeddingRepository is the retrieval side-store for chat. It is
// optional: when no database is configured, chat degrades to keyword
// retrieval without affecting pipeline correctness.
type ClauseEmbeddingRepository interface {
	// ReplaceForSession removes any existing embeddings for the session
	// and bulk-inserts the new set, avoiding duplicates on re-index.
	ReplaceForSession(ctx context.Context, sessionId uuid.UUID, embeddings []*entity.ClauseEmbedding) error

	// TopClauseIds returns the ids of the clauses nearest to the query
	// vector for one session, by cosine distance.
	TopClauseIds(ctx context.Context, sessionId uuid.UUID, query []float32, topK int) ([]string, error)

	// DeleteBySessionId cascades session deletion into the side-store.
	DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error
}
