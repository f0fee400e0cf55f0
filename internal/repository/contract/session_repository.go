package contract

import (
	"context"
	"time"

	"ai-docreview-be/internal/entity"

	"github.com/google/uuid"
)

// SessionRepository is the storage contract for analysis sessions. The
// in-memory, Postgres and Redis backends are interchangeable behind it;
// the choice must not change observable semantics.
//
// Absence is modeled as (nil, nil): a missing OR expired record reads as
// not found. Every method is individually atomic, so a concurrent reader
// never observes a session with a newly-set status but stale progress.
type SessionRepository interface {
	// Create allocates an id, stamps expires_at = now + ttl and inserts
	// the record, returning the full session.
	Create(ctx context.Context, documentName, origin string, ttl time.Duration) (*entity.AnalysisSession, error)

	// Get returns the session, refreshing updated_at without touching
	// expires_at (TTL is absolute from creation, not sliding).
	Get(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error)

	// Update merges only the provided fields and returns the updated
	// session, or (nil, nil) if the session is missing or expired.
	Update(ctx context.Context, id uuid.UUID, patch entity.SessionUpdate) (*entity.AnalysisSession, error)

	// Delete removes the record and returns it so the caller can cascade
	// resource cleanup, or (nil, nil) if nothing existed.
	Delete(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error)

	// ListActive and CountActive exclude expired records.
	ListActive(ctx context.Context) ([]*entity.AnalysisSession, error)
	CountActive(ctx context.Context) (int, error)

	// DeleteExpired removes every record with expires_at < now and
	// returns the reclaimed sessions for cascading cleanup.
	DeleteExpired(ctx context.Context, now time.Time) ([]*entity.AnalysisSession, error)
}
