package memory

import (
	"context"
	"sync"
	"time"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// reclaimGrace keeps a record physically present past its logical expiry
// so the sweeper can still cascade cleanup (task cancellation, temp
// files). The janitor only wipes records the sweeper somehow missed.
const reclaimGrace = 30 * time.Minute

// SessionRepository is the process-local backend: a go-cache record map
// with one mutex serializing read-modify-write cycles. Values stored in
// the cache are never mutated in place; every write replaces a clone, so
// readers always see a complete snapshot.
type SessionRepository struct {
	mu    sync.Mutex
	cache *cache.Cache
	ttl   time.Duration
}

func NewSessionRepository(ttl time.Duration) contract.SessionRepository {
	c := cache.New(ttl+reclaimGrace, reclaimGrace)
	return &SessionRepository{
		cache: c,
		ttl:   ttl,
	}
}

func (r *SessionRepository) Create(ctx context.Context, documentName, origin string, ttl time.Duration) (*entity.AnalysisSession, error) {
	if ttl <= 0 {
		ttl = r.ttl
	}
	now := time.Now()
	session := &entity.AnalysisSession{
		Id:             uuid.New(),
		DocumentName:   documentName,
		Status:         entity.SessionStatusUploading,
		Progress:       0,
		Message:        "Document received",
		MessageHistory: []string{"Document received"},
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		Origin:         origin,
	}

	r.mu.Lock()
	r.cache.Set(session.Id.String(), session, ttl+reclaimGrace)
	r.mu.Unlock()

	return session.Clone(), nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.lookup(id)
	if !ok {
		return nil, nil
	}

	// Touch refreshes updated_at only; expiry stays absolute.
	touched := session.Clone()
	touched.UpdatedAt = time.Now()
	r.replace(touched)

	return touched.Clone(), nil
}

func (r *SessionRepository) Update(ctx context.Context, id uuid.UUID, patch entity.SessionUpdate) (*entity.AnalysisSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.lookup(id)
	if !ok {
		return nil, nil
	}

	updated := session.Clone()
	updated.Apply(patch, time.Now())
	r.replace(updated)

	return updated.Clone(), nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(id.String())
	if !found {
		return nil, nil
	}
	r.cache.Delete(id.String())
	return x.(*entity.AnalysisSession).Clone(), nil
}

func (r *SessionRepository) ListActive(ctx context.Context) ([]*entity.AnalysisSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	sessions := make([]*entity.AnalysisSession, 0)
	for _, item := range r.cache.Items() {
		session := item.Object.(*entity.AnalysisSession)
		if !session.IsExpired(now) {
			sessions = append(sessions, session.Clone())
		}
	}
	return sessions, nil
}

func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	count := 0
	for _, item := range r.cache.Items() {
		if !item.Object.(*entity.AnalysisSession).IsExpired(now) {
			count++
		}
	}
	return count, nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) ([]*entity.AnalysisSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reclaimed := make([]*entity.AnalysisSession, 0)
	for key, item := range r.cache.Items() {
		session := item.Object.(*entity.AnalysisSession)
		if session.IsExpired(now) {
			reclaimed = append(reclaimed, session.Clone())
			r.cache.Delete(key)
		}
	}
	return reclaimed, nil
}

// lookup applies the read-time expiry filter. Caller must hold the mutex.
func (r *SessionRepository) lookup(id uuid.UUID) (*entity.AnalysisSession, bool) {
	x, found := r.cache.Get(id.String())
	if !found {
		return nil, false
	}
	session := x.(*entity.AnalysisSession)
	if session.IsExpired(time.Now()) {
		return nil, false
	}
	return session, true
}

// replace stores a new snapshot preserving the record's physical TTL
// relative to its logical expiry. Caller must hold the mutex.
func (r *SessionRepository) replace(session *entity.AnalysisSession) {
	remaining := time.Until(session.ExpiresAt) + reclaimGrace
	r.cache.Set(session.Id.String(), session, remaining)
}
