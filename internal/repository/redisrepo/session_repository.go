package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "docreview:session:"
	expiryIndexKey   = "docreview:sessions:expiry"

	// Values outlive their logical expiry so the sweeper can still
	// cascade cleanup before Redis reclaims them.
	reclaimGrace = 30 * time.Minute

	// Retries for WATCH conflicts under concurrent updates.
	maxTxRetries = 5
)

// SessionRepository is the Redis backend: sessions as JSON values with a
// sorted-set index on expires_at for the sweep. Merge updates run inside
// a WATCH/MULTI optimistic transaction so concurrent patches to the same
// id never interleave partial field writes.
type SessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionRepository(rdb *redis.Client, ttl time.Duration) contract.SessionRepository {
	return &SessionRepository{rdb: rdb, ttl: ttl}
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
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

	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.Id), data, ttl+reclaimGrace)
		pipe.ZAdd(ctx, expiryIndexKey, redis.Z{
			Score:  float64(session.ExpiresAt.Unix()),
			Member: session.Id.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error) {
	return r.mutate(ctx, id, func(session *entity.AnalysisSession) {
		session.UpdatedAt = time.Now()
	})
}

func (r *SessionRepository) Update(ctx context.Context, id uuid.UUID, patch entity.SessionUpdate) (*entity.AnalysisSession, error) {
	return r.mutate(ctx, id, func(session *entity.AnalysisSession) {
		session.Apply(patch, time.Now())
	})
}

// mutate runs a read-check-modify-write cycle under WATCH, retrying on
// conflict. Returns (nil, nil) for missing or expired records.
func (r *SessionRepository) mutate(ctx context.Context, id uuid.UUID, apply func(*entity.AnalysisSession)) (*entity.AnalysisSession, error) {
	key := sessionKey(id)
	var out *entity.AnalysisSession

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var session entity.AnalysisSession
		if err := json.Unmarshal(data, &session); err != nil {
			return err
		}
		if session.IsExpired(time.Now()) {
			return nil
		}

		apply(&session)

		updated, err := json.Marshal(&session)
		if err != nil {
			return err
		}

		remaining := time.Until(session.ExpiresAt) + reclaimGrace
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, remaining)
			return nil
		})
		if err != nil {
			return err
		}

		out = &session
		return nil
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.rdb.Watch(ctx, txf, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			out = nil
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("session update conflicted %d times", maxTxRetries)
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error) {
	key := sessionKey(id)

	data, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session entity.AnalysisSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.ZRem(ctx, expiryIndexKey, id.String())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) ListActive(ctx context.Context) ([]*entity.AnalysisSession, error) {
	ids, err := r.activeIds(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]*entity.AnalysisSession, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var session entity.AnalysisSession
		if err := json.Unmarshal(data, &session); err != nil {
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

func (r *SessionRepository) CountActive(ctx context.Context) (int, error) {
	count, err := r.rdb.ZCount(ctx, expiryIndexKey,
		strconv.FormatInt(time.Now().Unix(), 10), "+inf").Result()
	return int(count), err
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) ([]*entity.AnalysisSession, error) {
	expiredIds, err := r.rdb.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(expiredIds) == 0 {
		return nil, nil
	}

	reclaimed := make([]*entity.AnalysisSession, 0, len(expiredIds))
	for _, id := range expiredIds {
		data, err := r.rdb.Get(ctx, sessionKeyPrefix+id).Bytes()
		if err == nil {
			var session entity.AnalysisSession
			if json.Unmarshal(data, &session) == nil {
				reclaimed = append(reclaimed, &session)
			}
		}
		_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sessionKeyPrefix+id)
			pipe.ZRem(ctx, expiryIndexKey, id)
			return nil
		})
		if err != nil {
			return reclaimed, err
		}
	}
	return reclaimed, nil
}

func (r *SessionRepository) activeIds(ctx context.Context) ([]string, error) {
	return r.rdb.ZRangeByScore(ctx, expiryIndexKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(time.Now().Unix(), 10),
		Max: "+inf",
	}).Result()
}
