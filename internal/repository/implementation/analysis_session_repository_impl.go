package implementation

import (
	"context"
	"errors"
	"time"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/mapper"
	"ai-docreview-be/internal/model"
	"ai-docreview-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalysisSessionRepositoryImpl is the Postgres backend. Per-statement
// atomicity comes from the database; the read-modify-write in Update and
// Get runs inside a transaction with a row lock so concurrent patches
// never interleave.
type AnalysisSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.AnalysisSessionMapper
}

func NewAnalysisSessionRepository(db *gorm.DB) contract.SessionRepository {
	return &AnalysisSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewAnalysisSessionMapper(),
	}
}

func (r *AnalysisSessionRepositoryImpl) Create(ctx context.Context, documentName, origin string, ttl time.Duration) (*entity.AnalysisSession, error) {
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

	m := r.mapper.ToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return session, nil
}

func (r *AnalysisSessionRepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error) {
	var out *entity.AnalysisSession

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.AnalysisSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND expires_at > ?", id, time.Now()).
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		m.UpdatedAt = time.Now()
		if err := tx.Model(&model.AnalysisSession{}).
			Where("id = ?", id).
			Update("updated_at", m.UpdatedAt).Error; err != nil {
			return err
		}

		out = r.mapper.ToEntity(&m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AnalysisSessionRepositoryImpl) Update(ctx context.Context, id uuid.UUID, patch entity.SessionUpdate) (*entity.AnalysisSession, error) {
	var out *entity.AnalysisSession

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.AnalysisSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND expires_at > ?", id, time.Now()).
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		session := r.mapper.ToEntity(&m)
		session.Apply(patch, time.Now())

		if err := tx.Save(r.mapper.ToModel(session)).Error; err != nil {
			return err
		}

		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AnalysisSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error) {
	var out *entity.AnalysisSession

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.AnalysisSession
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(&model.AnalysisSession{}, "id = ?", id).Error; err != nil {
			return err
		}

		out = r.mapper.ToEntity(&m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *AnalysisSessionRepositoryImpl) ListActive(ctx context.Context) ([]*entity.AnalysisSession, error) {
	var models []model.AnalysisSession
	err := r.db.WithContext(ctx).
		Where("expires_at > ?", time.Now()).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*entity.AnalysisSession, 0, len(models))
	for i := range models {
		sessions = append(sessions, r.mapper.ToEntity(&models[i]))
	}
	return sessions, nil
}

func (r *AnalysisSessionRepositoryImpl) CountActive(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.AnalysisSession{}).
		Where("expires_at > ?", time.Now()).
		Count(&count).Error
	return int(count), err
}

func (r *AnalysisSessionRepositoryImpl) DeleteExpired(ctx context.Context, now time.Time) ([]*entity.AnalysisSession, error) {
	var reclaimed []*entity.AnalysisSession

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []model.AnalysisSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("expires_at < ?", now).
			Find(&models).Error; err != nil {
			return err
		}
		if len(models) == 0 {
			return nil
		}

		if err := tx.Where("expires_at < ?", now).
			Delete(&model.AnalysisSession{}).Error; err != nil {
			return err
		}

		for i := range models {
			reclaimed = append(reclaimed, r.mapper.ToEntity(&models[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reclaimed, nil
}
