package implementation

import (
	"context"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/mapper"
	"ai-docreview-be/internal/model"
	"ai-docreview-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ClauseEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ClauseEmbeddingMapper
}

func NewClauseEmbeddingRepository(db *gorm.DB) contract.ClauseEmbeddingRepository {
	return &ClauseEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewClauseEmbeddingMapper(),
	}
}

func (r *ClauseEmbeddingRepositoryImpl) ReplaceForSession(ctx context.Context, sessionId uuid.UUID, embeddings []*entity.ClauseEmbedding) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionId).
			Delete(&model.ClauseEmbedding{}).Error; err != nil {
			return err
		}
		if len(embeddings) == 0 {
			return nil
		}

		models := make([]*model.ClauseEmbedding, 0, len(embeddings))
		for _, e := range embeddings {
			if e.Id == uuid.Nil {
				e.Id = uuid.New()
			}
			models = append(models, r.mapper.ToModel(e))
		}
		return tx.CreateInBatches(models, 100).Error
	})
}

func (r *ClauseEmbeddingRepositoryImpl) TopClauseIds(ctx context.Context, sessionId uuid.UUID, query []float32, topK int) ([]string, error) {
	var clauseIds []string
	err := r.db.WithContext(ctx).
		Model(&model.ClauseEmbedding{}).
		Where("session_id = ?", sessionId).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                "embedding <=> ?",
			Vars:               []interface{}{pgvector.NewVector(query)},
			WithoutParentheses: true,
		}}).
		Limit(topK).
		Pluck("clause_id", &clauseIds).Error
	if err != nil {
		return nil, err
	}
	return clauseIds, nil
}

func (r *ClauseEmbeddingRepositoryImpl) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Delete(&model.ClauseEmbedding{}).Error
}
