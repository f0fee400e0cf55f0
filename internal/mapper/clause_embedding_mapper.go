package mapper

import (
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/model"

	"github.com/pgvector/pgvector-go"
)

type ClauseEmbeddingMapper struct{}

func NewClauseEmbeddingMapper() *ClauseEmbeddingMapper {
	return &ClauseEmbeddingMapper{}
}

func (m *ClauseEmbeddingMapper) ToModel(e *entity.ClauseEmbedding) *model.ClauseEmbedding {
	if e == nil {
		return nil
	}
	return &model.ClauseEmbedding{
		Id:        e.Id,
		SessionId: e.SessionId,
		ClauseId:  e.ClauseId,
		Content:   e.Content,
		Embedding: pgvector.NewVector(e.Embedding),
	}
}

func (m *ClauseEmbeddingMapper) ToEntity(mod *model.ClauseEmbedding) *entity.ClauseEmbedding {
	if mod == nil {
		return nil
	}
	return &entity.ClauseEmbedding{
		Id:        mod.Id,
		SessionId: mod.SessionId,
		ClauseId:  mod.ClauseId,
		Content:   mod.Content,
		Embedding: mod.Embedding.Slice(),
	}
}
