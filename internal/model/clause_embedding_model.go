package model

import (
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

type ClauseEmbedding struct {
	Id        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SessionId uuid.UUID       `gorm:"type:uuid;not null;index"` // Cascade target on session deletion
	ClauseId  string          `gorm:"type:text;not null"`
	Content   string          `gorm:"type:text;not null"`
	Embedding pgvector.Vector `gorm:"type:vector(768)"`
}

func (ClauseEmbedding) TableName() string {
	return "clause_embeddings"
}
