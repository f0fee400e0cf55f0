package entity

import (
	"github.com/google/uuid"
)

type ClauseEmbedding struct {
	Id        uuid.UUID
	SessionId uuid.UUID
	ClauseId  string
	Content   string
	Embedding []float32
}
