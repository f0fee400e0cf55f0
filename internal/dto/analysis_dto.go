package dto

import (
	"time"

	"github.com/google/uuid"

	"ai-docreview-be/internal/entity"
)

type StartAnalysisResponse struct {
	SessionId    uuid.UUID `json:"session_id"`
	DocumentName string    `json:"document_name"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
}

type SessionStatusResponse struct {
	SessionId    uuid.UUID              `json:"session_id"`
	DocumentName string                 `json:"document_name"`
	Status       string                 `json:"status"`
	Progress     int                    `json:"progress"`
	Message      string                 `json:"message"`
	Error        string                 `json:"error,omitempty"`
	Result       *entity.AnalysisResult `json:"result,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	ExpiresAt    time.Time              `json:"expires_at"`
}

type SessionListItemResponse struct {
	SessionId    uuid.UUID `json:"session_id"`
	DocumentName string    `json:"document_name"`
	Status       string    `json:"status"`
	Progress     int       `json:"progress"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type DeleteSessionResponse struct {
	SessionId uuid.UUID `json:"session_id"`
}
