package dto

import "github.com/google/uuid"

type SendChatRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
	Chat      string    `json:"chat" validate:"required"`
}

type SendChatResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	Reply     string    `json:"reply"`
	ClauseIds []string  `json:"clause_ids,omitempty"`
}

type VoiceChatResponse struct {
	SessionId  uuid.UUID `json:"session_id"`
	Transcript string    `json:"transcript"`
	Reply      string    `json:"reply"`
}

// IndexSessionMessage is the payload published when an analysis completes
// and its clauses should be embedded for retrieval.
type IndexSessionMessage struct {
	SessionId uuid.UUID `json:"session_id"`
}
