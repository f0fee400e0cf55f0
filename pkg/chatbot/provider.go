package chatbot

import "context"

const (
	ChatMessageRoleUser  = "user"
	ChatMessageRoleModel = "model"
)

type ChatHistory struct {
	Chat string
	Role string
}

// ChatProvider defines the interface for conversational completions
type ChatProvider interface {
	Chat(ctx context.Context, chatHistories []*ChatHistory) (string, error)
}
