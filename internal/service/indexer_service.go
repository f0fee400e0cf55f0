package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"ai-docreview-be/internal/dto"
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/logger"
	"ai-docreview-be/internal/repository/contract"
	"ai-docreview-be/pkg/embedding"
)

const IndexTopicName = "session.analyzed"

type IIndexerService interface {
	Consume(ctx context.Context) error
}

type indexerService struct {
	pubSub            *gochannel.GoChannel
	sessionRepo       contract.SessionRepository
	embeddingRepo     contract.ClauseEmbeddingRepository
	embeddingProvider embedding.EmbeddingProvider
	log               logger.ILogger
}

func NewIndexerService(
	pubSub *gochannel.GoChannel,
	sessionRepo contract.SessionRepository,
	embeddingRepo contract.ClauseEmbeddingRepository,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) IIndexerService {
	return &indexerService{
		pubSub:            pubSub,
		sessionRepo:       sessionRepo,
		embeddingRepo:     embeddingRepo,
		embeddingProvider: embeddingProvider,
		log:               log,
	}
}

func (is *indexerService) Consume(ctx context.Context) error {
	messages, err := is.pubSub.Subscribe(ctx, IndexTopicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			is.processMessage(ctx, msg)
		}
	}()

	return nil
}

// processMessage embeds the clauses of a completed analysis so the chat
// retrieval path can rank them. Indexing is best effort: a failure is
// logged and the message acked, the session itself stays complete.
func (is *indexerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.IndexSessionMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		is.log.Error("indexer", "failed to unmarshal index message", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	session, err := is.sessionRepo.Get(ctx, payload.SessionId)
	if err != nil {
		is.log.Error("indexer", "failed to load session", map[string]interface{}{
			"session_id": payload.SessionId.String(),
			"error":      err.Error(),
		})
		return
	}
	if session == nil || session.Result == nil {
		// Session deleted or expired before indexing ran.
		return
	}

	clauseEmbeddings := make([]*entity.ClauseEmbedding, 0, len(session.Result.Clauses))
	for _, clause := range session.Result.Clauses {
		content := clauseContent(clause)
		values, err := is.embeddingProvider.Generate(ctx, content, embedding.TaskRetrievalDocument)
		if err != nil {
			is.log.Error("indexer", "failed to embed clause", map[string]interface{}{
				"session_id": session.Id.String(),
				"clause_id":  clause.ClauseId,
				"error":      err.Error(),
			})
			return
		}
		clauseEmbeddings = append(clauseEmbeddings, &entity.ClauseEmbedding{
			Id:        uuid.New(),
			SessionId: session.Id,
			ClauseId:  clause.ClauseId,
			Content:   content,
			Embedding: values,
		})
	}

	if err := is.embeddingRepo.ReplaceForSession(ctx, session.Id, clauseEmbeddings); err != nil {
		is.log.Error("indexer", "failed to store clause embeddings", map[string]interface{}{
			"session_id": session.Id.String(),
			"error":      err.Error(),
		})
		return
	}

	is.log.Info("indexer", "session indexed", map[string]interface{}{
		"session_id": session.Id.String(),
		"clauses":    len(clauseEmbeddings),
	})
}

func clauseContent(clause entity.Clause) string {
	return fmt.Sprintf("Clause: %s\nCategory: %s\nSeverity: %s\n\n%s\n\nPlain language: %s",
		clause.ClauseId,
		clause.Category,
		clause.Severity,
		clause.Text,
		clause.PlainLanguage,
	)
}
