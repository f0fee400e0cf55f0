package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ai-docreview-be/internal/dto"
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/repository/memory"
	"ai-docreview-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbeddingProvider struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubEmbeddingProvider) Generate(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, taskType)
	return []float32{0.1, 0.2, 0.3}, nil
}

type stubEmbeddingRepo struct {
	mu       sync.Mutex
	replaced map[uuid.UUID][]*entity.ClauseEmbedding
}

func newStubEmbeddingRepo() *stubEmbeddingRepo {
	return &stubEmbeddingRepo{replaced: make(map[uuid.UUID][]*entity.ClauseEmbedding)}
}

func (s *stubEmbeddingRepo) ReplaceForSession(ctx context.Context, sessionId uuid.UUID, embeddings []*entity.ClauseEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced[sessionId] = embeddings
	return nil
}

func (s *stubEmbeddingRepo) TopClauseIds(ctx context.Context, sessionId uuid.UUID, query []float32, topK int) ([]string, error) {
	return nil, nil
}

func (s *stubEmbeddingRepo) DeleteBySessionId(ctx context.Context, sessionId uuid.UUID) error {
	return nil
}

func (s *stubEmbeddingRepo) forSession(id uuid.UUID) []*entity.ClauseEmbedding {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaced[id]
}

func TestIndexerEmbedsCompletedSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.NewSessionRepository(time.Hour)
	embeddingRepo := newStubEmbeddingRepo()
	provider := &stubEmbeddingProvider{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	indexer := NewIndexerService(pubSub, repo, embeddingRepo, provider, nopLogger{})
	require.NoError(t, indexer.Consume(ctx))

	session, err := repo.Create(ctx, "lease.pdf", "", 0)
	require.NoError(t, err)
	_, err = repo.Update(ctx, session.Id, entity.SessionUpdate{
		Status: entity.StatusPtr(entity.SessionStatusComplete),
		Result: leaseResult(),
	})
	require.NoError(t, err)

	payload, err := json.Marshal(dto.IndexSessionMessage{SessionId: session.Id})
	require.NoError(t, err)
	require.NoError(t, pubSub.Publish(IndexTopicName, message.NewMessage(watermill.NewUUID(), payload)))

	require.Eventually(t, func() bool {
		return len(embeddingRepo.forSession(session.Id)) == 3
	}, 5*time.Second, 10*time.Millisecond)

	stored := embeddingRepo.forSession(session.Id)
	assert.Equal(t, "clause_1", stored[0].ClauseId)
	assert.Equal(t, session.Id, stored[0].SessionId)
	assert.Contains(t, stored[0].Content, "Clause: clause_1")
	assert.Contains(t, stored[0].Content, "Category: risky")
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, stored[0].Embedding)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	for _, taskType := range provider.calls {
		assert.Equal(t, embedding.TaskRetrievalDocument, taskType)
	}
}

func TestIndexerSkipsDeletedSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := memory.NewSessionRepository(time.Hour)
	embeddingRepo := newStubEmbeddingRepo()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})

	indexer := NewIndexerService(pubSub, repo, embeddingRepo, &stubEmbeddingProvider{}, nopLogger{})
	require.NoError(t, indexer.Consume(ctx))

	missing := uuid.New()
	payload, err := json.Marshal(dto.IndexSessionMessage{SessionId: missing})
	require.NoError(t, err)
	require.NoError(t, pubSub.Publish(IndexTopicName, message.NewMessage(watermill.NewUUID(), payload)))

	// The message is consumed without producing embeddings.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, embeddingRepo.forSession(missing))
}
