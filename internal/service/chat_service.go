package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ai-docreview-be/internal/constant"
	"ai-docreview-be/internal/dto"
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/pkg/logger"
	"ai-docreview-be/internal/repository/contract"
	"ai-docreview-be/pkg/chatbot"
	"ai-docreview-be/pkg/embedding"
	"ai-docreview-be/pkg/ratelimit"
	"ai-docreview-be/pkg/speech"
)

const chatContextClauses = 8

var clauseRefPattern = regexp.MustCompile(`(?i)clause_\d+`)

type IChatService interface {
	Chat(ctx context.Context, sessionId uuid.UUID, question string) (*dto.SendChatResponse, error)
	VoiceChat(ctx context.Context, sessionId uuid.UUID, audio []byte, mimeType string) (*dto.VoiceChatResponse, error)
	VoiceSummary(ctx context.Context, sessionId uuid.UUID, text string) ([]byte, error)
}

type chatService struct {
	sessions          ISessionService
	embeddingRepo     contract.ClauseEmbeddingRepository
	embeddingProvider embedding.EmbeddingProvider
	chatProvider      chatbot.ChatProvider
	speechProvider    speech.SpeechProvider
	limiter           *ratelimit.Limiter
	log               logger.ILogger
}

func NewChatService(
	sessions ISessionService,
	embeddingRepo contract.ClauseEmbeddingRepository,
	embeddingProvider embedding.EmbeddingProvider,
	chatProvider chatbot.ChatProvider,
	speechProvider speech.SpeechProvider,
	limiter *ratelimit.Limiter,
	log logger.ILogger,
) IChatService {
	return &chatService{
		sessions:          sessions,
		embeddingRepo:     embeddingRepo,
		embeddingProvider: embeddingProvider,
		chatProvider:      chatProvider,
		speechProvider:    speechProvider,
		limiter:           limiter,
		log:               log,
	}
}

func (cs *chatService) Chat(ctx context.Context, sessionId uuid.UUID, question string) (*dto.SendChatResponse, error) {
	session, err := cs.sessions.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.Result == nil {
		return nil, apperrors.NewAnalysisError("Document analysis not complete yet", sessionId.String())
	}

	contextClauses := cs.selectClauses(ctx, session, question)

	clauseLines := make([]string, 0, len(contextClauses))
	for _, clause := range contextClauses {
		text := clause.Text
		if len(text) > 100 {
			text = text[:100] + "..."
		}
		clauseLines = append(clauseLines, fmt.Sprintf("- %s: %s (%s, %s)",
			clause.ClauseId, text, clause.Category, clause.Severity))
	}

	concernLines := make([]string, 0, len(session.Result.TopConcerns))
	for _, concern := range session.Result.TopConcerns {
		concernLines = append(concernLines, "- "+concern)
	}

	userPrompt := fmt.Sprintf(constant.ChatUserPromptV1,
		session.Result.DocumentName,
		session.Result.DocumentType,
		session.Result.Summary,
		strings.Join(concernLines, "\n"),
		strings.Join(clauseLines, "\n"),
		question,
	)

	histories := []*chatbot.ChatHistory{
		{Chat: constant.ChatSystemPromptV1, Role: chatbot.ChatMessageRoleUser},
		{Chat: "Understood. I will answer based only on the provided analysis.", Role: chatbot.ChatMessageRoleModel},
		{Chat: userPrompt, Role: chatbot.ChatMessageRoleUser},
	}

	var answer string
	err = cs.limiter.Execute(ctx, func(ctx context.Context) error {
		var chatErr error
		answer, chatErr = cs.chatProvider.Chat(ctx, histories)
		return chatErr
	})
	if err != nil {
		return nil, err
	}
	answer = strings.TrimSpace(answer)

	cs.log.Info("chat", "chat response generated", map[string]interface{}{
		"session_id": sessionId.String(),
	})

	return &dto.SendChatResponse{
		SessionId: sessionId,
		Reply:     answer,
		ClauseIds: extractClauseReferences(answer),
	}, nil
}

func (cs *chatService) VoiceChat(ctx context.Context, sessionId uuid.UUID, audio []byte, mimeType string) (*dto.VoiceChatResponse, error) {
	transcript, err := cs.speechProvider.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(transcript) == "" {
		return nil, apperrors.NewFileValidationError("Could not understand the audio, please try again")
	}

	reply, err := cs.Chat(ctx, sessionId, transcript)
	if err != nil {
		return nil, err
	}

	return &dto.VoiceChatResponse{
		SessionId:  sessionId,
		Transcript: transcript,
		Reply:      reply.Reply,
	}, nil
}

func (cs *chatService) VoiceSummary(ctx context.Context, sessionId uuid.UUID, text string) ([]byte, error) {
	session, err := cs.sessions.GetSession(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.Result == nil {
		return nil, apperrors.NewAnalysisError("Document analysis not complete yet", sessionId.String())
	}
	if strings.TrimSpace(text) == "" {
		text = session.Result.Summary
	}
	return cs.speechProvider.Synthesize(ctx, text)
}

// selectClauses picks the clauses used as chat context: vector retrieval
// against the side-store when available, keyword overlap otherwise. The
// fallback keeps chat working when no embedding store is configured.
func (cs *chatService) selectClauses(ctx context.Context, session *entity.AnalysisSession, question string) []entity.Clause {
	clauses := session.Result.Clauses

	if cs.embeddingRepo != nil && cs.embeddingProvider != nil {
		query, err := cs.embeddingProvider.Generate(ctx, question, embedding.TaskRetrievalQuery)
		if err == nil {
			clauseIds, err := cs.embeddingRepo.TopClauseIds(ctx, session.Id, query, chatContextClauses)
			if err == nil && len(clauseIds) > 0 {
				byId := make(map[string]entity.Clause, len(clauses))
				for _, clause := range clauses {
					byId[clause.ClauseId] = clause
				}
				selected := make([]entity.Clause, 0, len(clauseIds))
				for _, id := range clauseIds {
					if clause, ok := byId[id]; ok {
						selected = append(selected, clause)
					}
				}
				if len(selected) > 0 {
					return selected
				}
			}
		} else {
			cs.log.Warn("chat", "query embedding failed, falling back to keyword retrieval", map[string]interface{}{
				"session_id": session.Id.String(),
				"error":      err.Error(),
			})
		}
	}

	return keywordTopClauses(clauses, question, chatContextClauses)
}

// keywordTopClauses ranks clauses by how many question words appear in the
// clause text. Ties keep document order.
func keywordTopClauses(clauses []entity.Clause, question string, topK int) []entity.Clause {
	questionWords := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(question)) {
		word = strings.Trim(word, ".,!?\"'()")
		if len(word) > 2 {
			questionWords[word] = struct{}{}
		}
	}

	type scored struct {
		index int
		score int
	}
	ranked := make([]scored, 0, len(clauses))
	for i, clause := range clauses {
		text := strings.ToLower(clause.Text + " " + clause.PlainLanguage)
		score := 0
		for word := range questionWords {
			if strings.Contains(text, word) {
				score++
			}
		}
		ranked = append(ranked, scored{index: i, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	selected := make([]entity.Clause, 0, topK)
	for _, r := range ranked[:topK] {
		selected = append(selected, clauses[r.index])
	}
	return selected
}

func extractClauseReferences(text string) []string {
	matches := clauseRefPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	unique := make([]string, 0, len(matches))
	for _, match := range matches {
		normalized := strings.ToLower(match)
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		unique = append(unique, normalized)
	}
	return unique
}
