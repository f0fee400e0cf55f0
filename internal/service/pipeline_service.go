package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"ai-docreview-be/internal/dto"
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/logger"
	"ai-docreview-be/internal/repository/contract"
	"ai-docreview-be/internal/tasks"
	"ai-docreview-be/pkg/analysis"
	"ai-docreview-be/pkg/events"
	"ai-docreview-be/pkg/extraction"
	"ai-docreview-be/pkg/matcher"
	"ai-docreview-be/pkg/ratelimit"
	"ai-docreview-be/pkg/redaction"
)

// analyzingTick is how often synthetic progress is emitted while the
// analysis call is in flight.
const analyzingTick = 3 * time.Second

type IPipelineService interface {
	// Start launches the pipeline for a session as a cancellable background
	// task. It returns immediately.
	Start(session *entity.AnalysisSession)
}

type pipelineService struct {
	sessionRepo contract.SessionRepository
	registry    *tasks.Registry
	extractor   extraction.Extractor
	redactor    *redaction.Redactor
	analyzer    analysis.Analyzer
	limiter     *ratelimit.Limiter
	matcher     *matcher.Matcher
	pubSub      *gochannel.GoChannel
	publisher   EventPublisher
	log         logger.ILogger
}

func NewPipelineService(
	sessionRepo contract.SessionRepository,
	registry *tasks.Registry,
	extractor extraction.Extractor,
	redactor *redaction.Redactor,
	analyzer analysis.Analyzer,
	limiter *ratelimit.Limiter,
	clauseMatcher *matcher.Matcher,
	pubSub *gochannel.GoChannel,
	publisher EventPublisher,
	log logger.ILogger,
) IPipelineService {
	return &pipelineService{
		sessionRepo: sessionRepo,
		registry:    registry,
		extractor:   extractor,
		redactor:    redactor,
		analyzer:    analyzer,
		limiter:     limiter,
		matcher:     clauseMatcher,
		pubSub:      pubSub,
		publisher:   publisher,
		log:         log,
	}
}

func (ps *pipelineService) Start(session *entity.AnalysisSession) {
	ctx, cancel := context.WithCancel(context.Background())
	handle := tasks.NewHandle(cancel)
	ps.registry.Register(session.Id, handle)

	go func() {
		defer func() {
			ps.registry.Remove(session.Id)
			handle.Finish()
			cancel()
		}()
		ps.run(ctx, session.Id, session.TempFilePath, session.DocumentName)
	}()
}

// run drives one session through extracting, redacting, analyzing and
// packaging. Every state mutation goes through the session repository so a
// concurrent reader never sees a half-applied transition, and a deleted or
// expired session silently stops the pipeline (updates return absent).
func (ps *pipelineService) run(ctx context.Context, sessionId uuid.UUID, tempFilePath string, documentName string) {
	ps.log.Info("pipeline", "pipeline started", map[string]interface{}{
		"session_id":    sessionId.String(),
		"document_name": documentName,
	})

	// Stage 1: text extraction.
	if !ps.transition(ctx, sessionId, entity.SessionStatusExtracting, 20, "Extracting text from document...") {
		return
	}

	extracted, err := ps.extractor.Extract(ctx, tempFilePath)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ps.fail(sessionId, documentName, 30, "Failed to extract text from document", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	if !ps.transition(ctx, sessionId, entity.SessionStatusExtracting, 40,
		fmt.Sprintf("Extracted %d pages successfully", extracted.Metadata.PageCount)) {
		return
	}

	// Stage 2: PII redaction. Best effort: on failure the original text
	// proceeds unredacted rather than aborting the pipeline.
	if !ps.transition(ctx, sessionId, entity.SessionStatusRedacting, 45, "Redacting personal information...") {
		return
	}

	redactedText, piiMap, categories := ps.redactor.Redact(extracted.FullText)
	if len(categories) > 0 {
		ps.log.Info("pipeline", "redacted PII before analysis", map[string]interface{}{
			"session_id": sessionId.String(),
			"categories": categories,
		})
	}

	// Stage 3: AI clause analysis, scheduler wrapped.
	if !ps.transition(ctx, sessionId, entity.SessionStatusAnalyzing, 50, "AI analyzing document clauses...") {
		return
	}

	tickerCtx, stopTicker := context.WithCancel(ctx)
	tickerDone := make(chan struct{})
	go func() {
		defer close(tickerDone)
		ps.emitAnalyzingProgress(tickerCtx, sessionId)
	}()

	var result *entity.AnalysisResult
	err = ps.limiter.Execute(ctx, func(ctx context.Context) error {
		var analyzeErr error
		result, analyzeErr = ps.analyzer.Analyze(ctx, redactedText, documentName)
		return analyzeErr
	})
	// Wait out the ticker so an in-flight synthetic progress write cannot
	// land after the checkpoints below and move progress backwards.
	stopTicker()
	<-tickerDone

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ps.fail(sessionId, documentName, 60, "Failed to analyze document with AI", err)
		return
	}
	if !ps.transition(ctx, sessionId, entity.SessionStatusAnalyzing, 80,
		fmt.Sprintf("Classified %d clauses (%d flagged)", result.TotalClauses, result.FlaggedClauses)) {
		return
	}

	// Stage 4: packaging. Restore PII only in the human-facing fields, then
	// reconcile clause text against the page layout for highlight positions.
	for i := range result.Clauses {
		clause := &result.Clauses[i]
		clause.Text = redaction.Restore(clause.Text, piiMap)
		clause.PlainLanguage = redaction.Restore(clause.PlainLanguage, piiMap)
		clause.Suggestion = redaction.Restore(clause.Suggestion, piiMap)
	}
	result.Summary = redaction.Restore(result.Summary, piiMap)
	for i := range result.TopConcerns {
		result.TopConcerns[i] = redaction.Restore(result.TopConcerns[i], piiMap)
	}

	ps.matcher.AttachPositions(result, extracted.Pages)

	updated, err := ps.sessionRepo.Update(ctx, sessionId, entity.SessionUpdate{
		Status:   entity.StatusPtr(entity.SessionStatusComplete),
		Progress: entity.IntPtr(100),
		Message:  entity.StrPtr("Analysis complete!"),
		Result:   result,
	})
	if err != nil {
		ps.log.Error("pipeline", "failed to store result", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return
	}
	if updated == nil {
		// Session deleted or expired mid-flight.
		return
	}

	ps.publishIndexEvent(sessionId)
	ps.publishLifecycle(events.EventSessionAnalyzed, sessionId, documentName)

	ps.log.Info("pipeline", "pipeline complete", map[string]interface{}{
		"session_id":      sessionId.String(),
		"total_clauses":   result.TotalClauses,
		"flagged_clauses": result.FlaggedClauses,
	})
}

// transition applies a status/progress/message update. Returns false when the
// pipeline should stop: the context is cancelled, the session is gone, or the
// store failed.
func (ps *pipelineService) transition(ctx context.Context, sessionId uuid.UUID, status entity.SessionStatus, progress int, message string) bool {
	if ctx.Err() != nil {
		return false
	}
	updated, err := ps.sessionRepo.Update(ctx, sessionId, entity.SessionUpdate{
		Status:   entity.StatusPtr(status),
		Progress: entity.IntPtr(progress),
		Message:  entity.StrPtr(message),
	})
	if err != nil {
		ps.log.Error("pipeline", "failed to update session", map[string]interface{}{
			"session_id": sessionId.String(),
			"status":     string(status),
			"error":      err.Error(),
		})
		return false
	}
	return updated != nil
}

// fail records a terminal error state. Uses a fresh context so the write
// still lands when the pipeline context was cancelled by shutdown.
func (ps *pipelineService) fail(sessionId uuid.UUID, documentName string, progress int, message string, cause error) {
	ps.log.Error("pipeline", message, map[string]interface{}{
		"session_id": sessionId.String(),
		"error":      cause.Error(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := ps.sessionRepo.Update(ctx, sessionId, entity.SessionUpdate{
		Status:   entity.StatusPtr(entity.SessionStatusError),
		Progress: entity.IntPtr(progress),
		Message:  entity.StrPtr(message),
		Error:    entity.StrPtr(cause.Error()),
	})
	if err != nil {
		ps.log.Error("pipeline", "failed to record error state", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
	}

	ps.publishLifecycle(events.EventSessionFailed, sessionId, documentName)
}

// publishLifecycle emits a terminal lifecycle event on the bus, best effort.
func (ps *pipelineService) publishLifecycle(eventType string, sessionId uuid.UUID, documentName string) {
	if ps.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ps.publisher.Publish(ctx, events.NewSessionEvent(eventType, sessionId, documentName)); err != nil {
		ps.log.Warn("pipeline", "failed to publish lifecycle event", map[string]interface{}{
			"session_id": sessionId.String(),
			"event":      eventType,
			"error":      err.Error(),
		})
	}
}

// emitAnalyzingProgress nudges progress forward at a fixed interval while the
// analysis call is in flight, capped below the post-analysis checkpoint.
func (ps *pipelineService) emitAnalyzingProgress(ctx context.Context, sessionId uuid.UUID) {
	ticker := time.NewTicker(analyzingTick)
	defer ticker.Stop()

	progress := 50
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if progress < 78 {
				progress += 3
			}
			_, err := ps.sessionRepo.Update(ctx, sessionId, entity.SessionUpdate{
				Progress: entity.IntPtr(progress),
				Message:  entity.StrPtr("AI analyzing document clauses..."),
			})
			if err != nil {
				return
			}
		}
	}
}

func (ps *pipelineService) publishIndexEvent(sessionId uuid.UUID) {
	if ps.pubSub == nil {
		return
	}
	payload, err := json.Marshal(dto.IndexSessionMessage{SessionId: sessionId})
	if err != nil {
		ps.log.Error("pipeline", "failed to marshal index message", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := ps.pubSub.Publish(IndexTopicName, msg); err != nil {
		ps.log.Warn("pipeline", "failed to publish index event", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
	}
}
