package service

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"ai-docreview-be/internal/dto"
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/pkg/logger"
	"ai-docreview-be/internal/repository/contract"
	"ai-docreview-be/internal/tasks"
	"ai-docreview-be/pkg/events"
)

// EventPublisher is the lifecycle event sink, satisfied by the NATS
// publisher. A nil publisher disables event emission.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type ISessionService interface {
	Admit(ctx context.Context, documentName string, origin string) (*entity.AnalysisSession, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*dto.SessionStatusResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error)
	ListSessions(ctx context.Context) ([]*dto.SessionListItemResponse, error)
	DeleteSession(ctx context.Context, id uuid.UUID) (*dto.DeleteSessionResponse, error)
	RunSweeper(ctx context.Context)
}

type sessionService struct {
	sessionRepo   contract.SessionRepository
	embeddingRepo contract.ClauseEmbeddingRepository
	registry      *tasks.Registry
	publisher     EventPublisher
	log           logger.ILogger

	ttl           time.Duration
	sweepInterval time.Duration
	maxConcurrent int
	maxPerOrigin  int
}

func NewSessionService(
	sessionRepo contract.SessionRepository,
	embeddingRepo contract.ClauseEmbeddingRepository,
	registry *tasks.Registry,
	publisher EventPublisher,
	log logger.ILogger,
	ttl time.Duration,
	sweepInterval time.Duration,
	maxConcurrent int,
	maxPerOrigin int,
) ISessionService {
	return &sessionService{
		sessionRepo:   sessionRepo,
		embeddingRepo: embeddingRepo,
		registry:      registry,
		publisher:     publisher,
		log:           log,
		ttl:           ttl,
		sweepInterval: sweepInterval,
		maxConcurrent: maxConcurrent,
		maxPerOrigin:  maxPerOrigin,
	}
}

// Admit enforces the concurrency ceilings and creates a new session record.
// Both checks count only active (non expired) sessions.
func (ss *sessionService) Admit(ctx context.Context, documentName string, origin string) (*entity.AnalysisSession, error) {
	active, err := ss.sessionRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	running := 0
	originCount := 0
	for _, session := range active {
		if session.Status.Terminal() {
			continue
		}
		running++
		if origin != "" && session.Origin == origin {
			originCount++
		}
	}

	if running >= ss.maxConcurrent {
		ss.log.Warn("session", "admission rejected, global ceiling reached", map[string]interface{}{
			"running": running,
			"ceiling": ss.maxConcurrent,
		})
		return nil, apperrors.NewAdmissionRejected(
			"server is at capacity, please try again shortly",
		)
	}
	if origin != "" && ss.maxPerOrigin > 0 && originCount >= ss.maxPerOrigin {
		ss.log.Warn("session", "admission rejected, per origin ceiling reached", map[string]interface{}{
			"origin":  origin,
			"count":   originCount,
			"ceiling": ss.maxPerOrigin,
		})
		return nil, apperrors.NewAdmissionRejected(
			"too many analyses in progress from this origin",
		)
	}

	session, err := ss.sessionRepo.Create(ctx, documentName, origin, ss.ttl)
	if err != nil {
		return nil, err
	}

	if ss.publisher != nil {
		if err := ss.publisher.Publish(ctx, events.NewSessionEvent(events.EventSessionCreated, session.Id, session.DocumentName)); err != nil {
			ss.log.Warn("session", "failed to publish session created event", map[string]interface{}{"error": err.Error()})
		}
	}

	ss.log.Info("session", "session admitted", map[string]interface{}{
		"session_id":    session.Id.String(),
		"document_name": session.DocumentName,
	})
	return session, nil
}

func (ss *sessionService) GetSession(ctx context.Context, id uuid.UUID) (*entity.AnalysisSession, error) {
	session, err := ss.sessionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperrors.NewSessionNotFound(id.String())
	}
	return session, nil
}

func (ss *sessionService) GetStatus(ctx context.Context, id uuid.UUID) (*dto.SessionStatusResponse, error) {
	session, err := ss.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.SessionStatusResponse{
		SessionId:    session.Id,
		DocumentName: session.DocumentName,
		Status:       string(session.Status),
		Progress:     session.Progress,
		Message:      session.Message,
		Error:        session.Error,
		Result:       session.Result,
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

func (ss *sessionService) ListSessions(ctx context.Context) ([]*dto.SessionListItemResponse, error) {
	active, err := ss.sessionRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.SessionListItemResponse, 0, len(active))
	for _, session := range active {
		items = append(items, &dto.SessionListItemResponse{
			SessionId:    session.Id,
			DocumentName: session.DocumentName,
			Status:       string(session.Status),
			Progress:     session.Progress,
			CreatedAt:    session.CreatedAt,
			ExpiresAt:    session.ExpiresAt,
		})
	}
	return items, nil
}

// DeleteSession removes the record and cascades: in-flight pipeline cancelled,
// temp file removed, clause embeddings dropped.
func (ss *sessionService) DeleteSession(ctx context.Context, id uuid.UUID) (*dto.DeleteSessionResponse, error) {
	removed, err := ss.sessionRepo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	if removed == nil {
		return nil, apperrors.NewSessionNotFound(id.String())
	}

	ss.cascade(ctx, removed, events.EventSessionDeleted)

	ss.log.Info("session", "session deleted", map[string]interface{}{
		"session_id": id.String(),
	})
	return &dto.DeleteSessionResponse{SessionId: id}, nil
}

// RunSweeper periodically reclaims expired sessions. Blocks until ctx is done.
func (ss *sessionService) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(ss.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reclaimed, err := ss.sessionRepo.DeleteExpired(ctx, time.Now())
			if err != nil {
				ss.log.Error("session", "sweep failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			for _, session := range reclaimed {
				ss.cascade(ctx, session, events.EventSessionExpired)
			}
			if len(reclaimed) > 0 {
				ss.log.Info("session", "swept expired sessions", map[string]interface{}{
					"count": len(reclaimed),
				})
			}
		}
	}
}

func (ss *sessionService) cascade(ctx context.Context, session *entity.AnalysisSession, eventType string) {
	ss.registry.Cancel(session.Id)

	if session.TempFilePath != "" {
		if err := os.Remove(session.TempFilePath); err != nil && !os.IsNotExist(err) {
			ss.log.Warn("session", "failed to remove temp file", map[string]interface{}{
				"session_id": session.Id.String(),
				"path":       session.TempFilePath,
				"error":      err.Error(),
			})
		}
	}

	if ss.embeddingRepo != nil {
		if err := ss.embeddingRepo.DeleteBySessionId(ctx, session.Id); err != nil {
			ss.log.Warn("session", "failed to drop clause embeddings", map[string]interface{}{
				"session_id": session.Id.String(),
				"error":      err.Error(),
			})
		}
	}

	if ss.publisher != nil {
		if err := ss.publisher.Publish(ctx, events.NewSessionEvent(eventType, session.Id, session.DocumentName)); err != nil {
			ss.log.Warn("session", "failed to publish lifecycle event", map[string]interface{}{"error": err.Error()})
		}
	}
}
