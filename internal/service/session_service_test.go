package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/repository/memory"
	"ai-docreview-be/internal/tasks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func newTestSessionService(maxConcurrent, maxPerOrigin int) (ISessionService, *tasks.Registry) {
	registry := tasks.NewRegistry()
	svc := NewSessionService(
		memory.NewSessionRepository(time.Hour),
		nil,
		registry,
		nil,
		nopLogger{},
		time.Hour,
		time.Minute,
		maxConcurrent,
		maxPerOrigin,
	)
	return svc, registry
}

func TestAdmitCreatesSession(t *testing.T) {
	svc, _ := newTestSessionService(3, 2)

	session, err := svc.Admit(context.Background(), "lease.pdf", "10.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, session)

	assert.Equal(t, "lease.pdf", session.DocumentName)
	assert.Equal(t, entity.SessionStatusUploading, session.Status)
}

func TestAdmitRejectsAtGlobalCeiling(t *testing.T) {
	svc, _ := newTestSessionService(1, 0)
	ctx := context.Background()

	_, err := svc.Admit(ctx, "first.pdf", "10.0.0.1")
	require.NoError(t, err)

	// The request is rejected, not queued.
	_, err = svc.Admit(ctx, "second.pdf", "10.0.0.2")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "admission_rejected", appErr.Code)
	assert.Equal(t, 503, appErr.StatusCode)
}

func TestAdmitRejectsAtOriginCeiling(t *testing.T) {
	svc, _ := newTestSessionService(10, 1)
	ctx := context.Background()

	_, err := svc.Admit(ctx, "first.pdf", "10.0.0.1")
	require.NoError(t, err)

	_, err = svc.Admit(ctx, "second.pdf", "10.0.0.1")
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "admission_rejected", appErr.Code)

	// A different origin still fits under the global ceiling.
	_, err = svc.Admit(ctx, "third.pdf", "10.0.0.2")
	assert.NoError(t, err)
}

func TestAdmitIgnoresTerminalSessions(t *testing.T) {
	registry := tasks.NewRegistry()
	repo := memory.NewSessionRepository(time.Hour)
	svc := NewSessionService(repo, nil, registry, nil, nopLogger{}, time.Hour, time.Minute, 1, 0)
	ctx := context.Background()

	first, err := svc.Admit(ctx, "first.pdf", "10.0.0.1")
	require.NoError(t, err)

	_, err = repo.Update(ctx, first.Id, entity.SessionUpdate{
		Status: entity.StatusPtr(entity.SessionStatusComplete),
	})
	require.NoError(t, err)

	// Completed sessions no longer hold a concurrency slot.
	_, err = svc.Admit(ctx, "second.pdf", "10.0.0.1")
	assert.NoError(t, err)
}

func TestGetSessionNotFound(t *testing.T) {
	svc, _ := newTestSessionService(3, 0)

	_, err := svc.GetSession(context.Background(), uuid.New())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "session_not_found", appErr.Code)
	assert.Equal(t, 404, appErr.StatusCode)
}

func TestGetStatusMapsFields(t *testing.T) {
	svc, _ := newTestSessionService(3, 0)
	ctx := context.Background()

	session, err := svc.Admit(ctx, "lease.pdf", "")
	require.NoError(t, err)

	status, err := svc.GetStatus(ctx, session.Id)
	require.NoError(t, err)

	assert.Equal(t, session.Id, status.SessionId)
	assert.Equal(t, "lease.pdf", status.DocumentName)
	assert.Equal(t, "uploading", status.Status)
	assert.Nil(t, status.Result)
}

func TestDeleteSessionCancelsPipeline(t *testing.T) {
	svc, registry := newTestSessionService(3, 0)
	ctx := context.Background()

	session, err := svc.Admit(ctx, "lease.pdf", "")
	require.NoError(t, err)

	pipeCtx, cancel := context.WithCancel(context.Background())
	registry.Register(session.Id, tasks.NewHandle(cancel))

	resp, err := svc.DeleteSession(ctx, session.Id)
	require.NoError(t, err)
	assert.Equal(t, session.Id, resp.SessionId)

	assert.ErrorIs(t, pipeCtx.Err(), context.Canceled)
	assert.Equal(t, 0, registry.Count())

	// The record is gone; deleting again reports not found.
	_, err = svc.DeleteSession(ctx, session.Id)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "session_not_found", appErr.Code)
}

func TestListSessions(t *testing.T) {
	svc, _ := newTestSessionService(5, 0)
	ctx := context.Background()

	_, err := svc.Admit(ctx, "a.pdf", "")
	require.NoError(t, err)
	_, err = svc.Admit(ctx, "b.pdf", "")
	require.NoError(t, err)

	items, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
