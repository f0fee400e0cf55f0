package service

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/repository/contract"
	"ai-docreview-be/internal/repository/memory"
	"ai-docreview-be/internal/tasks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPipeline struct {
	started []*entity.AnalysisSession
}

func (s *stubPipeline) Start(session *entity.AnalysisSession) {
	s.started = append(s.started, session)
}

func newTestAnalysisService(t *testing.T, maxConcurrent int) (IAnalysisService, *stubPipeline, contract.SessionRepository, string) {
	t.Helper()
	repo := memory.NewSessionRepository(time.Hour)
	sessions := NewSessionService(repo, nil, tasks.NewRegistry(), nil, nopLogger{}, time.Hour, time.Minute, maxConcurrent, 0)
	pipeline := &stubPipeline{}
	uploadDir := t.TempDir()
	svc := NewAnalysisService(repo, sessions, pipeline, nopLogger{}, uploadDir, 1)
	return svc, pipeline, repo, uploadDir
}

func TestStartAnalysisHappyPath(t *testing.T) {
	svc, pipeline, repo, uploadDir := newTestAnalysisService(t, 3)
	ctx := context.Background()

	resp, err := svc.StartAnalysis(ctx, []byte("%PDF-1.7 fake"), "My Lease.pdf", "application/pdf", "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, "My Lease.pdf", resp.DocumentName)
	assert.Equal(t, "uploading", resp.Status)
	assert.Equal(t, "Document received, starting analysis...", resp.Message)

	// The upload landed on disk under the session id.
	stored := filepath.Join(uploadDir, resp.SessionId.String()+".pdf")
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 fake"), data)

	// The pipeline got the updated record with the temp path attached.
	require.Len(t, pipeline.started, 1)
	assert.Equal(t, stored, pipeline.started[0].TempFilePath)
	assert.Equal(t, 10, pipeline.started[0].Progress)

	session, err := repo.Get(ctx, resp.SessionId)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, stored, session.TempFilePath)
}

func TestStartAnalysisValidation(t *testing.T) {
	svc, pipeline, _, _ := newTestAnalysisService(t, 3)
	ctx := context.Background()

	oversized := bytes.Repeat([]byte("a"), 2*1024*1024)

	tests := []struct {
		name        string
		fileBytes   []byte
		filename    string
		contentType string
	}{
		{"wrong content type", []byte("hello"), "doc.pdf", "text/plain"},
		{"empty file", nil, "doc.pdf", "application/pdf"},
		{"oversized file", oversized, "doc.pdf", "application/pdf"},
		{"wrong extension", []byte("hello"), "doc.docx", "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartAnalysis(ctx, tt.fileBytes, tt.filename, tt.contentType, "")
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "file_validation_error", appErr.Code)
			assert.Equal(t, 400, appErr.StatusCode)
		})
	}

	// Rejected uploads never reach the pipeline.
	assert.Empty(t, pipeline.started)
}

func TestStartAnalysisSanitizesFilename(t *testing.T) {
	svc, _, _, _ := newTestAnalysisService(t, 3)

	resp, err := svc.StartAnalysis(context.Background(), []byte("x"), "../../etc/passwd#$%.pdf", "application/pdf", "")
	require.NoError(t, err)

	assert.Equal(t, "....etcpasswd.pdf", resp.DocumentName)
}

func TestStartAnalysisRejectedAtCapacity(t *testing.T) {
	svc, pipeline, _, _ := newTestAnalysisService(t, 1)
	ctx := context.Background()

	_, err := svc.StartAnalysis(ctx, []byte("x"), "first.pdf", "application/pdf", "")
	require.NoError(t, err)

	_, err = svc.StartAnalysis(ctx, []byte("x"), "second.pdf", "application/pdf", "")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "admission_rejected", appErr.Code)
	assert.Len(t, pipeline.started, 1)
}

func TestDocumentPath(t *testing.T) {
	svc, _, _, _ := newTestAnalysisService(t, 3)
	ctx := context.Background()

	resp, err := svc.StartAnalysis(ctx, []byte("%PDF"), "lease.pdf", "application/pdf", "")
	require.NoError(t, err)

	path, name, err := svc.DocumentPath(ctx, resp.SessionId)
	require.NoError(t, err)
	assert.Equal(t, "lease.pdf", name)
	assert.FileExists(t, path)

	// Once the stored file is gone the session stops serving the document.
	require.NoError(t, os.Remove(path))
	_, _, err = svc.DocumentPath(ctx, resp.SessionId)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "session_not_found", appErr.Code)

	_, _, err = svc.DocumentPath(ctx, uuid.New())
	require.Error(t, err)
}
