package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ai-docreview-be/internal/dto"
	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/pkg/logger"
	"ai-docreview-be/internal/repository/contract"
)

type IAnalysisService interface {
	// StartAnalysis validates the upload, admits a session, persists the
	// document to a temp file and launches the pipeline in the background.
	StartAnalysis(ctx context.Context, fileBytes []byte, filename, contentType, origin string) (*dto.StartAnalysisResponse, error)

	// DocumentPath returns the stored upload path for the viewer, or a
	// not-found error if the session or file is gone.
	DocumentPath(ctx context.Context, sessionId uuid.UUID) (string, string, error)
}

type analysisService struct {
	sessionRepo contract.SessionRepository
	sessions    ISessionService
	pipeline    IPipelineService
	log         logger.ILogger

	uploadDir    string
	maxFileBytes int
}

func NewAnalysisService(
	sessionRepo contract.SessionRepository,
	sessions ISessionService,
	pipeline IPipelineService,
	log logger.ILogger,
	uploadDir string,
	maxFileSizeMB int,
) IAnalysisService {
	return &analysisService{
		sessionRepo:  sessionRepo,
		sessions:     sessions,
		pipeline:     pipeline,
		log:          log,
		uploadDir:    uploadDir,
		maxFileBytes: maxFileSizeMB * 1024 * 1024,
	}
}

func (as *analysisService) StartAnalysis(ctx context.Context, fileBytes []byte, filename, contentType, origin string) (*dto.StartAnalysisResponse, error) {
	safeName, err := as.validateUpload(fileBytes, filename, contentType)
	if err != nil {
		return nil, err
	}

	session, err := as.sessions.Admit(ctx, safeName, origin)
	if err != nil {
		return nil, err
	}

	tempPath := filepath.Join(as.uploadDir, fmt.Sprintf("%s.pdf", session.Id))
	if err := os.WriteFile(tempPath, fileBytes, 0o600); err != nil {
		if _, delErr := as.sessionRepo.Delete(ctx, session.Id); delErr != nil {
			as.log.Warn("analysis", "failed to roll back session after write failure", map[string]interface{}{
				"session_id": session.Id.String(),
				"error":      delErr.Error(),
			})
		}
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	updated, err := as.sessionRepo.Update(ctx, session.Id, entity.SessionUpdate{
		Status:   entity.StatusPtr(entity.SessionStatusUploading),
		Progress: entity.IntPtr(10),
		Message:  entity.StrPtr("Document received, starting analysis..."),
		TempPath: entity.StrPtr(tempPath),
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperrors.NewSessionNotFound(session.Id.String())
	}

	as.pipeline.Start(updated)

	as.log.Info("analysis", "document upload started", map[string]interface{}{
		"session_id": session.Id.String(),
		"filename":   safeName,
		"size_bytes": len(fileBytes),
	})

	return &dto.StartAnalysisResponse{
		SessionId:    session.Id,
		DocumentName: safeName,
		Status:       string(updated.Status),
		Message:      updated.Message,
	}, nil
}

func (as *analysisService) DocumentPath(ctx context.Context, sessionId uuid.UUID) (string, string, error) {
	session, err := as.sessions.GetSession(ctx, sessionId)
	if err != nil {
		return "", "", err
	}
	if session.TempFilePath == "" {
		return "", "", apperrors.NewSessionNotFound(sessionId.String())
	}
	if _, err := os.Stat(session.TempFilePath); err != nil {
		return "", "", apperrors.NewSessionNotFound(sessionId.String())
	}
	return session.TempFilePath, session.DocumentName, nil
}

func (as *analysisService) validateUpload(fileBytes []byte, filename, contentType string) (string, error) {
	if contentType != "application/pdf" {
		return "", apperrors.NewFileValidationError(
			fmt.Sprintf("Invalid file type. Expected PDF, got %s", contentType),
		)
	}
	if len(fileBytes) == 0 {
		return "", apperrors.NewFileValidationError("Uploaded file is empty")
	}
	if len(fileBytes) > as.maxFileBytes {
		return "", apperrors.NewFileValidationError(
			fmt.Sprintf("File too large. Max size is %dMB", as.maxFileBytes/(1024*1024)),
		)
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return "", apperrors.NewFileValidationError("File must have .pdf extension")
	}

	var builder strings.Builder
	for _, r := range filename {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			builder.WriteRune(r)
		}
	}
	safeName := strings.TrimSpace(builder.String())
	if safeName == "" {
		safeName = "document.pdf"
	}
	return safeName, nil
}
