package mapper

import (
	"encoding/json"

	"ai-docreview-be/internal/entity"
	"ai-docreview-be/internal/model"
)

type AnalysisSessionMapper struct{}

func NewAnalysisSessionMapper() *AnalysisSessionMapper {
	return &AnalysisSessionMapper{}
}

func (m *AnalysisSessionMapper) ToEntity(s *model.AnalysisSession) *entity.AnalysisSession {
	if s == nil {
		return nil
	}

	var result *entity.AnalysisResult
	if len(s.Result) > 0 {
		result = &entity.AnalysisResult{}
		if err := json.Unmarshal(s.Result, result); err != nil {
			result = nil
		}
	}

	var history []string
	if len(s.MessageHistory) > 0 {
		_ = json.Unmarshal(s.MessageHistory, &history)
	}

	return &entity.AnalysisSession{
		Id:             s.Id,
		DocumentName:   s.DocumentName,
		Status:         entity.SessionStatus(s.Status),
		Progress:       s.Progress,
		Message:        s.Message,
		Error:          s.Error,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		ExpiresAt:      s.ExpiresAt,
		Result:         result,
		MessageHistory: history,
		TempFilePath:   s.TempFilePath,
		Origin:         s.Origin,
	}
}

func (m *AnalysisSessionMapper) ToModel(s *entity.AnalysisSession) *model.AnalysisSession {
	if s == nil {
		return nil
	}

	var resultJSON []byte
	if s.Result != nil {
		resultJSON, _ = json.Marshal(s.Result)
	}

	historyJSON, _ := json.Marshal(s.MessageHistory)

	return &model.AnalysisSession{
		Id:             s.Id,
		DocumentName:   s.DocumentName,
		Status:         string(s.Status),
		Progress:       s.Progress,
		Message:        s.Message,
		Error:          s.Error,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		ExpiresAt:      s.ExpiresAt,
		Result:         resultJSON,
		MessageHistory: historyJSON,
		TempFilePath:   s.TempFilePath,
		Origin:         s.Origin,
	}
}
